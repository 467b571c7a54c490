// Package dynamostore is the DynamoDB backend. Order placement is one
// TransactWriteItems call whose stock updates carry the non-negative
// condition, so the check and the decrement are a single atomic step.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/inventory"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/seed"
)

var (
	_ orders.Store        = (*Store)(nil)
	_ orders.HistoryStore = (*Store)(nil)
	_ cart.Store          = (*Store)(nil)
	_ catalog.Reader      = (*Store)(nil)
	_ inventory.Store     = (*Store)(nil)
	_ seed.Target         = (*Store)(nil)
)

// Tables names the four tables the store uses.
type Tables struct {
	Products string
	Users    string
	Cart     string
	Orders   string
}

// Store talks to DynamoDB through the narrow client interface.
type Store struct {
	client  aws.DynamoDBAPI
	tables  Tables
	log     logrus.FieldLogger
	nowFunc func() time.Time
	newID   func() string
}

// New returns a Store.
func New(client aws.DynamoDBAPI, tables Tables, log logrus.FieldLogger) *Store {
	return &Store{
		client:  client,
		tables:  tables,
		log:     log,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func numberAttr(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException"
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrProductID: str(productID)}
}

func cartKey(userID, productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID:    str(userID),
		attrProductID: str(productID),
	}
}

func (s *Store) getProduct(ctx context.Context, productID string) (*productItem, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.Products,
		Key:       productKey(productID),
	})
	if err != nil {
		return nil, apperr.Persistence("get product", fmt.Errorf("get item: %w", err))
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p productItem
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, apperr.Persistence("get product", fmt.Errorf("unmarshal item: %w", err))
	}
	return &p, nil
}

// Product implements catalog.Reader.
func (s *Store) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	p, err := s.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperr.NotFoundError{Resource: "product", ID: productID}
	}
	out := p.toProduct()
	return &out, nil
}

// Stock implements inventory.StockReader.
func (s *Store) Stock(ctx context.Context, productID string) (int, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.StockQuantity, nil
}

// DecrementStock implements inventory.Decrementer outside a transaction.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tables.Products,
		Key:                       productKey(productID),
		UpdateExpression:          aws.String(decrementUpdate),
		ConditionExpression:       aws.String(decrementCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{":q": numberAttr(quantity)},
	})
	if err != nil {
		if isConditionFailed(err) {
			return &apperr.InsufficientStockError{ProductID: productID}
		}
		return apperr.Persistence("decrement stock", fmt.Errorf("update item: %w", err))
	}
	return nil
}

// PutUser implements seed.Target.
func (s *Store) PutUser(ctx context.Context, u seed.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tables.Users, Item: item}); err != nil {
		return apperr.Persistence("put user", fmt.Errorf("put item: %w", err))
	}
	return nil
}

// PutProduct implements seed.Target.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) error {
	item, err := attributevalue.MarshalMap(productItem{
		ProductID:     p.ProductID,
		Name:          p.Name,
		Price:         p.Price.String(),
		StockQuantity: p.StockQuantity,
	})
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tables.Products, Item: item}); err != nil {
		return apperr.Persistence("put product", fmt.Errorf("put item: %w", err))
	}
	return nil
}

// Begin implements orders.Store. Nothing reaches DynamoDB before Commit.
func (s *Store) Begin(_ context.Context) (orders.Tx, error) {
	return &txScope{s: s, decrements: map[string]int{}}, nil
}

// queryAll pages through a Query.
func (s *Store) queryAll(ctx context.Context, in *dyn.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// scanAll pages through a Scan.
func (s *Store) scanAll(ctx context.Context, in *dyn.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
