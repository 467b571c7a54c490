package dynamostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

// maxTransactItems is the DynamoDB limit on actions per transaction.
const maxTransactItems = 100

var errTxDone = errors.New("dynamostore: transaction already finished")

// txScope buffers the order and submits everything in Commit. Stock
// conditions are therefore evaluated at commit time.
type txScope struct {
	s *Store

	order      *orderItem
	decrements map[string]int
	products   []string // decrement order, first occurrence
	cartKeys   []map[string]types.AttributeValue
	done       bool
}

func (t *txScope) InsertOrder(_ context.Context, o orders.Order) error {
	if t.done {
		return errTxDone
	}
	if t.order != nil {
		return apperr.Persistence("insert order", errors.New("order already inserted in this transaction"))
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return apperr.Persistence("insert order", fmt.Errorf("encode shipping address: %w", err))
	}
	item := newOrderItem(o, addr)
	t.order = &item
	return nil
}

func (t *txScope) InsertLine(_ context.Context, orderID string, l orders.Line) error {
	if t.done {
		return errTxDone
	}
	if t.order == nil || t.order.OrderID != orderID {
		return apperr.Persistence("insert order line", fmt.Errorf("unknown order %s", orderID))
	}
	t.order.Items = append(t.order.Items, orderLineItem{
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     l.Price.String(),
	})
	return nil
}

// DecrementStock merges repeated products into one conditional update;
// a transaction may touch each item only once.
func (t *txScope) DecrementStock(_ context.Context, productID string, quantity int) error {
	if t.done {
		return errTxDone
	}
	if _, seen := t.decrements[productID]; !seen {
		t.products = append(t.products, productID)
	}
	t.decrements[productID] += quantity
	return nil
}

// ClearCart snapshots the user's cart keys now; they are deleted at commit.
func (t *txScope) ClearCart(ctx context.Context, userID string) error {
	if t.done {
		return errTxDone
	}
	items, err := t.s.cartItems(ctx, userID)
	if err != nil {
		return apperr.Persistence("clear cart", err)
	}
	for _, it := range items {
		t.cartKeys = append(t.cartKeys, cartKey(userID, it.ProductID))
	}
	return nil
}

func (t *txScope) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	if t.order == nil {
		return apperr.Persistence("commit", errors.New("no order in transaction"))
	}

	orderMap, err := attributevalue.MarshalMap(t.order)
	if err != nil {
		return apperr.Persistence("commit", fmt.Errorf("marshal order: %w", err))
	}

	items := make([]types.TransactWriteItem, 0, 1+len(t.products)+len(t.cartKeys))
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &t.s.tables.Orders,
			Item:                orderMap,
			ConditionExpression: aws.String(orderNotExists),
		},
	})
	// position in items -> product id, for mapping cancellation reasons
	stockAt := make(map[int]string, len(t.products))
	for _, pid := range t.products {
		stockAt[len(items)] = pid
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 &t.s.tables.Products,
				Key:                       productKey(pid),
				UpdateExpression:          aws.String(decrementUpdate),
				ConditionExpression:       aws.String(decrementCondition),
				ExpressionAttributeValues: map[string]types.AttributeValue{":q": numberAttr(t.decrements[pid])},
			},
		})
	}
	for _, key := range t.cartKeys {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{TableName: &t.s.tables.Cart, Key: key},
		})
	}
	if len(items) > maxTransactItems {
		return apperr.Persistence("commit", fmt.Errorf("transaction needs %d actions, limit is %d", len(items), maxTransactItems))
	}

	_, err = t.s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(t.order.OrderID),
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if pid, ok := stockAt[i]; ok {
				return &apperr.InsufficientStockError{ProductID: pid}
			}
		}
	}
	return apperr.Persistence("commit", fmt.Errorf("transact write items: %w", err))
}

// Rollback drops the buffer; nothing was written.
func (t *txScope) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.order = nil
	t.decrements = nil
	t.products = nil
	t.cartKeys = nil
	return nil
}
