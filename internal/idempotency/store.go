package idempotency

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

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Store persists idempotency records.
type Store interface {
	// CreateIfNotExists claims key with an IN_PROGRESS record. It returns
	// false, nil when a live (IN_PROGRESS or DONE) record already holds the
	// key. A FAILED record is reclaimed.
	CreateIfNotExists(ctx context.Context, key string) (bool, error)
	// Get returns nil, nil when the key is unknown.
	Get(ctx context.Context, key string) (*Record, error)
	MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// reclaimable is true for a new key or one whose last attempt failed.
const reclaimable = "attribute_not_exists(idempotency_key) OR #s = :failed"

// DynamoStore encapsulates idempotency operations against DynamoDB.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore returns a configured DynamoStore.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewDynamoStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// CreateIfNotExists implements Store with a conditional put.
func (s *DynamoStore) CreateIfNotExists(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc().UTC()
	rec := Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      aws.String(reclaimable),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
		},
	})
	if err != nil {
		// detect conditional check failure
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}

	return true, nil
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"idempotency_key": &types.AttributeValueMemberS{Value: key}}
}

// Get retrieves an idempotency record by key. If not found, returns (nil, nil).
func (s *DynamoStore) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyAttr(key),
		ConsistentRead: sdkBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the order id with a small response
// so retries can be replayed.
func (s *DynamoStore) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	err := s.setStatus(ctx, key, "order_id = :oid, response_body = :rb, response_status = :rs",
		map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":oid":  &types.AttributeValueMemberS{Value: orderID},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
		})
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkFailed marks the record FAILED with a note; the key becomes claimable again.
func (s *DynamoStore) MarkFailed(ctx context.Context, key, note string) error {
	err := s.setStatus(ctx, key, "note = :n", map[string]types.AttributeValue{
		":failed": &types.AttributeValueMemberS{Value: StatusFailed},
		":n":      &types.AttributeValueMemberS{Value: note},
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// setStatus updates an existing record. values must hold exactly one of
// :done or :failed plus the placeholders used by set.
func (s *DynamoStore) setStatus(ctx context.Context, key, set string, values map[string]types.AttributeValue) error {
	status := ":done"
	if _, ok := values[":failed"]; ok {
		status = ":failed"
	}
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyAttr(key),
		UpdateExpression:          aws.String("SET #s = " + status + ", " + set + ", updated_at = :ua"),
		ConditionExpression:       aws.String("attribute_exists(idempotency_key)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func sdkBool(b bool) *bool { return &b }
