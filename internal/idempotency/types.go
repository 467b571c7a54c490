package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted per idempotency key, in the DynamoDB table
// or as a JSON value in Redis.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key" json:"idempotencyKey"` // PK
	Status         string    `dynamodbav:"status" json:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty" json:"orderId,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty" json:"responseBody,omitempty"` // small responses only
	ResponseStatus int       `dynamodbav:"response_status,omitempty" json:"responseStatus,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `dynamodbav:"updated_at" json:"updatedAt"`
	ExpiresAt      int64     `dynamodbav:"expires_at" json:"expiresAt"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty" json:"note,omitempty"`
}

// ScopedKey namespaces a client supplied key by user so two users can
// never collide on the same key.
func ScopedKey(userID, key string) string {
	return userID + ":" + key
}
