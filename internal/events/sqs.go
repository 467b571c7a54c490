package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// sqsSender is satisfied by *aws.Publisher.
type sqsSender interface {
	Send(ctx context.Context, body, groupID string, attributes map[string]string) error
}

// SQSPublisher sends events as JSON messages, grouped by user.
type SQSPublisher struct {
	sender sqsSender
}

// NewSQSPublisher wraps an SQS sender.
func NewSQSPublisher(sender sqsSender) *SQSPublisher {
	return &SQSPublisher{sender: sender}
}

// Publish implements Publisher.
func (p *SQSPublisher) Publish(ctx context.Context, evt OrderPlaced) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.sender.Send(ctx, string(body), evt.UserID, map[string]string{
		"event_type": evt.Type,
		"order_id":   evt.OrderID,
	})
}

// Close implements Publisher.
func (p *SQSPublisher) Close() error { return nil }
