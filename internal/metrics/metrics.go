// Package metrics records HTTP and order metrics to Prometheus and
// CloudWatch.
package metrics

import (
	"context"

	"github.com/imrishuroy/go-storefront/internal/orders"
)

// Recorder receives business events of the order flow.
type Recorder interface {
	OrderPlaced(ctx context.Context, o orders.Order)
	OrderRejected(ctx context.Context, reason string)
}

// Rejection reasons
const (
	ReasonValidation        = "validation"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonError             = "error"
)

// Multi fans out to every recorder.
type Multi []Recorder

// OrderPlaced implements Recorder.
func (m Multi) OrderPlaced(ctx context.Context, o orders.Order) {
	for _, r := range m {
		r.OrderPlaced(ctx, o)
	}
}

// OrderRejected implements Recorder.
func (m Multi) OrderRejected(ctx context.Context, reason string) {
	for _, r := range m {
		r.OrderRejected(ctx, reason)
	}
}
