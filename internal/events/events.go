// Package events publishes order lifecycle events after commit. Delivery is
// best effort: a failed publish is logged and never undoes the order.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

// TypeOrderPlaced is the routing key / event type of a placed order.
const TypeOrderPlaced = "order.placed"

// Item is one order line in an event payload.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderPlaced is emitted once per committed order.
type OrderPlaced struct {
	EventID     string          `json:"eventId"`
	Type        string          `json:"type"`
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []Item          `json:"items"`
	OrderDate   time.Time       `json:"orderDate"`
}

// NewOrderPlaced builds the event for a committed order.
func NewOrderPlaced(o orders.Order, lines []orders.Line) OrderPlaced {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return OrderPlaced{
		EventID:     uuid.NewString(),
		Type:        TypeOrderPlaced,
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       items,
		OrderDate:   o.OrderDate,
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt OrderPlaced) error
	Close() error
}

// Noop discards events.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, OrderPlaced) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// Emitter publishes with a bounded timeout and swallows failures.
type Emitter struct {
	pub     Publisher
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewEmitter wraps pub. A zero timeout defaults to three seconds.
func NewEmitter(pub Publisher, timeout time.Duration, log logrus.FieldLogger) *Emitter {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Emitter{pub: pub, timeout: timeout, log: log}
}

// Emit publishes evt. The returned error is always a
// *apperr.TransientUpstreamError and has already been logged.
func (e *Emitter) Emit(ctx context.Context, evt OrderPlaced) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.pub.Publish(ctx, evt); err != nil {
		err = apperr.Upstream("events", err)
		e.log.WithError(err).WithFields(logrus.Fields{"order_id": evt.OrderID, "event_id": evt.EventID}).
			Warn("order event not published")
		return err
	}
	e.log.WithFields(logrus.Fields{"order_id": evt.OrderID, "event_id": evt.EventID}).Debug("order event published")
	return nil
}
