package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/inventory"
)

// Coordinator turns a cart into a persisted order: header, lines, stock
// decrements and cart clearing commit together or not at all.
type Coordinator struct {
	store   Store
	log     logrus.FieldLogger
	nowFunc func() time.Time
	newID   func() string
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store Store, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		store:   store,
		log:     log,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// Validate checks the input without touching the store.
func Validate(in PlaceOrderInput) error {
	if in.UserID == "" {
		return apperr.Invalid("userId", "required")
	}
	if len(in.Lines) == 0 {
		return apperr.Invalid("items", "at least one item is required")
	}
	if in.TotalAmount == nil {
		return apperr.Invalid("totalAmount", "required")
	}
	if in.ShippingAddress == nil {
		return apperr.Invalid("shippingAddress", "required")
	}
	for i, l := range in.Lines {
		if l.ProductID == "" {
			return apperr.Invalid(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if l.Quantity <= 0 {
			return apperr.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if l.Price.IsNegative() {
			return apperr.Invalid(fmt.Sprintf("items[%d].product_price", i), "must not be negative")
		}
	}
	// compare in cents
	if !Total(in.Lines).Round(2).Equal(in.TotalAmount.Round(2)) {
		return apperr.Invalid("totalAmount", "does not match the sum of the items")
	}
	return nil
}

// PlaceOrder runs the placement workflow and returns the committed header.
//
// Errors: *apperr.ValidationError before any scope is opened,
// *apperr.InsufficientStockError when a decrement is rejected, and
// *apperr.PersistenceError for anything else. Every error after Begin leaves
// the store exactly as it was.
func (c *Coordinator) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	if err := Validate(in); err != nil {
		return Order{}, err
	}

	order := Order{
		OrderID:         c.newID(),
		UserID:          in.UserID,
		TotalAmount:     Total(in.Lines),
		ShippingAddress: *in.ShippingAddress,
		Status:          StatusPending,
		OrderDate:       c.nowFunc().UTC(),
	}
	logger := c.log.WithFields(logrus.Fields{"order_id": order.OrderID, "user_id": in.UserID})

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return Order{}, apperr.Persistence("begin", err)
	}
	defer func() {
		if rerr := tx.Rollback(ctx); rerr != nil {
			logger.WithError(rerr).Error("rollback failed")
		}
	}()

	if err := tx.InsertOrder(ctx, order); err != nil {
		return Order{}, apperr.Persistence("insert order", err)
	}

	for _, line := range in.Lines {
		if err := tx.InsertLine(ctx, order.OrderID, line); err != nil {
			return Order{}, apperr.Persistence("insert order line", err)
		}
		if err := inventory.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if se, ok := apperr.InsufficientStock(err); ok {
				logger.WithField("product_id", se.ProductID).Info("order rejected: insufficient stock")
			}
			return Order{}, err
		}
	}

	if err := tx.ClearCart(ctx, in.UserID); err != nil {
		return Order{}, apperr.Persistence("clear cart", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if se, ok := apperr.InsufficientStock(err); ok {
			logger.WithField("product_id", se.ProductID).Info("order rejected at commit: insufficient stock")
			return Order{}, se
		}
		return Order{}, apperr.Persistence("commit", err)
	}

	logger.WithFields(logrus.Fields{"lines": len(in.Lines), "total": order.TotalAmount.StringFixed(2)}).
		Info("order placed")
	return order, nil
}
