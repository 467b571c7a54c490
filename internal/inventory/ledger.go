// Package inventory implements the stock ledger: the conditional decrement
// that keeps product stock from going negative under concurrent orders.
package inventory

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// Decrementer applies "stock -= quantity only if stock >= quantity" as one
// atomic operation of the underlying store. Both a store (autocommit) and a
// transaction scope satisfy it. A zero-row match is reported as
// *apperr.InsufficientStockError.
type Decrementer interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// StockReader reads the current stock level of a product.
type StockReader interface {
	Stock(ctx context.Context, productID string) (int, error)
}

// Store is what a standalone Ledger needs from a backend.
type Store interface {
	Decrementer
	StockReader
}

// Ledger is the inventory ledger bound to a store.
type Ledger struct {
	store Store
	log   logrus.FieldLogger
}

// NewLedger returns a Ledger over store.
func NewLedger(store Store, log logrus.FieldLogger) *Ledger {
	return &Ledger{store: store, log: log}
}

// DecrementStock decrements outside of any order transaction.
func (l *Ledger) DecrementStock(ctx context.Context, productID string, quantity int) error {
	err := Decrement(ctx, l.store, productID, quantity)
	if _, ok := apperr.InsufficientStock(err); ok {
		l.log.WithFields(logrus.Fields{"product_id": productID, "quantity": quantity}).
			Info("stock decrement rejected")
	}
	return err
}

// Stock returns the current stock of productID.
func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	return l.store.Stock(ctx, productID)
}

// Decrement validates the request and runs the conditional decrement on d.
// Whatever d reports for a rejected decrement, the caller always receives an
// InsufficientStockError naming productID.
func Decrement(ctx context.Context, d Decrementer, productID string, quantity int) error {
	if productID == "" {
		return apperr.Invalid("product_id", "required")
	}
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be greater than zero")
	}
	err := d.DecrementStock(ctx, productID, quantity)
	if err == nil {
		return nil
	}
	if _, ok := apperr.InsufficientStock(err); ok {
		return &apperr.InsufficientStockError{ProductID: productID}
	}
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		return &apperr.InsufficientStockError{ProductID: productID}
	}
	return apperr.Persistence("decrement stock", err)
}
