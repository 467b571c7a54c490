// Package orders places orders and reads order history.
package orders

import (
	"context"
)

// Store opens transactional scopes for order placement.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one order-placement scope. Nothing done through a Tx is visible to
// other scopes before Commit. Rollback releases the scope and is a no-op
// once the scope has been committed or rolled back, so callers defer it
// right after Begin.
//
// Backends that can only evaluate conditions at commit time may return an
// *apperr.InsufficientStockError from Commit instead of DecrementStock.
type Tx interface {
	InsertOrder(ctx context.Context, order Order) error
	InsertLine(ctx context.Context, orderID string, line Line) error
	DecrementStock(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context, userID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
