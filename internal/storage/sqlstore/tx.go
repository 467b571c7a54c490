package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

// txScope is one database transaction on a borrowed connection.
type txScope struct {
	tx *sqlx.Tx
}

func (t *txScope) InsertOrder(ctx context.Context, o orders.Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return apperr.Persistence("insert order", errors.Wrap(err, "encode shipping address"))
	}
	_, err = t.tx.ExecContext(ctx, t.tx.Rebind(
		`INSERT INTO orders (id, user_id, total_amount, shipping_address, status, order_date) VALUES (?, ?, ?, ?, ?, ?)`),
		o.OrderID, o.UserID, o.TotalAmount, string(addr), string(o.Status), o.OrderDate)
	if err != nil {
		return apperr.Persistence("insert order", errors.Wrapf(err, "order %s", o.OrderID))
	}
	return nil
}

func (t *txScope) InsertLine(ctx context.Context, orderID string, l orders.Line) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(
		`INSERT INTO order_items (order_id, product_id, quantity, price) VALUES (?, ?, ?, ?)`),
		orderID, l.ProductID, l.Quantity, l.Price)
	if err != nil {
		// the product disappeared since it was put in the cart
		if isForeignKeyViolation(err) {
			return &apperr.InsufficientStockError{ProductID: l.ProductID}
		}
		return apperr.Persistence("insert order line", errors.Wrapf(err, "order %s product %s", orderID, l.ProductID))
	}
	return nil
}

func (t *txScope) DecrementStock(ctx context.Context, productID string, quantity int) error {
	return decrementStock(ctx, t.tx, productID, quantity)
}

func (t *txScope) ClearCart(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM cart_items WHERE user_id = ?`), userID)
	if err != nil {
		return apperr.Persistence("clear cart", errors.Wrapf(err, "user %s", userID))
	}
	return nil
}

func (t *txScope) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return apperr.Persistence("commit", errors.Wrap(err, "commit transaction"))
	}
	return nil
}

// Rollback is safe to defer: after Commit it returns nil.
func (t *txScope) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return apperr.Persistence("rollback", errors.Wrap(err, "rollback transaction"))
}
