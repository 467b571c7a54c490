package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

const historySelect = `
	SELECT o.id AS order_id, o.user_id, u.username, u.email, o.total_amount, o.shipping_address,
		o.status, o.order_date, oi.product_id, p.name AS product_name, oi.quantity, oi.price
	FROM orders o
	JOIN users u ON u.id = o.user_id
	LEFT JOIN order_items oi ON oi.order_id = o.id
	LEFT JOIN products p ON p.id = oi.product_id`

const historyOrder = ` ORDER BY o.order_date DESC, o.id, oi.id`

// historyRow mirrors historySelect; line columns are NULL for an order
// without lines.
type historyRow struct {
	OrderID         string              `db:"order_id"`
	UserID          string              `db:"user_id"`
	Username        string              `db:"username"`
	Email           string              `db:"email"`
	TotalAmount     decimal.Decimal     `db:"total_amount"`
	ShippingAddress []byte              `db:"shipping_address"`
	Status          string              `db:"status"`
	OrderDate       time.Time           `db:"order_date"`
	ProductID       sql.NullString      `db:"product_id"`
	ProductName     sql.NullString      `db:"product_name"`
	Quantity        sql.NullInt64       `db:"quantity"`
	Price           decimal.NullDecimal `db:"price"`
}

// HistoryRows implements orders.HistoryStore.
func (s *Store) HistoryRows(ctx context.Context, scope orders.Scope) ([]orders.HistoryRow, error) {
	query, args := historySelect+historyOrder, []interface{}{}
	if !scope.All {
		query, args = historySelect+` WHERE o.user_id = ?`+historyOrder, []interface{}{scope.UserID}
	}

	var raw []historyRow
	if err := s.db.SelectContext(ctx, &raw, s.q(query), args...); err != nil {
		return nil, apperr.Persistence("select order history", errors.Wrap(err, "history query"))
	}

	rows := make([]orders.HistoryRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, orders.HistoryRow{
			OrderID:         r.OrderID,
			UserID:          r.UserID,
			Username:        r.Username,
			Email:           r.Email,
			TotalAmount:     r.TotalAmount,
			ShippingAddress: r.ShippingAddress,
			Status:          orders.Status(r.Status),
			OrderDate:       r.OrderDate.UTC(),
			ProductID:       r.ProductID.String,
			ProductName:     r.ProductName.String,
			Quantity:        int(r.Quantity.Int64),
			Price:           r.Price.Decimal,
		})
	}
	return rows, nil
}
