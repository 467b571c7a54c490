package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/cart"
)

// Lines implements cart.Store.
func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	lines := []cart.Line{}
	err := s.db.SelectContext(ctx, &lines, s.q(`
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, p.name, p.price, p.stock_quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.seq`), userID)
	if err != nil {
		return nil, apperr.Persistence("select cart", errors.Wrapf(err, "user %s", userID))
	}
	return lines, nil
}

// AddItem implements cart.Store with a single upsert on (user_id, product_id).
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.db.ExecContext(ctx, s.q(s.dialect.upsertCartItem), s.newID(), userID, productID, quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &apperr.NotFoundError{Resource: "product", ID: productID}
		}
		return apperr.Persistence("add cart item", errors.Wrapf(err, "user %s product %s", userID, productID))
	}
	return nil
}

// UpdateQuantity implements cart.Store.
func (s *Store) UpdateQuantity(ctx context.Context, cartItemID, userID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`), quantity, cartItemID, userID)
	if err != nil {
		return apperr.Persistence("update cart item", errors.Wrapf(err, "item %s", cartItemID))
	}
	return expectOne(res, "cart item", cartItemID)
}

// RemoveItem implements cart.Store.
func (s *Store) RemoveItem(ctx context.Context, cartItemID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM cart_items WHERE id = ? AND user_id = ?`), cartItemID, userID)
	if err != nil {
		return apperr.Persistence("remove cart item", errors.Wrapf(err, "item %s", cartItemID))
	}
	return expectOne(res, "cart item", cartItemID)
}

// Clear implements cart.Store.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM cart_items WHERE user_id = ?`), userID); err != nil {
		return apperr.Persistence("clear cart", errors.Wrapf(err, "user %s", userID))
	}
	return nil
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOne(res rowsAffected, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("rows affected", err)
	}
	if n == 0 {
		return &apperr.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}
