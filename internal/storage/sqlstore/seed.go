package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/seed"
)

var _ seed.Target = (*Store)(nil)

// PutUser upserts a user row.
func (s *Store) PutUser(ctx context.Context, u seed.User) error {
	role := u.Role
	if role == "" {
		role = "customer"
	}
	_, err := s.db.ExecContext(ctx, s.q(s.dialect.upsertUser), u.UserID, u.Username, u.Email, role)
	return apperr.Persistence("put user", errors.Wrapf(err, "user %s", u.UserID))
}

// PutProduct upserts a product row.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) error {
	_, err := s.db.ExecContext(ctx, s.q(s.dialect.upsertProduct), p.ProductID, p.Name, p.Price, p.StockQuantity)
	return apperr.Persistence("put product", errors.Wrapf(err, "product %s", p.ProductID))
}
