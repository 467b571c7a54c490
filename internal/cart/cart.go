// Package cart is the cart snapshot reader/writer: per-user cart lines keyed
// by (user, product).
package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/catalog"
)

// Line is one cart line enriched with the product's current catalog data.
type Line struct {
	CartItemID    string          `json:"cartItemId" db:"id"`
	UserID        string          `json:"userId" db:"user_id"`
	ProductID     string          `json:"productId" db:"product_id"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
}

// Store is the persistence contract of the cart.
//
// AddItem must be an upsert keyed by (userID, productID): an existing line's
// quantity grows by quantity. UpdateQuantity and RemoveItem match on both the
// item id and the user id and return an *apperr.NotFoundError when nothing
// matched.
type Store interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, cartItemID, userID string, quantity int) error
	RemoveItem(ctx context.Context, cartItemID, userID string) error
	Clear(ctx context.Context, userID string) error
}

// Service validates cart requests and delegates to the store.
type Service struct {
	store    Store
	products catalog.Reader
	log      logrus.FieldLogger
}

// NewService returns a cart Service.
func NewService(store Store, products catalog.Reader, log logrus.FieldLogger) *Service {
	return &Service{store: store, products: products, log: log}
}

// Lines returns the user's cart in insertion order. An empty cart is an
// empty, non-nil slice.
func (s *Service) Lines(ctx context.Context, userID string) ([]Line, error) {
	lines, err := s.store.Lines(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("cart lines", err)
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

// AddItem adds quantity of productID to the user's cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if productID == "" {
		return apperr.Invalid("productId", "required")
	}
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be greater than zero")
	}
	if _, err := s.products.Product(ctx, productID); err != nil {
		return apperr.Persistence("find product", err)
	}
	if err := s.store.AddItem(ctx, userID, productID, quantity); err != nil {
		return apperr.Persistence("add cart item", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "product_id": productID, "quantity": quantity}).
		Debug("cart item added")
	return nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines.
func (s *Service) UpdateQuantity(ctx context.Context, cartItemID, userID string, quantity int) error {
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be greater than zero")
	}
	return apperr.Persistence("update cart item", s.store.UpdateQuantity(ctx, cartItemID, userID, quantity))
}

// RemoveItem deletes one of the user's cart lines.
func (s *Service) RemoveItem(ctx context.Context, cartItemID, userID string) error {
	return apperr.Persistence("remove cart item", s.store.RemoveItem(ctx, cartItemID, userID))
}

// Clear deletes every line of the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return apperr.Persistence("clear cart", s.store.Clear(ctx, userID))
}
