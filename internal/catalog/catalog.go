// Package catalog is the read side of the product catalog consumed by the
// cart and order flows. Product mutations live outside this service.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as seen by the cart and the order coordinator.
type Product struct {
	ProductID     string          `json:"productId" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
}

// Reader looks products up by id. Implementations return an
// *apperr.NotFoundError when the product does not exist.
type Reader interface {
	Product(ctx context.Context, productID string) (*Product, error)
}
