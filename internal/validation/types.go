package validation

import (
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront/internal/orders"
)

// Item represents a single order line item.
type Item struct {
	ProductID    string           `json:"product_id" validate:"required"`
	Quantity     int              `json:"quantity" validate:"required,min=1"` // must be >= 1
	ProductPrice *decimal.Decimal `json:"product_price" validate:"required"` // unit price the client saw
}

// CreateOrderRequest is the payload for POST /orders. The user comes from
// the verified identity, never from the body.
type CreateOrderRequest struct {
	Items           []Item                  `json:"items" validate:"required,min=1,dive"` // at least one item
	TotalAmount     *decimal.Decimal        `json:"totalAmount" validate:"required"`      // total the client claims
	ShippingAddress *orders.ShippingAddress `json:"shippingAddress" validate:"required"`
}

// Input converts the request into coordinator input for userID.
func (r CreateOrderRequest) Input(userID string) orders.PlaceOrderInput {
	lines := make([]orders.Line, 0, len(r.Items))
	for _, it := range r.Items {
		l := orders.Line{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.ProductPrice != nil {
			l.Price = *it.ProductPrice
		}
		lines = append(lines, l)
	}
	return orders.PlaceOrderInput{
		UserID:          userID,
		Lines:           lines,
		TotalAmount:     r.TotalAmount,
		ShippingAddress: r.ShippingAddress,
	}
}

// AddCartItemRequest is the payload for POST /cart.
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateCartItemRequest is the payload for PUT /cart/:itemId.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
