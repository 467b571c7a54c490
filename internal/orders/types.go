package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ShippingAddress is persisted as a JSON document on the order header.
type ShippingAddress struct {
	FullName     string `json:"fullName" dynamodbav:"full_name" validate:"required"`
	AddressLine1 string `json:"addressLine1" dynamodbav:"address_line1" validate:"required"`
	AddressLine2 string `json:"addressLine2,omitempty" dynamodbav:"address_line2,omitempty"`
	City         string `json:"city" dynamodbav:"city" validate:"required"`
	State        string `json:"state" dynamodbav:"state" validate:"required"`
	PostalCode   string `json:"postalCode" dynamodbav:"postal_code" validate:"required"`
	Phone        string `json:"phone" dynamodbav:"phone" validate:"required"`
}

// Line is one purchased product with its unit price frozen at order time.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is Price * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the order header.
type Order struct {
	OrderID         string          `json:"orderId"`
	UserID          string          `json:"userId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Status          Status          `json:"status"`
	OrderDate       time.Time       `json:"orderDate"`
}

// PlaceOrderInput is what the coordinator needs to place an order. UserID
// comes from the verified identity, never from the request body.
type PlaceOrderInput struct {
	UserID          string
	Lines           []Line
	TotalAmount     *decimal.Decimal
	ShippingAddress *ShippingAddress
}

// Total sums the line subtotals.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}
