package dynamostore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

// Key attributes. Cart items are keyed by (user_id, product_id) so the
// upsert is a single UpdateItem.
const (
	attrProductID = "product_id"
	attrUserID    = "user_id"
	attrOrderID   = "order_id"
)

// Expressions shared by the store and its transaction scope.
const (
	decrementUpdate    = "SET stock_quantity = stock_quantity - :q"
	decrementCondition = "attribute_exists(product_id) AND stock_quantity >= :q"
	cartUpsert         = "SET quantity = if_not_exists(quantity, :zero) + :q, cart_item_id = if_not_exists(cart_item_id, :id), added_at = if_not_exists(added_at, :now)"
	cartItemMatches    = "cart_item_id = :id"
	orderNotExists     = "attribute_not_exists(order_id)"
)

// Money is kept as a decimal string; DynamoDB numbers would round-trip
// through float64 in attributevalue.
type productItem struct {
	ProductID     string `dynamodbav:"product_id"`
	Name          string `dynamodbav:"name"`
	Price         string `dynamodbav:"price"`
	StockQuantity int    `dynamodbav:"stock_quantity"`
}

func (p productItem) toProduct() catalog.Product {
	return catalog.Product{
		ProductID:     p.ProductID,
		Name:          p.Name,
		Price:         parseMoney(p.Price),
		StockQuantity: p.StockQuantity,
	}
}

type cartItem struct {
	UserID     string `dynamodbav:"user_id"`
	ProductID  string `dynamodbav:"product_id"`
	CartItemID string `dynamodbav:"cart_item_id"`
	Quantity   int    `dynamodbav:"quantity"`
	AddedAt    int64  `dynamodbav:"added_at"` // unix nanos, insertion order
}

type orderLineItem struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	Price     string `dynamodbav:"price"`
}

// orderItem embeds its lines; an order is one item.
type orderItem struct {
	OrderID         string          `dynamodbav:"order_id"`
	UserID          string          `dynamodbav:"user_id"`
	TotalAmount     string          `dynamodbav:"total_amount"`
	ShippingAddress string          `dynamodbav:"shipping_address"` // JSON document
	Status          string          `dynamodbav:"status"`
	OrderDate       string          `dynamodbav:"order_date"` // RFC3339Nano, UTC
	Items           []orderLineItem `dynamodbav:"items"`
}

func (o orderItem) date() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, o.OrderDate)
	return t
}

func newOrderItem(o orders.Order, address []byte) orderItem {
	return orderItem{
		OrderID:         o.OrderID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: string(address),
		Status:          string(o.Status),
		OrderDate:       o.OrderDate.UTC().Format(time.RFC3339Nano),
		Items:           []orderLineItem{},
	}
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
