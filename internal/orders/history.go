package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// Scope selects whose orders the history reader returns.
type Scope struct {
	UserID string
	All    bool
}

// UserScope is the scope of a single user's orders.
func UserScope(userID string) Scope { return Scope{UserID: userID} }

// AllScope is the scope of every user's orders.
func AllScope() Scope { return Scope{All: true} }

// HistoryRow is one flat row of the order ⋈ line ⋈ product ⋈ user join.
// Rows arrive ordered by order date descending and grouped by order id.
// Line fields are empty for an order whose lines were cascaded away.
type HistoryRow struct {
	OrderID         string
	UserID          string
	Username        string
	Email           string
	TotalAmount     decimal.Decimal
	ShippingAddress []byte
	Status          Status
	OrderDate       time.Time

	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// HistoryStore returns the flat history rows for a scope.
type HistoryStore interface {
	HistoryRows(ctx context.Context, scope Scope) ([]HistoryRow, error)
}

// Customer identifies the owner of an order in the all-users view.
type Customer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ViewItem is one line of an order view.
type ViewItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// View is an order header with its nested lines.
type View struct {
	OrderID         string           `json:"orderId"`
	UserID          string           `json:"userId"`
	Customer        *Customer        `json:"customer,omitempty"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
	Status          Status           `json:"status"`
	OrderDate       time.Time        `json:"orderDate"`
	Items           []ViewItem       `json:"items"`
}

// History reads grouped order views.
type History struct {
	store HistoryStore
	log   logrus.FieldLogger
}

// NewHistory returns a History reader.
func NewHistory(store HistoryStore, log logrus.FieldLogger) *History {
	return &History{store: store, log: log}
}

// Orders returns the grouped views for scope, newest first.
func (h *History) Orders(ctx context.Context, scope Scope) ([]View, error) {
	if !scope.All && scope.UserID == "" {
		return nil, apperr.Invalid("userId", "required")
	}
	rows, err := h.store.HistoryRows(ctx, scope)
	if err != nil {
		return nil, apperr.Persistence("order history", err)
	}
	return GroupRows(rows, scope.All, h.log), nil
}

// GroupRows folds flat rows into views keyed by order id, keeping the order
// in which each order id first appears. withCustomer attaches the owner's
// identity to every view.
func GroupRows(rows []HistoryRow, withCustomer bool, log logrus.FieldLogger) []View {
	views := make([]View, 0)
	index := make(map[string]int)

	for _, r := range rows {
		i, seen := index[r.OrderID]
		if !seen {
			v := View{
				OrderID:         r.OrderID,
				UserID:          r.UserID,
				TotalAmount:     r.TotalAmount,
				ShippingAddress: decodeAddress(r.OrderID, r.ShippingAddress, log),
				Status:          r.Status,
				OrderDate:       r.OrderDate,
				Items:           []ViewItem{},
			}
			if withCustomer {
				v.Customer = &Customer{UserID: r.UserID, Username: r.Username, Email: r.Email}
			}
			views = append(views, v)
			i = len(views) - 1
			index[r.OrderID] = i
		}
		if r.ProductID == "" {
			continue
		}
		views[i].Items = append(views[i].Items, ViewItem{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			Price:       r.Price,
		})
	}
	return views
}

func decodeAddress(orderID string, raw []byte, log logrus.FieldLogger) *ShippingAddress {
	if len(raw) == 0 {
		log.WithField("order_id", orderID).Warn("order has no shipping address")
		return nil
	}
	var addr ShippingAddress
	if err := json.Unmarshal(raw, &addr); err != nil {
		log.WithError(err).WithField("order_id", orderID).Warn("malformed shipping address")
		return nil
	}
	return &addr
}
