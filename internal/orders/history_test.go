package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

const addrJSON = `{"fullName":"Ada Lovelace","addressLine1":"12 Analytical Row","city":"London","state":"LDN","postalCode":"N1 9GU","phone":"1"}`

func TestGroupRows(t *testing.T) {
	newer := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := []orders.HistoryRow{
		{OrderID: "o2", UserID: "u1", Username: "ada", Email: "a@x", TotalAmount: money("7"), ShippingAddress: []byte(addrJSON), Status: orders.StatusPending, OrderDate: newer, ProductID: "P1", ProductName: "one", Quantity: 1, Price: money("3")},
		{OrderID: "o2", UserID: "u1", Username: "ada", Email: "a@x", TotalAmount: money("7"), ShippingAddress: []byte(addrJSON), Status: orders.StatusPending, OrderDate: newer, ProductID: "P2", ProductName: "two", Quantity: 2, Price: money("2")},
		{OrderID: "o1", UserID: "u2", Username: "bob", Email: "b@x", TotalAmount: money("5"), ShippingAddress: []byte(addrJSON), Status: orders.StatusShipped, OrderDate: older},
	}

	log, _ := test.NewNullLogger()
	views := orders.GroupRows(rows, false, log)
	require.Len(t, views, 2)
	assert.Equal(t, "o2", views[0].OrderID)
	assert.Len(t, views[0].Items, 2)
	assert.Nil(t, views[0].Customer)
	require.NotNil(t, views[0].ShippingAddress)
	assert.Equal(t, "London", views[0].ShippingAddress.City)

	assert.Equal(t, "o1", views[1].OrderID)
	assert.NotNil(t, views[1].Items)
	assert.Empty(t, views[1].Items)

	withCustomer := orders.GroupRows(rows, true, log)
	require.NotNil(t, withCustomer[1].Customer)
	assert.Equal(t, orders.Customer{UserID: "u2", Username: "bob", Email: "b@x"}, *withCustomer[1].Customer)
}

func TestGroupRows_Empty(t *testing.T) {
	log, _ := test.NewNullLogger()
	views := orders.GroupRows(nil, false, log)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestGroupRows_MalformedAddress(t *testing.T) {
	log, hook := test.NewNullLogger()
	views := orders.GroupRows([]orders.HistoryRow{
		{OrderID: "o1", UserID: "u1", ShippingAddress: []byte("{not json"), ProductID: "P1", Quantity: 1},
	}, false, log)

	require.Len(t, views, 1)
	assert.Nil(t, views[0].ShippingAddress)
	assert.Len(t, views[0].Items, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "o1", hook.LastEntry().Data["order_id"])
}

type rowsStub struct {
	rows  []orders.HistoryRow
	err   error
	scope orders.Scope
}

func (r *rowsStub) HistoryRows(_ context.Context, scope orders.Scope) ([]orders.HistoryRow, error) {
	r.scope = scope
	return r.rows, r.err
}

func TestHistoryOrders(t *testing.T) {
	log, _ := test.NewNullLogger()
	stub := &rowsStub{}
	h := orders.NewHistory(stub, log)

	_, err := h.Orders(context.Background(), orders.Scope{})
	assert.True(t, apperr.IsValidation(err))

	views, err := h.Orders(context.Background(), orders.AllScope())
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.True(t, stub.scope.All)

	stub.err = errors.New("connection reset")
	_, err = h.Orders(context.Background(), orders.UserScope("u1"))
	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "u1", stub.scope.UserID)
}
