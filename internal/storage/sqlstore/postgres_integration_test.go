//go:build integration

package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/inventory"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/seed"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	cfg := Config{Driver: DriverPostgres, DSN: dsn, MaxOpenConns: 20}
	require.NoError(t, Migrate(cfg, Up, log))

	s, err := Open(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.PutUser(ctx, seed.User{UserID: "u1", Username: "ada", Email: "ada@example.com"}))
	require.NoError(t, s.PutProduct(ctx, catalog.Product{ProductID: "P1", Name: "kettle", Price: decimal.RequireFromString("10.00"), StockQuantity: 5}))
	require.NoError(t, s.PutProduct(ctx, catalog.Product{ProductID: "P2", Name: "mug", Price: decimal.RequireFromString("4.50"), StockQuantity: 3}))
	return s
}

func TestPostgres_PlaceOrderAndHistory(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	log, _ := test.NewNullLogger()

	require.NoError(t, s.AddItem(ctx, "u1", "P1", 1))
	require.NoError(t, s.AddItem(ctx, "u1", "P1", 2))
	cartLines, err := s.Lines(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cartLines, 1)
	assert.Equal(t, 3, cartLines[0].Quantity)

	lines := []orders.Line{
		{ProductID: "P1", Quantity: 3, Price: decimal.RequireFromString("10.00")},
		{ProductID: "P2", Quantity: 1, Price: decimal.RequireFromString("4.50")},
	}
	total := orders.Total(lines)
	order, err := orders.NewCoordinator(s, log).PlaceOrder(ctx, orders.PlaceOrderInput{
		UserID: "u1", Lines: lines, TotalAmount: &total,
		ShippingAddress: &orders.ShippingAddress{FullName: "Ada", AddressLine1: "1 Row", City: "London", State: "LDN", PostalCode: "N1", Phone: "1"},
	})
	require.NoError(t, err)

	n, err := s.Stock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	cartLines, err = s.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cartLines)

	views, err := orders.NewHistory(s, log).Orders(ctx, orders.AllScope())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, order.OrderID, views[0].OrderID)
	assert.Len(t, views[0].Items, 2)
	require.NotNil(t, views[0].Customer)
	assert.Equal(t, "ada", views[0].Customer.Username)
	require.NotNil(t, views[0].ShippingAddress)
	assert.Equal(t, "London", views[0].ShippingAddress.City)
}

func TestPostgres_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	log, _ := test.NewNullLogger()
	require.NoError(t, s.AddItem(ctx, "u1", "P2", 1))

	lines := []orders.Line{
		{ProductID: "P1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: "P2", Quantity: 4, Price: decimal.RequireFromString("4.50")},
	}
	total := orders.Total(lines)
	_, err := orders.NewCoordinator(s, log).PlaceOrder(ctx, orders.PlaceOrderInput{
		UserID: "u1", Lines: lines, TotalAmount: &total,
		ShippingAddress: &orders.ShippingAddress{FullName: "Ada", AddressLine1: "1 Row", City: "London", State: "LDN", PostalCode: "N1", Phone: "1"},
	})
	se, ok := apperr.InsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "P2", se.ProductID)

	n, err := s.Stock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	rows, err := s.HistoryRows(ctx, orders.AllScope())
	require.NoError(t, err)
	assert.Empty(t, rows)
	cartLines, err := s.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cartLines, 1)
}

func TestPostgres_ConcurrentDecrements(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	log, _ := test.NewNullLogger()
	ledger := inventory.NewLedger(s, log)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.DecrementStock(ctx, "P1", 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	n, err := s.Stock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, ok)
	assert.Zero(t, n)
}

func TestPostgres_CartOwnership(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	require.NoError(t, s.AddItem(ctx, "u1", "P1", 1))
	lines, err := s.Lines(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, apperr.IsNotFound(s.UpdateQuantity(ctx, lines[0].CartItemID, "u2", 4)))
	assert.True(t, apperr.IsNotFound(s.AddItem(ctx, "u1", "missing", 1)))
	require.NoError(t, s.UpdateQuantity(ctx, lines[0].CartItemID, "u1", 1))
}
