package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.PutUser(ctx, User{UserID: "u1", Username: "ada", Email: "ada@example.com"}))
	require.NoError(t, s.PutProduct(ctx, catalog.Product{ProductID: "P1", Name: "kettle", Price: decimal.NewFromInt(20), StockQuantity: 5}))
	require.NoError(t, s.AddItem(ctx, "u1", "P1", 2))
	return s
}

func TestPutProduct_RejectsNegativeStock(t *testing.T) {
	s := New()
	err := s.PutProduct(context.Background(), catalog.Product{ProductID: "P1", StockQuantity: -1})
	assert.Error(t, err)
}

func TestTxRollbackRestoresEverything(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	o := orders.Order{OrderID: "o1", UserID: "u1", OrderDate: time.Now()}
	require.NoError(t, tx.InsertOrder(ctx, o))
	require.NoError(t, tx.InsertLine(ctx, "o1", orders.Line{ProductID: "P1", Quantity: 2, Price: decimal.NewFromInt(20)}))
	require.NoError(t, tx.DecrementStock(ctx, "P1", 2))
	require.NoError(t, tx.ClearCart(ctx, "u1"))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx), "second rollback is a no-op")

	n, err := s.Stock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, s.orders)
	assert.Empty(t, s.lines)
	lines, err := s.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestTxCommitThenRollbackIsNoop(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DecrementStock(ctx, "P1", 3))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))
	assert.Error(t, tx.Commit(ctx))

	n, err := s.Stock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTxRejectsLineForUnknownOrder(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	assert.Error(t, tx.InsertLine(ctx, "nope", orders.Line{ProductID: "P1", Quantity: 1}))
}

func TestBeginHonoursContext(t *testing.T) {
	s := seeded(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeleteProductCascades(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOrder(ctx, orders.Order{OrderID: "o1", UserID: "u1", OrderDate: time.Now()}))
	require.NoError(t, tx.InsertLine(ctx, "o1", orders.Line{ProductID: "P1", Quantity: 1, Price: decimal.NewFromInt(20)}))
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, s.DeleteProduct(ctx, "P1"))

	lines, err := s.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	rows, err := s.HistoryRows(ctx, orders.UserScope("u1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].ProductID, "header survives without lines")
}

func TestHistoryRowsOrdering(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		require.NoError(t, tx.InsertOrder(ctx, orders.Order{OrderID: id, UserID: "u1", OrderDate: base.Add(offset)}))
		require.NoError(t, tx.InsertLine(ctx, id, orders.Line{ProductID: "P1", Quantity: i + 1, Price: decimal.NewFromInt(20)}))
		require.NoError(t, tx.Commit(ctx))
	}

	rows, err := s.HistoryRows(ctx, orders.AllScope())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{rows[0].OrderID, rows[1].OrderID, rows[2].OrderID})
	assert.Equal(t, "ada", rows[0].Username)
	assert.Equal(t, "kettle", rows[0].ProductName)

	none, err := s.HistoryRows(ctx, orders.UserScope("u2"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
