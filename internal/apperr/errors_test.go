package apperr

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockMessage(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p-42"}
	assert.Equal(t, "Insufficient stock or product not found for product ID: p-42", err.Error())
}

func TestPersistenceKeepsClassifiedErrors(t *testing.T) {
	stock := &InsufficientStockError{ProductID: "p1"}
	wrapped := fmt.Errorf("commit: %w", stock)

	got := Persistence("commit", wrapped)
	se, ok := InsufficientStock(got)
	require.True(t, ok)
	assert.Equal(t, "p1", se.ProductID)

	var pe *PersistenceError
	assert.NotErrorAs(t, got, &pe)
}

func TestPersistenceWrapsDriverErrors(t *testing.T) {
	cause := pkgerrors.New("connection reset")
	got := Persistence("insert order", pkgerrors.Wrap(cause, "exec"))

	var pe *PersistenceError
	require.ErrorAs(t, got, &pe)
	assert.Equal(t, "insert order", pe.Op)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, Persistence("noop", nil))
}

func TestClassification(t *testing.T) {
	assert.True(t, IsValidation(Invalid("items", "required")))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", &NotFoundError{Resource: "cart item", ID: "c1"})))
	assert.False(t, IsNotFound(Invalid("a", "b")))
	assert.True(t, Classified(Upstream("sqs", fmt.Errorf("timeout"))))
	assert.False(t, Classified(fmt.Errorf("plain")))
}
