package memstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

var errTxDone = errors.New("memstore: transaction already finished")

// tx mutates the maps in place and records an undo step per mutation.
type tx struct {
	s    *Store
	undo []func()
	done bool
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if t.done {
		return errTxDone
	}
	if _, exists := t.s.orders[o.OrderID]; exists {
		return apperr.Persistence("insert order", errors.New("duplicate order id "+o.OrderID))
	}
	t.s.orders[o.OrderID] = o
	t.undo = append(t.undo, func() { delete(t.s.orders, o.OrderID) })
	return nil
}

func (t *tx) InsertLine(_ context.Context, orderID string, l orders.Line) error {
	if t.done {
		return errTxDone
	}
	if _, ok := t.s.orders[orderID]; !ok {
		return apperr.Persistence("insert order line", errors.New("unknown order "+orderID))
	}
	prev := t.s.lines[orderID]
	t.s.lines[orderID] = append(append([]orders.Line(nil), prev...), l)
	t.undo = append(t.undo, func() {
		if prev == nil {
			delete(t.s.lines, orderID)
			return
		}
		t.s.lines[orderID] = prev
	})
	return nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, quantity int) error {
	if t.done {
		return errTxDone
	}
	if err := t.s.decrementLocked(productID, quantity); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		if p, ok := t.s.products[productID]; ok {
			p.StockQuantity += quantity
			t.s.products[productID] = p
		}
	})
	return nil
}

func (t *tx) ClearCart(_ context.Context, userID string) error {
	if t.done {
		return errTxDone
	}
	removed := t.s.clearLocked(userID)
	t.undo = append(t.undo, func() {
		for _, it := range removed {
			t.s.cart[it.id] = it
		}
	})
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.undo = nil
	t.s.unlock()
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.s.unlock()
	return nil
}

func encodeAddress(a orders.ShippingAddress) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, apperr.Persistence("encode shipping address", err)
	}
	return b, nil
}
