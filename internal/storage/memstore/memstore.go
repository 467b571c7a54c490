// Package memstore is an in-process backend for local runs and tests. A
// single semaphore serialises access: an order transaction holds it from
// Begin until Commit or Rollback, so uncommitted state is never observed.
package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/seed"
)

var (
	_ orders.Store        = (*Store)(nil)
	_ orders.HistoryStore = (*Store)(nil)
	_ cart.Store          = (*Store)(nil)
	_ catalog.Reader      = (*Store)(nil)
	_ seed.Target         = (*Store)(nil)
)

// User is a customer record as provisioned by the auth collaborator.
type User = seed.User

type cartItem struct {
	id        string
	userID    string
	productID string
	quantity  int
	seq       int64
}

// Store keeps every table in maps guarded by sem.
type Store struct {
	sem chan struct{}

	users    map[string]User
	products map[string]catalog.Product
	cart     map[string]*cartItem
	orders   map[string]orders.Order
	lines    map[string][]orders.Line

	seq   int64
	newID func() string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sem:      make(chan struct{}, 1),
		users:    map[string]User{},
		products: map[string]catalog.Product{},
		cart:     map[string]*cartItem{},
		orders:   map[string]orders.Order{},
		lines:    map[string][]orders.Line{},
		newID:    uuid.NewString,
	}
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() { <-s.sem }

// PutUser inserts or replaces a user.
func (s *Store) PutUser(ctx context.Context, u User) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.users[u.UserID] = u
	return nil
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if p.StockQuantity < 0 {
		return apperr.Invalid("stockQuantity", "must not be negative")
	}
	s.products[p.ProductID] = p
	return nil
}

// DeleteProduct removes a product and cascades into cart and order lines.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	delete(s.products, productID)
	for id, it := range s.cart {
		if it.productID == productID {
			delete(s.cart, id)
		}
	}
	for orderID, ls := range s.lines {
		kept := ls[:0]
		for _, l := range ls {
			if l.ProductID != productID {
				kept = append(kept, l)
			}
		}
		s.lines[orderID] = kept
	}
	return nil
}

// Product implements catalog.Reader.
func (s *Store) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "product", ID: productID}
	}
	return &p, nil
}

// Stock implements inventory.StockReader.
func (s *Store) Stock(ctx context.Context, productID string) (int, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.StockQuantity, nil
}

// DecrementStock implements inventory.Decrementer outside a transaction.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return s.decrementLocked(productID, quantity)
}

func (s *Store) decrementLocked(productID string, quantity int) error {
	p, ok := s.products[productID]
	if !ok || p.StockQuantity < quantity {
		return &apperr.InsufficientStockError{ProductID: productID}
	}
	p.StockQuantity -= quantity
	s.products[productID] = p
	return nil
}

// Lines implements cart.Store.
func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	items := make([]*cartItem, 0)
	for _, it := range s.cart {
		if it.userID == userID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]cart.Line, 0, len(items))
	for _, it := range items {
		p, ok := s.products[it.productID]
		if !ok {
			continue
		}
		out = append(out, cart.Line{
			CartItemID:    it.id,
			UserID:        it.userID,
			ProductID:     it.productID,
			Quantity:      it.quantity,
			Name:          p.Name,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
		})
	}
	return out, nil
}

// AddItem implements cart.Store.
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	if _, ok := s.products[productID]; !ok {
		return &apperr.NotFoundError{Resource: "product", ID: productID}
	}
	for _, it := range s.cart {
		if it.userID == userID && it.productID == productID {
			it.quantity += quantity
			return nil
		}
	}
	s.seq++
	id := s.newID()
	s.cart[id] = &cartItem{id: id, userID: userID, productID: productID, quantity: quantity, seq: s.seq}
	return nil
}

// UpdateQuantity implements cart.Store.
func (s *Store) UpdateQuantity(ctx context.Context, cartItemID, userID string, quantity int) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	it, ok := s.cart[cartItemID]
	if !ok || it.userID != userID {
		return &apperr.NotFoundError{Resource: "cart item", ID: cartItemID}
	}
	it.quantity = quantity
	return nil
}

// RemoveItem implements cart.Store.
func (s *Store) RemoveItem(ctx context.Context, cartItemID, userID string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	it, ok := s.cart[cartItemID]
	if !ok || it.userID != userID {
		return &apperr.NotFoundError{Resource: "cart item", ID: cartItemID}
	}
	delete(s.cart, cartItemID)
	return nil
}

// Clear implements cart.Store.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.clearLocked(userID)
	return nil
}

func (s *Store) clearLocked(userID string) []*cartItem {
	var removed []*cartItem
	for id, it := range s.cart {
		if it.userID == userID {
			removed = append(removed, it)
			delete(s.cart, id)
		}
	}
	return removed
}

// HistoryRows implements orders.HistoryStore.
func (s *Store) HistoryRows(ctx context.Context, scope orders.Scope) ([]orders.HistoryRow, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	headers := make([]orders.Order, 0)
	for _, o := range s.orders {
		if scope.All || o.UserID == scope.UserID {
			headers = append(headers, o)
		}
	}
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].OrderDate.Equal(headers[j].OrderDate) {
			return headers[i].OrderID < headers[j].OrderID
		}
		return headers[i].OrderDate.After(headers[j].OrderDate)
	})

	var rows []orders.HistoryRow
	for _, o := range headers {
		addr, err := encodeAddress(o.ShippingAddress)
		if err != nil {
			return nil, err
		}
		u := s.users[o.UserID]
		base := orders.HistoryRow{
			OrderID:         o.OrderID,
			UserID:          o.UserID,
			Username:        u.Username,
			Email:           u.Email,
			TotalAmount:     o.TotalAmount,
			ShippingAddress: addr,
			Status:          o.Status,
			OrderDate:       o.OrderDate,
		}
		ls := s.lines[o.OrderID]
		if len(ls) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, l := range ls {
			r := base
			r.ProductID = l.ProductID
			r.ProductName = s.products[l.ProductID].Name
			r.Quantity = l.Quantity
			r.Price = l.Price
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Begin implements orders.Store. The returned scope holds the store until
// it is committed or rolled back.
func (s *Store) Begin(ctx context.Context) (orders.Tx, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	return &tx{s: s}, nil
}
