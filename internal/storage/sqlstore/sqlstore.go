// Package sqlstore is the relational backend (PostgreSQL through pgx, or
// MySQL) behind the order, cart, inventory and history contracts.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"  // registers "mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/inventory"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

var (
	_ orders.Store        = (*Store)(nil)
	_ orders.HistoryStore = (*Store)(nil)
	_ cart.Store          = (*Store)(nil)
	_ catalog.Reader      = (*Store)(nil)
	_ inventory.Store     = (*Store)(nil)
)

// Config selects the driver and sizes the connection pool.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is safe for concurrent use; every order scope borrows one pooled
// connection for its lifetime.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	log     logrus.FieldLogger
	newID   func() string
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.normalizeDSN(cfg.DSN, false)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(d.driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return New(db, d.name, log)
}

// New wraps an existing handle. driver is DriverPostgres or DriverMySQL.
func New(db *sqlx.DB, driver string, log logrus.FieldLogger) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d, log: log, newID: uuid.NewString}, nil
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity, used by the health route.
func (s *Store) Ping(ctx context.Context) error {
	return apperr.Persistence("ping", s.db.PingContext(ctx))
}

func (s *Store) q(query string) string { return s.db.Rebind(query) }

// Product implements catalog.Reader.
func (s *Store) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	var p catalog.Product
	err := s.db.GetContext(ctx, &p,
		s.q(`SELECT id, name, price, stock_quantity FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "product", ID: productID}
	}
	if err != nil {
		return nil, apperr.Persistence("select product", errors.Wrapf(err, "product %s", productID))
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

// DecrementStock implements inventory.Decrementer in autocommit mode.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) error {
	return decrementStock(ctx, s.db, productID, quantity)
}

// decrementStock is the single conditional statement both the pool and a
// transaction run. Zero matched rows means missing product or low stock.
func decrementStock(ctx context.Context, ex sqlx.ExtContext, productID string, quantity int) error {
	res, err := ex.ExecContext(ctx,
		ex.Rebind(`UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?`),
		quantity, productID, quantity)
	if err != nil {
		if isCheckViolation(err) {
			return &apperr.InsufficientStockError{ProductID: productID}
		}
		return apperr.Persistence("decrement stock", errors.Wrapf(err, "product %s", productID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("decrement stock", errors.Wrap(err, "rows affected"))
	}
	if n == 0 {
		return &apperr.InsufficientStockError{ProductID: productID}
	}
	return nil
}

// Begin implements orders.Store. The scope runs at read committed; the
// conditional decrement, not the isolation level, keeps stock non-negative.
func (s *Store) Begin(ctx context.Context) (orders.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, apperr.Persistence("begin", errors.Wrap(err, "begin transaction"))
	}
	return &txScope{tx: tx}, nil
}
