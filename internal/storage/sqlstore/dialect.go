package sqlstore

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Supported values of Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// dialect holds the statements that differ between PostgreSQL and MySQL.
// Everything else is written with ? placeholders and rebound by sqlx.
type dialect struct {
	name       string
	driverName string // database/sql driver name
	migrations string // directory inside the embedded migrations FS

	upsertCartItem string
	upsertUser     string
	upsertProduct  string
}

var (
	postgresDialect = dialect{
		name:       DriverPostgres,
		driverName: "pgx",
		migrations: "migrations/postgres",
		upsertCartItem: `INSERT INTO cart_items (id, user_id, product_id, quantity) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		upsertUser: `INSERT INTO users (id, username, email, role) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, role = EXCLUDED.role`,
		upsertProduct: `INSERT INTO products (id, name, price, stock_quantity) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`,
	}
	mysqlDialect = dialect{
		name:       DriverMySQL,
		driverName: "mysql",
		migrations: "migrations/mysql",
		upsertCartItem: `INSERT INTO cart_items (id, user_id, product_id, quantity) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		upsertUser: `INSERT INTO users (id, username, email, role) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE username = VALUES(username), email = VALUES(email), role = VALUES(role)`,
		upsertProduct: `INSERT INTO products (id, name, price, stock_quantity) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), price = VALUES(price), stock_quantity = VALUES(stock_quantity)`,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres, "pgx":
		return postgresDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	}
	return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
}

// normalizeDSN applies the driver options the store relies on. For MySQL
// that is parseTime (DATETIME scans into time.Time) and clientFoundRows
// (RowsAffected counts matched rows, not changed ones).
func (d dialect) normalizeDSN(dsn string, multiStatements bool) (string, error) {
	if d.name != DriverMySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.MultiStatements = multiStatements
	return cfg.FormatDSN(), nil
}

// isForeignKeyViolation reports a missing parent row (unknown user or product).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1452
	}
	return false
}

// isCheckViolation reports a violated CHECK constraint such as stock >= 0.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 3819
	}
	return false
}
