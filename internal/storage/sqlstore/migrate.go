package sqlstore

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrationsFS embed.FS

// Direction of a migration run.
type Direction string

// Migration directions
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies the embedded schema migrations. It opens its own
// connection because closing the migrator closes the database handle.
func Migrate(cfg Config, dir Direction, log logrus.FieldLogger) error {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return err
	}
	dsn, err := d.normalizeDSN(cfg.DSN, true)
	if err != nil {
		return err
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}

	m, err := newMigrator(db, d)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.WithFields(logrus.Fields{"source_error": srcErr, "db_error": dbErr}).Warn("closing migrator")
		}
	}()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return errors.Errorf("unknown migration direction %q", dir)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.WithField("direction", dir).Info("schema already up to date")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "migrate %s", dir)
	}

	version, dirty, verr := m.Version()
	log.WithFields(logrus.Fields{"direction": dir, "version": version, "dirty": dirty, "version_error": verr}).
		Info("schema migrated")
	return nil
}

func newMigrator(db *sql.DB, d dialect) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, d.migrations)
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}

	switch d.name {
	case DriverMySQL:
		drv, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			return nil, errors.Wrap(err, "mysql migration driver")
		}
		m, err := migrate.NewWithInstance("iofs", src, "mysql", drv)
		return m, errors.Wrap(err, "new migrator")
	default:
		drv, err := migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			return nil, errors.Wrap(err, "pgx migration driver")
		}
		m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
		return m, errors.Wrap(err, "new migrator")
	}
}
