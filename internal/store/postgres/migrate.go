package postgres

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded schema migrations over a pgx pool
type Migrator struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewMigrator returns a migration runner backed by goose
func NewMigrator(ctx context.Context, dsn string, log logrus.FieldLogger) (*Migrator, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create pgxpool")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Migrator{pool: pool, log: log}, nil
}

func configureGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "configure goose")
	}
	return nil
}

// Up applies pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	return m.withDB(ctx, func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		m.log.Info("applying migrations")
		if err := goose.UpContext(runCtx, db, migrationsDir); err != nil {
			return errors.Wrap(err, "apply migrations")
		}
		m.log.Info("migrations applied")
		return nil
	})
}

// Status logs applied and pending migrations
func (m *Migrator) Status(ctx context.Context) error {
	return m.withDB(ctx, func(db *sql.DB) error {
		if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
			return errors.Wrap(err, "migration status")
		}
		return nil
	})
}

// Down rolls back the latest migration, or down to targetVersion when positive
func (m *Migrator) Down(ctx context.Context, targetVersion int64) error {
	return m.withDB(ctx, func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		if targetVersion > 0 {
			m.log.WithField("target", targetVersion).Info("rolling back migrations")
			if err := goose.DownToContext(runCtx, db, migrationsDir, targetVersion); err != nil {
				return errors.Wrapf(err, "rollback to version %d", targetVersion)
			}
		} else {
			m.log.Info("rolling back latest migration")
			if err := goose.DownContext(runCtx, db, migrationsDir); err != nil {
				return errors.Wrap(err, "rollback latest migration")
			}
		}
		m.log.Info("rollback complete")
		return nil
	})
}

// Ping ensures the database is reachable
func (m *Migrator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return errors.Wrap(m.pool.Ping(ctx), "ping database")
}

// Close releases the pool
func (m *Migrator) Close() {
	m.pool.Close()
}

// withDB hands goose a database/sql view of the pool
func (m *Migrator) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	if err := configureGoose(); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping sql connection")
	}
	return fn(db)
}

// Migrate applies the embedded migrations on an open handle
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := configureGoose(); err != nil {
		return err
	}
	return errors.Wrap(goose.UpContext(ctx, db, migrationsDir), "apply migrations")
}
