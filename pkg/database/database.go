// Package database wraps *sql.DB with the driver-specific setup the batch
// store needs: PostgreSQL through the pgx stdlib driver and SQLite through
// the pure-Go modernc driver.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Database is a connection pool bound to one SQL dialect.
type Database struct {
	db     *sql.DB
	driver string
	log    logger.Logger
}

// NewPool opens a pool for driver (config.DriverPostgres or config.DriverSQLite)
// and verifies it with a ping.
//
// SQLite gets a single connection: writers are serialised by the pool itself,
// which is what gives appends their per-batch exclusivity on that dialect.
func NewPool(ctx context.Context, driver, dsn string, log logger.Logger) (*Database, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case config.DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("database: open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	case config.DriverSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("database: open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	d := &Database{db: db, driver: driver, log: log}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

// DB returns the underlying pool.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Driver returns the dialect the pool was opened with.
func (d *Database) Driver() string {
	return d.driver
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func (d *Database) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				d.log.ErrorContext(ctx, "database: rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("database: commit tx: %w", err)
	}
	return nil
}

// Rebind rewrites the ? placeholders of query into the dialect's form.
func (d *Database) Rebind(query string) string {
	if d.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Ping checks database connectivity.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: ping %s: %w", d.driver, err)
	}
	return nil
}

// Close closes the pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// IsUniqueViolation reports whether err is a primary key or unique
// constraint failure on either dialect.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
