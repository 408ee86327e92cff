package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/ghuser/agritrack/pkg/config"
)

// Dialect maps a STORE_DRIVER value to the goose dialect for it.
func Dialect(driver string) (goose.Dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return goose.DialectPostgres, nil
	case config.DriverSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("migrator: no dialect for driver %q", driver)
	}
}

// Up applies every pending migration in files to db. files must hold the
// migrations for driver at its root.
func Up(ctx context.Context, db *sql.DB, driver string, files fs.FS) ([]*goose.MigrationResult, error) {
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, files)
	if err != nil {
		return nil, fmt.Errorf("migrator: new provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("migrator: up: %w", err)
	}
	return results, nil
}
