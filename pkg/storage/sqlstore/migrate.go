package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// migrationSet returns the goose dialect and migration directory for driver
func migrationSet(driver string) (goose.Dialect, fs.FS, error) {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch driver {
	case DriverPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	case DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	default:
		return "", nil, fmt.Errorf("no migrations for driver %q", driver)
	}

	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return "", nil, err
	}
	return dialect, sub, nil
}

// Migrate applies every pending migration to the primary and returns the
// number applied.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	dialect, fsys, err := migrationSet(s.conns.Driver())
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(dialect, s.conns.Primary().DB, fsys)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		s.logger.WithFields(map[string]interface{}{
			"version":     r.Source.Version,
			"duration_ms": r.Duration.Milliseconds(),
		}).Info("Applied migration")
	}
	return len(results), nil
}
