package sqlstore

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/aretw0/furrow/pkg/core"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("sqlstore: no migration dialect for driver %q", driver)
	}
}

// Migrate applies the goose migrations found in dir of fsys. Read-only stores
// refuse to migrate.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	if s.readOnly {
		return fmt.Errorf("sqlstore: migrate: %w", core.ErrReadOnly)
	}
	dialect, err := gooseDialect(s.driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseMu.Unlock()
	}()
	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("sqlstore: apply migrations: %w", err)
	}
	s.logger.Debug("migrations applied", "driver", s.driver, "dir", dir)
	return nil
}

// MigrationVersion reports the latest applied migration, 0 when none ran.
func (s *Store) MigrationVersion(ctx context.Context) (int64, error) {
	dialect, err := gooseDialect(s.driver)
	if err != nil {
		return 0, err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("sqlstore: set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: migration version: %w", err)
	}
	return v, nil
}
