package catalog

import (
	"context"
	"embed"

	"github.com/aretw0/furrow/internal/platform"
	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the catalog schema to s.
func Migrate(ctx context.Context, s *sqlstore.Store) error {
	dir := "migrations/sqlite"
	if s.Driver() == sqlstore.DriverPostgres {
		dir = "migrations/postgres"
	}
	return s.Migrate(ctx, migrationsFS, dir)
}

// Install registers the catalog entities and conversions on e.
func Install(e *platform.Engine) error {
	RegisterMappings(e.Mapper())
	return platform.Register[*Product, int64](e, Table)
}
