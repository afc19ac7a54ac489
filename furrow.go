package furrow

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/furrow/internal/platform"
	"github.com/aretw0/furrow/pkg/config"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
	"github.com/aretw0/furrow/pkg/service"
	"github.com/aretw0/furrow/pkg/uow"
)

// --- Types ---

// Engine wires a store, the repository registry and the unit of work factory.
type Engine = platform.Engine

// Migrator applies schema migrations to a freshly opened SQL store.
type Migrator = platform.Migrator

// UnitOfWork is the scope every service is bound to.
type UnitOfWork = uow.UnitOfWork

// Service is the CRUD data service for E.
type Service[E core.Entity[ID], ID comparable] = service.Service[E, ID]

// ReadService is the read-only data service for E.
type ReadService[E core.Entity[ID], ID comparable] = service.ReadService[E, ID]

// Backend names accepted by WithBackend.
const (
	BackendMemory   = platform.BackendMemory
	BackendSQLite   = platform.BackendSQLite
	BackendPostgres = platform.BackendPostgres
)

// --- Configuration ---

// Option defines a functional option for configuring an Engine.
type Option = platform.Option

// WithBackend selects the store by name. Defaults to "memory".
func WithBackend(name string) Option {
	return platform.WithBackend(name)
}

// WithStore injects an already built store.
func WithStore(s core.Store) Option {
	return platform.WithStore(s)
}

// WithLogger sets the logger shared by the store, units of work and services.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithMapper sets the mapper used by mapped entries and projections.
func WithMapper(m *mapping.Default) Option {
	return platform.WithMapper(m)
}

// WithRegistry shares a repository registry between engines.
func WithRegistry(r *uow.Registry) Option {
	return platform.WithRegistry(r)
}

// WithInterceptors appends interceptors to every service.
func WithInterceptors(ics ...service.Interceptor) Option {
	return platform.WithInterceptors(ics...)
}

// WithEvents publishes committed changes on ch.
func WithEvents(ch chan<- core.Event) Option {
	return platform.WithEvents(ch)
}

// WithMigrator runs m right after a SQL store is opened.
func WithMigrator(m Migrator) Option {
	return platform.WithMigrator(m)
}

// WithMetrics records service metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return platform.WithMetrics(reg)
}

// WithReadOnly rejects every commit.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the SQLite sandbox used by `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithForceTemp always sandboxes SQLite database files.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithPool tunes the SQL connection pool.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return platform.WithPool(maxOpen, maxIdle, maxLifetime)
}

// WithPaging sets page size limits and the base of page links.
func WithPaging(defaultSize, maxSize int, baseURL string) Option {
	return platform.WithPaging(defaultSize, maxSize, baseURL)
}

// --- Factory ---

// New creates an Engine. dsn is backend-specific and ignored by "memory".
func New(ctx context.Context, dsn string, opts ...Option) (*Engine, error) {
	return platform.New(ctx, dsn, opts...)
}

// Open creates an Engine from a loaded configuration.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	return platform.Open(ctx, cfg, logger, opts...)
}

// ErrNoConfig is returned by FindConfig when no config file exists up to the
// filesystem root.
var ErrNoConfig = platform.ErrNoConfig

// FindConfig looks upwards from dir for a furrow config file.
func FindConfig(dir string) (string, error) {
	return platform.FindConfig(dir)
}
