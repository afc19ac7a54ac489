package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
	"github.com/aretw0/furrow/pkg/service"
	"github.com/aretw0/furrow/pkg/uow"
)

// Migrator applies schema migrations to a freshly opened SQL store.
type Migrator func(ctx context.Context, s *sqlstore.Store) error

// options holds the internal configuration for an Engine.
type options struct {
	store        core.Store
	logger       *slog.Logger
	backend      string
	config       map[string]any
	mapper       *mapping.Default
	registry     *uow.Registry
	interceptors []service.Interceptor
	events       chan<- core.Event
	migrator     Migrator
	registerer   prometheus.Registerer
}

// Option defines a functional option for configuring an Engine.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		backend: BackendMemory,
		config:  make(map[string]any),
	}
}

// WithBackend selects the store by name: "memory", "sqlite" or "postgres".
// Defaults to "memory".
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithStore injects an already built store. The backend option is ignored and
// the engine does not close the store.
func WithStore(s core.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLogger sets the logger shared by the store, the units of work and the services.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMapper sets the mapper used by mapped entries, projections and *As reads.
func WithMapper(m *mapping.Default) Option {
	return func(o *options) {
		o.mapper = m
	}
}

// WithRegistry shares a repository registry between engines.
func WithRegistry(r *uow.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithInterceptors appends service interceptors applied to every service the
// engine builds.
func WithInterceptors(ics ...service.Interceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, ics...)
	}
}

// WithEvents publishes every committed change on ch. Sends never block commits;
// events are dropped when ch is full.
func WithEvents(ch chan<- core.Event) Option {
	return func(o *options) {
		o.events = ch
	}
}

// WithMigrator runs m right after a SQL store is opened.
func WithMigrator(m Migrator) Option {
	return func(o *options) {
		o.migrator = m
	}
}

// WithMetrics records service metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Commits fail with core.ErrReadOnly.
// 2. Migrations are refused.
// 3. Dev Safety is BYPASSED (uses the real database).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true), SQLite database files are re-rooted into a temporary
// directory so development runs never touch the real database.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithForceTemp always re-roots SQLite database files into the temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithPool tunes the SQL connection pool. Zero values keep the driver defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(o *options) {
		o.config["max_open_conns"] = maxOpen
		o.config["max_idle_conns"] = maxIdle
		o.config["conn_max_lifetime"] = maxLifetime
	}
}

// WithPaging sets the default and maximum page sizes and the base of page links.
func WithPaging(defaultSize, maxSize int, baseURL string) Option {
	return func(o *options) {
		o.config["page_default"] = defaultSize
		o.config["page_max"] = maxSize
		o.config["page_base_url"] = baseURL
	}
}

func (o *options) flag(key string, def bool) bool {
	if v, ok := o.config[key].(bool); ok {
		return v
	}
	return def
}

func (o *options) int(key string, def int) int {
	if v, ok := o.config[key].(int); ok {
		return v
	}
	return def
}
