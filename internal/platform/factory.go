package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
	"github.com/aretw0/furrow/pkg/paging"
	"github.com/aretw0/furrow/pkg/service"
	"github.com/aretw0/furrow/pkg/uow"
)

// Engine wires a store, a repository registry and the unit of work factory,
// plus the collaborators every service built from it shares.
type Engine struct {
	store     core.Store
	ownsStore bool
	backend   string
	registry  *uow.Registry
	factory   *uow.Factory
	mapper    *mapping.Default
	logger    *slog.Logger
	svcOpts   []service.Option

	pageDefault int
	pageMax     int
	links       paging.URIBuilder
}

// New builds an engine. The dsn argument is backend-specific: ignored by
// "memory", a file name or DSN for "sqlite", a connection string for "postgres".
//
//	e, err := platform.New(ctx, "file:shop.db", platform.WithBackend("sqlite"))
func New(ctx context.Context, dsn string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.mapper == nil {
		o.mapper = mapping.New()
	}
	if o.registry == nil {
		o.registry = uow.NewRegistry()
	}

	links, err := paging.NewURIBuilder(stringOr(o.config["page_base_url"], "http://localhost/"))
	if err != nil {
		return nil, fmt.Errorf("invalid page base url: %w", err)
	}

	interceptors := o.interceptors
	if o.registerer != nil {
		m, err := service.Metrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register service metrics: %w", err)
		}
		interceptors = append([]service.Interceptor{m}, interceptors...)
	}

	store, owns, err := openStore(ctx, dsn, o)
	if err != nil {
		return nil, err
	}

	uowOpts := []uow.Option{uow.WithLogger(o.logger)}
	if o.events != nil {
		uowOpts = append(uowOpts, uow.WithEvents(o.events))
	}

	backend := o.backend
	if o.store != nil {
		backend = fmt.Sprintf("%T", o.store)
	}

	return &Engine{
		store:     store,
		ownsStore: owns,
		backend:   backend,
		registry:  o.registry,
		factory:   uow.NewFactory(store, o.registry, uowOpts...),
		mapper:    o.mapper,
		logger:    o.logger,
		svcOpts: []service.Option{
			service.WithMapper(o.mapper),
			service.WithLogger(o.logger),
			service.WithInterceptors(interceptors...),
		},
		pageDefault: o.int("page_default", 10),
		pageMax:     o.int("page_max", 100),
		links:       links,
	}, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// Store returns the underlying store.
func (e *Engine) Store() core.Store { return e.store }

// Backend returns the backend name, or the store type for injected stores.
func (e *Engine) Backend() string { return e.backend }

// Registry returns the repository registry.
func (e *Engine) Registry() *uow.Registry { return e.registry }

// Mapper returns the shared mapper. Conversions registered on it are visible
// to every service of the engine.
func (e *Engine) Mapper() *mapping.Default { return e.mapper }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Begin opens a unit of work. The caller owns it and must Close it.
func (e *Engine) Begin(ctx context.Context) (*uow.UnitOfWork, error) {
	return e.factory.Begin(ctx)
}

// Scope runs fn with a fresh unit of work that is closed on every exit path.
func (e *Engine) Scope(ctx context.Context, fn func(*uow.UnitOfWork) error) error {
	return uow.Scope(ctx, e.factory, fn)
}

// ServiceOptions returns the options every service of the engine is built with.
func (e *Engine) ServiceOptions() []service.Option {
	return append([]service.Option(nil), e.svcOpts...)
}

// PageFilter clamps a requested page to the engine's page size limits.
func (e *Engine) PageFilter(number, size int) paging.Filter {
	return paging.NewFilterWithLimits(number, size, e.pageDefault, e.pageMax)
}

// Links returns the builder for page links.
func (e *Engine) Links() paging.URIBuilder { return e.links }

// Close closes the store if the engine opened it.
func (e *Engine) Close() error {
	if !e.ownsStore {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return errors.Join(fmt.Errorf("close %s store", e.backend), err)
	}
	return nil
}
