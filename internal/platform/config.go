package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/furrow/pkg/config"
	"github.com/aretw0/furrow/pkg/service"
)

// ConfigOptions translates cfg into engine options. logger receives the
// operation log when cfg.Service.LogOperations is set.
func ConfigOptions(cfg *config.Config, logger *slog.Logger) ([]Option, error) {
	opts := []Option{
		WithBackend(cfg.Store.Backend),
		WithReadOnly(cfg.Store.ReadOnly),
		WithPool(cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns, cfg.Store.ConnMaxLifetime),
		WithPaging(cfg.Paging.DefaultSize, cfg.Paging.MaxSize, cfg.Paging.BaseURL),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	if cfg.Service.Metrics {
		opts = append(opts, WithMetrics(prometheus.DefaultRegisterer))
	}
	if cfg.Service.LogOperations != "" && logger != nil {
		ic, err := service.Match(cfg.Service.LogOperations, service.Logging(logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithInterceptors(ic))
	}
	return opts, nil
}

// Open builds an engine from a validated configuration. Options in opts are
// applied after the ones derived from cfg, so they win. Migrations only run
// when cfg.Store.Migrate is set.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	base, err := ConfigOptions(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	all := append(base, opts...)
	if !cfg.Store.Migrate {
		all = append(all, WithMigrator(nil))
	}
	return New(ctx, cfg.Store.DSN, all...)
}
