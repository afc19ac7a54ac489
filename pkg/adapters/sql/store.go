// Package sqlstore implements change-tracking contexts over database/sql. It
// speaks SQLite through modernc.org/sqlite and PostgreSQL through the pgx stdlib
// driver; statements are built with squirrel and rows scanned with scany.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/aretw0/furrow/pkg/core"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config describes the database to open.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store and its contexts.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadOnly rejects every commit with core.ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// Store is a core.Store over a database/sql pool.
type Store struct {
	db       *sql.DB
	driver   string
	ph       sq.PlaceholderFormat
	logger   *slog.Logger
	readOnly bool
	ownsDB   bool
	keep     *sql.DB
	open     atomic.Int64
	commits  atomic.Int64
}

func placeholders(driver string) (sq.PlaceholderFormat, error) {
	switch driver {
	case DriverSQLite:
		return sq.Question, nil
	case DriverPostgres:
		return sq.Dollar, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// memoryDSN turns a private in-memory SQLite DSN into a uniquely named
// shared-cache one, so every connection of the pool opens the same database.
func memoryDSN(dsn string) (string, bool) {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path != "" && path != ":memory:" {
		return dsn, false
	}
	if strings.Contains(query, "cache=shared") {
		return dsn, false
	}
	out := "file:furrow-" + uuid.NewString() + "?mode=memory&cache=shared"
	if query != "" {
		out += "&" + query
	}
	return out, true
}

// Open opens and pings the database described by cfg. The store owns the pool
// and closes it on Close.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if _, err := placeholders(cfg.Driver); err != nil {
		return nil, err
	}
	dsn, shared := cfg.DSN, false
	if cfg.Driver == DriverSQLite {
		dsn, shared = memoryDSN(cfg.DSN)
	}

	// A shared in-memory database lives as long as one connection to it does.
	var keep *sql.DB
	if shared {
		var err error
		if keep, err = sql.Open(cfg.Driver, dsn); err != nil {
			return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
		}
		keep.SetMaxOpenConns(1)
		keep.SetConnMaxLifetime(0)
		keep.SetConnMaxIdleTime(0)
		if err := keep.PingContext(ctx); err != nil {
			_ = keep.Close()
			return nil, fmt.Errorf("sqlstore: ping %s: %w", cfg.Driver, err)
		}
	}
	closeKeep := func() {
		if keep != nil {
			_ = keep.Close()
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		closeKeep()
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		closeKeep()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", cfg.Driver, err)
	}
	s, err := New(db, cfg.Driver, opts...)
	if err != nil {
		_ = db.Close()
		closeKeep()
		return nil, err
	}
	s.ownsDB = true
	s.keep = keep
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of db.
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	ph, err := placeholders(driver)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		driver: driver,
		ph:     ph,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

func (s *Store) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.ph)
}

// NewContext implements core.Store.
func (s *Store) NewContext(ctx context.Context) (core.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newContext(s), nil
}

// Close implements core.Store.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	err := s.db.Close()
	if s.keep != nil {
		err = errors.Join(err, s.keep.Close())
	}
	return err
}
