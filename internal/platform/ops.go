package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/furrow/pkg/adapters/memory"
	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
	"github.com/aretw0/furrow/pkg/core"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// openStore builds the store selected by o. The second return value reports
// whether the engine owns the store.
func openStore(ctx context.Context, dsn string, o *options) (core.Store, bool, error) {
	if o.store != nil {
		return o.store, false, nil
	}

	readOnly := o.flag("read_only", false)

	switch o.backend {
	case BackendMemory, "":
		return memory.NewStore(
			memory.WithLogger(o.logger),
			memory.WithReadOnly(readOnly),
			memory.WithMapper(o.mapper),
		), true, nil
	case BackendSQLite, BackendPostgres:
		s, err := openSQL(ctx, dsn, o)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	default:
		return nil, false, fmt.Errorf("unknown backend: %s", o.backend)
	}
}

func openSQL(ctx context.Context, dsn string, o *options) (*sqlstore.Store, error) {
	readOnly := o.flag("read_only", false)
	driver := sqlstore.DriverPostgres

	if o.backend == BackendSQLite {
		driver = sqlstore.DriverSQLite

		// Bypass Safety if:
		// 1. ReadOnly is active (inherently safe)
		// 2. User explicitly disabled DevSafety
		bypassSafety := readOnly || !o.flag("dev_safety", true)
		useTemp := o.flag("temp_dir", false) || (IsDevRun() && !bypassSafety)

		resolved, err := ResolveSQLiteDSN(dsn, useTemp)
		if err != nil {
			return nil, err
		}
		if useTemp && resolved != dsn {
			o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_dsn", dsn, "resolved_dsn", resolved)
		} else if IsDevRun() && bypassSafety && !readOnly {
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "dsn", dsn)
		}
		dsn = resolved
	}

	lifetime, _ := o.config["conn_max_lifetime"].(time.Duration)
	s, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    o.int("max_open_conns", 0),
		MaxIdleConns:    o.int("max_idle_conns", 0),
		ConnMaxLifetime: lifetime,
	}, sqlstore.WithLogger(o.logger), sqlstore.WithReadOnly(readOnly))
	if err != nil {
		return nil, err
	}

	if o.migrator != nil && !readOnly {
		if err := o.migrator(ctx, s); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveSQLiteDSN re-roots the database file of a SQLite DSN into a
// namespaced temporary directory when forceTemp is set. In-memory databases
// and files already inside the temporary directory are returned unchanged.
func ResolveSQLiteDSN(dsn string, forceTemp bool) (string, error) {
	if !forceTemp {
		return dsn, nil
	}

	scheme := ""
	rest := dsn
	if after, ok := strings.CutPrefix(dsn, "file:"); ok {
		scheme, rest = "file:", after
	}
	path, query, hasQuery := strings.Cut(rest, "?")
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.Contains(query, "mode=memory") {
		return dsn, nil
	}

	tempRoot := os.TempDir()
	clean := filepath.Clean(path)
	if abs, err := filepath.Abs(clean); err == nil {
		if rel, err := filepath.Rel(tempRoot, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return dsn, nil
		}
	}

	dir := filepath.Join(tempRoot, "furrow-dev")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	name := filepath.Base(clean)
	if name == "." || name == string(os.PathSeparator) {
		name = "default.db"
	}

	out := scheme + filepath.Join(dir, name)
	if hasQuery {
		out += "?" + query
	}
	return out, nil
}
