package sqlstore

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/furrow/pkg/core"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Driver       string `json:"driver"`
	OpenConns    int    `json:"open_conns"`
	InUse        int    `json:"in_use"`
	OpenContexts int64  `json:"open_contexts"`
	Commits      int64  `json:"commits"`
	ReadOnly     bool   `json:"read_only"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	stats := s.db.Stats()
	return StoreState{
		Driver:       s.driver,
		OpenConns:    stats.OpenConnections,
		InUse:        stats.InUse,
		OpenContexts: s.open.Load(),
		Commits:      s.commits.Load(),
		ReadOnly:     s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "sql-store"
}

// State implements introspection.Introspectable.
func (c *Context) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.ContextState{
		Backend:       c.store.driver,
		Tracked:       c.tracker.Counts(),
		InTransaction: c.tx != nil,
		Closed:        c.closed,
	}
}

// ComponentType implements introspection.Component.
func (c *Context) ComponentType() string {
	return "sql-context"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Context)(nil)
var _ core.Context = (*Context)(nil)
var _ core.Store = (*Store)(nil)
