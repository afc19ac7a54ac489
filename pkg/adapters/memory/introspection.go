package memory

import (
	"maps"
	"slices"

	"github.com/aretw0/introspection"

	"github.com/aretw0/furrow/pkg/core"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Tables       map[string]int `json:"tables"`
	OpenContexts int64          `json:"open_contexts"`
	Commits      int64          `json:"commits"`
	ReadOnly     bool           `json:"read_only"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	names := slices.Sorted(maps.Keys(s.tables))
	tables := make(map[string]int, len(names))
	for _, name := range names {
		tables[name] = s.tables[name].len()
	}
	s.mu.RUnlock()

	return StoreState{
		Tables:       tables,
		OpenContexts: s.open.Load(),
		Commits:      s.commits.Load(),
		ReadOnly:     s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

// State implements introspection.Introspectable.
func (c *Context) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.ContextState{
		Backend:       "memory",
		Tracked:       c.tracker.Counts(),
		InTransaction: c.tx != nil,
		Closed:        c.closed,
	}
}

// ComponentType implements introspection.Component.
func (c *Context) ComponentType() string {
	return "memory-context"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Context)(nil)
var _ core.Context = (*Context)(nil)
var _ core.Store = (*Store)(nil)
