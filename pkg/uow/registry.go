package uow

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/furrow/pkg/core"
)

type factoryFunc func(core.Context) (any, error)

// Registry maps entity / id type pairs to repository constructors. It is filled
// at startup and read by every unit of work.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.RepositoryKey]factoryFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[core.RepositoryKey]factoryFunc)}
}

// Register installs the constructor for E's repository, replacing any previous one.
func Register[E core.Entity[ID], ID comparable](r *Registry, fn func(core.Context) (core.Repository[E, ID], error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[core.KeyFor[E, ID]()] = func(c core.Context) (any, error) {
		return fn(c)
	}
}

func (r *Registry) lookup(key core.RepositoryKey) (factoryFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[key]
	return f, ok
}

// Keys lists the registered repositories.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k.String())
	}
	slices.Sort(out)
	return out
}

func (r *Registry) build(key core.RepositoryKey, c core.Context) (any, error) {
	f, ok := r.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, core.ErrNotRegistered)
	}
	return f(c)
}
