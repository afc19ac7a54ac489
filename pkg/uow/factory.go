package uow

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aretw0/furrow/pkg/core"
)

func typeOf(v any) reflect.Type { return reflect.TypeOf(v) }

// Factory creates one unit of work per scope over a shared store.
type Factory struct {
	store    core.Store
	registry *Registry
	opts     []Option
}

// NewFactory returns a factory over store, resolving repositories from registry.
func NewFactory(store core.Store, registry *Registry, opts ...Option) *Factory {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Factory{store: store, registry: registry, opts: opts}
}

// Registry returns the registry shared by every unit of work of the factory.
func (f *Factory) Registry() *Registry { return f.registry }

// Begin opens a new unit of work. The caller owns it and must Close it.
func (f *Factory) Begin(ctx context.Context) (*UnitOfWork, error) {
	c, err := f.store.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence context: %w", err)
	}
	return New(c, f.registry, f.opts...), nil
}

// Scope runs fn with a fresh unit of work and closes it on every exit path,
// including panics. Uncommitted changes are discarded.
func Scope(ctx context.Context, f *Factory, fn func(*UnitOfWork) error) (err error) {
	u, err := f.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := u.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close unit of work: %w", cerr))
		}
	}()
	return fn(u)
}
