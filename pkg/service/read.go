// Package service provides generic data services scoped to a unit of work: a
// read-only service and a CRUD service that composes it. Every operation returns
// a result.Of; failures are classified as NotFound, ArgumentNull or Exception.
package service

import (
	"context"
	"io"
	"log/slog"
	"reflect"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
	"github.com/aretw0/furrow/pkg/result"
)

// Option configures a service.
type Option func(*options)

type options struct {
	mapper       mapping.Mapper
	logger       *slog.Logger
	interceptors []Interceptor
}

// WithMapper sets the mapping collaborator used by mapped entries and *As reads.
func WithMapper(m mapping.Mapper) Option {
	return func(o *options) {
		if m != nil {
			o.mapper = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInterceptors appends interceptors; the first one is the outermost.
func WithInterceptors(ics ...Interceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, ics...)
	}
}

// ReadService serves queries for E from the repository of one unit of work.
// It never commits and never closes the unit of work.
type ReadService[E core.Entity[ID], ID comparable] struct {
	uow    core.UnitOfWork
	entity string
	opts   *options
}

// NewReadService creates a read-only service over u.
func NewReadService[E core.Entity[ID], ID comparable](u core.UnitOfWork, opts ...Option) *ReadService[E, ID] {
	o := &options{
		mapper: mapping.New(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &ReadService[E, ID]{
		uow:    u,
		entity: core.EntityName(reflect.TypeFor[E]()),
		opts:   o,
	}
}

// UnitOfWork returns the unit of work the service is scoped to.
func (s *ReadService[E, ID]) UnitOfWork() core.UnitOfWork { return s.uow }

func (s *ReadService[E, ID]) repository() (core.Repository[E, ID], error) {
	return core.ResolveRepository[E, ID](s.uow)
}

// run executes fn behind the interceptors and converts its outcome.
func run[T any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], op string, fn func(context.Context, core.Repository[E, ID]) (T, error)) result.Of[T] {
	var out T
	call := Call{Entity: s.entity, Operation: op}
	r := result.Do(ctx, chain(s.opts.interceptors, call, func(ctx context.Context) error {
		repo, err := s.repository()
		if err != nil {
			return err
		}
		v, err := fn(ctx, repo)
		if err != nil {
			return err
		}
		out = v
		return nil
	}))
	if r.IsFailure() {
		return result.Fail[T](r.Err())
	}
	return result.Ok(out)
}

func isZero[ID comparable](id ID) bool {
	var zero ID
	return id == zero
}

// Get returns the entity with the given id.
func (s *ReadService[E, ID]) Get(ctx context.Context, id ID) result.Of[E] {
	if isZero(id) {
		return result.Fail[E](result.NewArgumentNull("id"))
	}
	return run(ctx, s, "Get", func(ctx context.Context, repo core.Repository[E, ID]) (E, error) {
		return repo.Get(ctx, id)
	})
}

// GetSingleBySpec returns the first entity matching spec in spec order.
func (s *ReadService[E, ID]) GetSingleBySpec(ctx context.Context, spec core.Spec) result.Of[E] {
	return run(ctx, s, "GetSingleBySpec", func(ctx context.Context, repo core.Repository[E, ID]) (E, error) {
		return repo.GetSingleBySpec(ctx, spec)
	})
}

// GetBySpec returns every entity matching spec.
func (s *ReadService[E, ID]) GetBySpec(ctx context.Context, spec core.Spec) result.Of[[]E] {
	return run(ctx, s, "GetBySpec", func(ctx context.Context, repo core.Repository[E, ID]) ([]E, error) {
		return nonNil(repo.GetBySpec(ctx, spec))
	})
}

// GetAll returns every entity.
func (s *ReadService[E, ID]) GetAll(ctx context.Context) result.Of[[]E] {
	return run(ctx, s, "GetAll", func(ctx context.Context, repo core.Repository[E, ID]) ([]E, error) {
		return nonNil(repo.GetAll(ctx))
	})
}

// LongCount counts the entities matching spec; nil counts all of them.
func (s *ReadService[E, ID]) LongCount(ctx context.Context, spec *core.Spec) result.Of[int64] {
	return run(ctx, s, "LongCount", func(ctx context.Context, repo core.Repository[E, ID]) (int64, error) {
		return repo.LongCount(ctx, spec)
	})
}

// Any reports whether at least one entity matches spec.
func (s *ReadService[E, ID]) Any(ctx context.Context, spec core.Spec) result.Of[bool] {
	return run(ctx, s, "Any", func(ctx context.Context, repo core.Repository[E, ID]) (bool, error) {
		return repo.Any(ctx, spec)
	})
}

// GetAs returns the entity with the given id as a TOut. With projectDirectly the
// repository projects the row; otherwise the entity is loaded and mapped.
func GetAs[TOut any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], id ID, projectDirectly bool) result.Of[TOut] {
	if isZero(id) {
		return result.Fail[TOut](result.NewArgumentNull("id"))
	}
	return run(ctx, s, "GetAs", func(ctx context.Context, repo core.Repository[E, ID]) (TOut, error) {
		var out TOut
		if projectDirectly {
			err := repo.ProjectByID(ctx, id, &out)
			return out, err
		}
		e, err := repo.Get(ctx, id)
		if err != nil {
			return out, err
		}
		return mapping.Map[TOut](s.opts.mapper, e)
	})
}

// GetSingleBySpecAs is GetSingleBySpec returning a TOut.
func GetSingleBySpecAs[TOut any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], spec core.Spec, projectDirectly bool) result.Of[TOut] {
	return run(ctx, s, "GetSingleBySpecAs", func(ctx context.Context, repo core.Repository[E, ID]) (TOut, error) {
		var out TOut
		if projectDirectly {
			var list []TOut
			if err := repo.Project(ctx, spec.Page(spec.Skip, 1), &list); err != nil {
				return out, err
			}
			if len(list) == 0 {
				return out, core.ErrNotFound
			}
			return list[0], nil
		}
		e, err := repo.GetSingleBySpec(ctx, spec)
		if err != nil {
			return out, err
		}
		return mapping.Map[TOut](s.opts.mapper, e)
	})
}

// GetBySpecAs is GetBySpec returning TOut values.
func GetBySpecAs[TOut any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], spec core.Spec, projectDirectly bool) result.Of[[]TOut] {
	return run(ctx, s, "GetBySpecAs", func(ctx context.Context, repo core.Repository[E, ID]) ([]TOut, error) {
		return list[TOut](ctx, s, repo, spec, projectDirectly)
	})
}

// GetAllAs is GetAll returning TOut values.
func GetAllAs[TOut any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], projectDirectly bool) result.Of[[]TOut] {
	return run(ctx, s, "GetAllAs", func(ctx context.Context, repo core.Repository[E, ID]) ([]TOut, error) {
		return list[TOut](ctx, s, repo, core.Spec{}, projectDirectly)
	})
}

func list[TOut any, E core.Entity[ID], ID comparable](ctx context.Context, s *ReadService[E, ID], repo core.Repository[E, ID], spec core.Spec, projectDirectly bool) ([]TOut, error) {
	if projectDirectly {
		var out []TOut
		if err := repo.Project(ctx, spec, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = []TOut{}
		}
		return out, nil
	}
	es, err := repo.GetBySpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	return mapping.MapSlice[TOut](s.opts.mapper, es)
}

func nonNil[T any](v []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []T{}
	}
	return v, nil
}
