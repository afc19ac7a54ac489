package core

import (
	"context"
	"fmt"
	"reflect"
)

// ReadRepository is the query side of a repository bound to one persistence context.
// Entities returned by queries are tracked by that context (one instance per key).
type ReadRepository[E Entity[ID], ID comparable] interface {
	// Get returns the entity with the given id or an error wrapping ErrNotFound.
	Get(ctx context.Context, id ID) (E, error)

	// GetSingleBySpec returns the first entity matching spec in spec order, or ErrNotFound.
	GetSingleBySpec(ctx context.Context, spec Spec) (E, error)

	// GetBySpec returns every entity matching spec. Never nil.
	GetBySpec(ctx context.Context, spec Spec) ([]E, error)

	// GetAll returns every entity. Never nil.
	GetAll(ctx context.Context) ([]E, error)

	// LongCount counts the entities matching spec; nil counts all of them.
	LongCount(ctx context.Context, spec *Spec) (int64, error)

	// Any reports whether at least one entity matches spec.
	Any(ctx context.Context, spec Spec) (bool, error)

	// Project writes the rows matching spec into dst, a pointer to a slice of
	// an arbitrary view type, without materializing tracked entities.
	Project(ctx context.Context, spec Spec, dst any) error

	// ProjectByID writes the row with the given id into dst, a pointer to a view value.
	ProjectByID(ctx context.Context, id ID, dst any) error
}

// Repository adds tracked mutations to ReadRepository. Mutations only touch the
// tracked set; nothing reaches the store until the owning context saves.
type Repository[E Entity[ID], ID comparable] interface {
	ReadRepository[E, ID]

	Add(ctx context.Context, e E) error
	AddRange(ctx context.Context, es []E) error

	// BeginUpdate marks e as Modified. With swap set, an instance already tracked
	// under the same key is replaced by e; otherwise that case fails with
	// ErrDuplicateTracking.
	BeginUpdate(e E, swap bool) error
	BeginUpdateRange(es []E, swap bool) error

	Delete(ctx context.Context, e E) error
	DeleteRange(ctx context.Context, es []E) error
	DeleteByID(ctx context.Context, id ID) error
	DeleteRangeByID(ctx context.Context, ids []ID) error

	Disable(ctx context.Context, e E) error
	DisableRange(ctx context.Context, es []E) error
	DisableByID(ctx context.Context, id ID) error
	DisableRangeByID(ctx context.Context, ids []ID) error

	// Detach stops tracking e and every entity it owns.
	Detach(e E) error
}

// Context is a change-tracking persistence context.
type Context interface {
	// SaveChanges persists every pending change atomically. A non-empty actor
	// stamps Auditable entities. On failure neither the store nor the tracked
	// set is modified.
	SaveChanges(ctx context.Context, actor string) ([]Change, error)

	// Rollback discards every tracked entry and any open transaction.
	Rollback(ctx context.Context) error

	// Begin opens an explicit transaction that subsequent saves join.
	Begin(ctx context.Context) (Transaction, error)

	Close() error
}

// Transaction is an explicit store transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store creates persistence contexts. Stores are safe for concurrent use.
type Store interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}

// RepositoryKey identifies a repository by entity and id type.
type RepositoryKey struct {
	Entity reflect.Type
	ID     reflect.Type
}

func (k RepositoryKey) String() string {
	return fmt.Sprintf("%s[%s]", EntityName(k.Entity), k.ID)
}

// KeyFor returns the repository key of an entity / id pair.
func KeyFor[E Entity[ID], ID comparable]() RepositoryKey {
	return RepositoryKey{Entity: reflect.TypeFor[E](), ID: reflect.TypeFor[ID]()}
}

// UnitOfWork is the per-scope owner of a persistence context.
type UnitOfWork interface {
	Context() Context

	// Resolve returns the repository registered under key, cached for the scope.
	Resolve(key RepositoryKey) (any, error)

	Commit(ctx context.Context) error
	CommitAs(ctx context.Context, userID string) error
	CommitWithCount(ctx context.Context) (int, error)
	CommitWithCountAs(ctx context.Context, userID string) (int, error)
	Rollback(ctx context.Context) error
	UseTransaction(ctx context.Context) (Transaction, error)
	Close() error
}

// ResolveRepository fetches the typed repository for E from a unit of work.
func ResolveRepository[E Entity[ID], ID comparable](u UnitOfWork) (Repository[E, ID], error) {
	key := KeyFor[E, ID]()
	r, err := u.Resolve(key)
	if err != nil {
		return nil, err
	}
	repo, ok := r.(Repository[E, ID])
	if !ok {
		return nil, fmt.Errorf("repository for %s has type %T", key, r)
	}
	return repo, nil
}
