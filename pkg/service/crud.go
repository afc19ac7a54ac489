package service

import (
	"context"
	"fmt"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/result"
)

// Service adds tracked writes to ReadService. Writes only touch the unit of work's
// tracked set unless shouldSave is set, in which case the unit of work commits,
// audited when userID is not empty.
type Service[E core.Entity[ID], ID comparable] struct {
	*ReadService[E, ID]
}

// NewService creates a CRUD service over u.
func NewService[E core.Entity[ID], ID comparable](u core.UnitOfWork, opts ...Option) *Service[E, ID] {
	return &Service[E, ID]{ReadService: NewReadService[E, ID](u, opts...)}
}

// NewDefault creates a CRUD service for entities keyed by int64.
func NewDefault[E core.Entity[int64]](u core.UnitOfWork, opts ...Option) *Service[E, int64] {
	return NewService[E, int64](u, opts...)
}

func (s *Service[E, ID]) commit(ctx context.Context, userID string) (int, error) {
	if userID != "" {
		return s.uow.CommitWithCountAs(ctx, userID)
	}
	return s.uow.CommitWithCount(ctx)
}

func (s *Service[E, ID]) save(ctx context.Context, shouldSave bool, userID string) error {
	if !shouldSave {
		return nil
	}
	_, err := s.commit(ctx, userID)
	return err
}

func checkEntries[E any](entries []Entry[E]) error {
	if entries == nil {
		return result.NewArgumentNull("entries")
	}
	for i, e := range entries {
		if !e.IsSet() {
			return result.NewArgumentNull(fmt.Sprintf("entries[%d]", i))
		}
	}
	return nil
}

func checkIDs[ID comparable](ids []ID) error {
	if ids == nil {
		return result.NewArgumentNull("ids")
	}
	for i, id := range ids {
		if isZero(id) {
			return result.NewArgumentNull(fmt.Sprintf("ids[%d]", i))
		}
	}
	return nil
}

// Add tracks a new entity. When saving, the result carries the id the store
// assigned; otherwise it carries the zero id.
func (s *Service[E, ID]) Add(ctx context.Context, entry Entry[E], shouldSave bool, userID string) result.Of[ID] {
	if !entry.IsSet() {
		return result.Fail[ID](result.NewArgumentNull("entry"))
	}
	return run(ctx, s.ReadService, "Add", func(ctx context.Context, repo core.Repository[E, ID]) (ID, error) {
		var zero ID
		e, err := entry.resolve(s.opts.mapper)
		if err != nil {
			return zero, err
		}
		if err := repo.Add(ctx, e); err != nil {
			return zero, err
		}
		if !shouldSave {
			return zero, nil
		}
		if err := s.save(ctx, true, userID); err != nil {
			return zero, err
		}
		return e.GetID(), nil
	})
}

// AddRange tracks new entities. When saving, the ids are returned in input order;
// otherwise the list is empty.
func (s *Service[E, ID]) AddRange(ctx context.Context, entries []Entry[E], shouldSave bool, userID string) result.Of[[]ID] {
	if err := checkEntries(entries); err != nil {
		return result.Fail[[]ID](err)
	}
	return run(ctx, s.ReadService, "AddRange", func(ctx context.Context, repo core.Repository[E, ID]) ([]ID, error) {
		es, err := resolveAll(s.opts.mapper, entries)
		if err != nil {
			return nil, err
		}
		if err := repo.AddRange(ctx, es); err != nil {
			return nil, err
		}
		ids := []ID{}
		if !shouldSave {
			return ids, nil
		}
		if err := s.save(ctx, true, userID); err != nil {
			return nil, err
		}
		for _, e := range es {
			ids = append(ids, e.GetID())
		}
		return ids, nil
	})
}

// BeginUpdate marks the entity as Modified without touching the store. With
// swapAttached, an instance already tracked under the same key is replaced.
func (s *Service[E, ID]) BeginUpdate(entry Entry[E], swapAttached bool) result.Result {
	if !entry.IsSet() {
		return result.Failure(result.NewArgumentNull("entry"))
	}
	return s.sync("BeginUpdate", func(repo core.Repository[E, ID]) error {
		e, err := entry.resolve(s.opts.mapper)
		if err != nil {
			return err
		}
		return repo.BeginUpdate(e, swapAttached)
	})
}

// BeginUpdateRange is BeginUpdate for several entries.
func (s *Service[E, ID]) BeginUpdateRange(entries []Entry[E], swapAttached bool) result.Result {
	if err := checkEntries(entries); err != nil {
		return result.Failure(err)
	}
	return s.sync("BeginUpdateRange", func(repo core.Repository[E, ID]) error {
		es, err := resolveAll(s.opts.mapper, entries)
		if err != nil {
			return err
		}
		return repo.BeginUpdateRange(es, swapAttached)
	})
}

// Detach removes the entity and everything it owns from the tracked set.
func (s *Service[E, ID]) Detach(entry Entry[E]) result.Result {
	if !entry.IsSet() {
		return result.Failure(result.NewArgumentNull("entry"))
	}
	return s.sync("Detach", func(repo core.Repository[E, ID]) error {
		e, err := entry.resolve(s.opts.mapper)
		if err != nil {
			return err
		}
		return repo.Detach(e)
	})
}

// sync runs a synchronous tracked-set operation behind the interceptors.
func (s *Service[E, ID]) sync(op string, fn func(core.Repository[E, ID]) error) result.Result {
	return run(context.Background(), s.ReadService, op, func(_ context.Context, repo core.Repository[E, ID]) (struct{}, error) {
		return struct{}{}, fn(repo)
	}).Result()
}

// write runs a context-aware tracked-set operation and saves when asked to.
func (s *Service[E, ID]) write(ctx context.Context, op string, shouldSave bool, userID string, fn func(context.Context, core.Repository[E, ID]) error) result.Result {
	return run(ctx, s.ReadService, op, func(ctx context.Context, repo core.Repository[E, ID]) (struct{}, error) {
		if err := fn(ctx, repo); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.save(ctx, shouldSave, userID)
	}).Result()
}

// Delete hard-deletes the entity. An instance already tracked under the same key
// is replaced by the given one.
func (s *Service[E, ID]) Delete(ctx context.Context, entry Entry[E], shouldSave bool, userID string) result.Result {
	if !entry.IsSet() {
		return result.Failure(result.NewArgumentNull("entry"))
	}
	return s.write(ctx, "Delete", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		e, err := entry.resolve(s.opts.mapper)
		if err != nil {
			return err
		}
		return repo.Delete(ctx, e)
	})
}

// DeleteByID hard-deletes the entity with the given id.
func (s *Service[E, ID]) DeleteByID(ctx context.Context, id ID, shouldSave bool, userID string) result.Result {
	if isZero(id) {
		return result.Failure(result.NewArgumentNull("id"))
	}
	return s.write(ctx, "DeleteByID", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		return repo.DeleteByID(ctx, id)
	})
}

// DeleteRange hard-deletes several entities.
func (s *Service[E, ID]) DeleteRange(ctx context.Context, entries []Entry[E], shouldSave bool, userID string) result.Result {
	if err := checkEntries(entries); err != nil {
		return result.Failure(err)
	}
	return s.write(ctx, "DeleteRange", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		es, err := resolveAll(s.opts.mapper, entries)
		if err != nil {
			return err
		}
		return repo.DeleteRange(ctx, es)
	})
}

// DeleteRangeByID hard-deletes the entities with the given ids.
func (s *Service[E, ID]) DeleteRangeByID(ctx context.Context, ids []ID, shouldSave bool, userID string) result.Result {
	if err := checkIDs(ids); err != nil {
		return result.Failure(err)
	}
	return s.write(ctx, "DeleteRangeByID", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		return repo.DeleteRangeByID(ctx, ids)
	})
}

// Disable soft-deletes the entity: it is marked inactive and Modified.
func (s *Service[E, ID]) Disable(ctx context.Context, entry Entry[E], shouldSave bool, userID string) result.Result {
	if !entry.IsSet() {
		return result.Failure(result.NewArgumentNull("entry"))
	}
	return s.write(ctx, "Disable", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		e, err := entry.resolve(s.opts.mapper)
		if err != nil {
			return err
		}
		return repo.Disable(ctx, e)
	})
}

// DisableByID soft-deletes the entity with the given id.
func (s *Service[E, ID]) DisableByID(ctx context.Context, id ID, shouldSave bool, userID string) result.Result {
	if isZero(id) {
		return result.Failure(result.NewArgumentNull("id"))
	}
	return s.write(ctx, "DisableByID", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		return repo.DisableByID(ctx, id)
	})
}

// DisableRange soft-deletes several entities.
func (s *Service[E, ID]) DisableRange(ctx context.Context, entries []Entry[E], shouldSave bool, userID string) result.Result {
	if err := checkEntries(entries); err != nil {
		return result.Failure(err)
	}
	return s.write(ctx, "DisableRange", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		es, err := resolveAll(s.opts.mapper, entries)
		if err != nil {
			return err
		}
		return repo.DisableRange(ctx, es)
	})
}

// DisableRangeByID soft-deletes the entities with the given ids.
func (s *Service[E, ID]) DisableRangeByID(ctx context.Context, ids []ID, shouldSave bool, userID string) result.Result {
	if err := checkIDs(ids); err != nil {
		return result.Failure(err)
	}
	return s.write(ctx, "DisableRangeByID", shouldSave, userID, func(ctx context.Context, repo core.Repository[E, ID]) error {
		return repo.DisableRangeByID(ctx, ids)
	})
}

// Commit saves the unit of work and reports the number of persisted changes.
func (s *Service[E, ID]) Commit(ctx context.Context, userID string) result.Of[int] {
	var n int
	call := Call{Entity: s.entity, Operation: "Commit"}
	r := result.Do(ctx, chain(s.opts.interceptors, call, func(ctx context.Context) error {
		var err error
		n, err = s.commit(ctx, userID)
		return err
	}))
	if r.IsFailure() {
		return result.Fail[int](r.Err())
	}
	return result.Ok(n)
}
