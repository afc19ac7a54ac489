package tracking

import (
	"context"
	"fmt"

	"github.com/aretw0/furrow/pkg/core"
)

// Set implements the mutating half of core.Repository on top of a Tracker.
// Backends embed it and provide the binding and the loader.
type Set[E core.Entity[ID], ID comparable] struct {
	Tracker *Tracker
	Binding Binding
	// Name is used in error messages, usually the table name.
	Name string
	// Load fetches a tracked instance by id, used by the *ByID variants.
	Load func(ctx context.Context, id ID) (E, error)
}

func (s Set[E, ID]) Add(ctx context.Context, e E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Tracker.Add(e, s.Binding)
}

func (s Set[E, ID]) AddRange(ctx context.Context, es []E) error {
	for _, e := range es {
		if err := s.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s Set[E, ID]) BeginUpdate(e E, swap bool) error {
	return s.Tracker.Update(e, s.Binding, swap)
}

func (s Set[E, ID]) BeginUpdateRange(es []E, swap bool) error {
	for _, e := range es {
		if err := s.BeginUpdate(e, swap); err != nil {
			return err
		}
	}
	return nil
}

// Delete marks e as Deleted, replacing another instance tracked under its key.
func (s Set[E, ID]) Delete(ctx context.Context, e E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Tracker.Remove(e, s.Binding)
}

func (s Set[E, ID]) DeleteRange(ctx context.Context, es []E) error {
	for _, e := range es {
		if err := s.Delete(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s Set[E, ID]) DeleteByID(ctx context.Context, id ID) error {
	e, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	return s.Tracker.Remove(e, s.Binding)
}

func (s Set[E, ID]) DeleteRangeByID(ctx context.Context, ids []ID) error {
	for _, id := range ids {
		if err := s.DeleteByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Disable clears the active flag of e and marks it Modified. Entities that do not
// implement core.Disableable fail with core.ErrNotDisableable.
func (s Set[E, ID]) Disable(ctx context.Context, e E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, ok := any(e).(core.Disableable)
	if !ok {
		return fmt.Errorf("%s: %w", s.Name, core.ErrNotDisableable)
	}
	d.SetActive(false)
	return s.Tracker.Update(e, s.Binding, true)
}

func (s Set[E, ID]) DisableRange(ctx context.Context, es []E) error {
	for _, e := range es {
		if err := s.Disable(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s Set[E, ID]) DisableByID(ctx context.Context, id ID) error {
	e, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	return s.Disable(ctx, e)
}

func (s Set[E, ID]) DisableRangeByID(ctx context.Context, ids []ID) error {
	for _, id := range ids {
		if err := s.DisableByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Detach stops tracking e and what it owns. Untracked entities are ignored.
func (s Set[E, ID]) Detach(e E) error {
	s.Tracker.Detach(e)
	return nil
}
