package service

import (
	"fmt"

	"github.com/aretw0/furrow/internal/fields"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
)

// Entry is the payload of a write operation: either an entity used as is, or a
// value that is mapped into a new entity first.
type Entry[E any] struct {
	entity  E
	payload any
	mapped  bool
	set     bool
}

// Direct wraps an entity.
func Direct[E any](e E) Entry[E] {
	return Entry[E]{entity: e, set: !fields.IsNil(e)}
}

// Mapped wraps a DTO that is mapped into an E before use.
func Mapped[E any](dto any) Entry[E] {
	return Entry[E]{payload: dto, mapped: true, set: !fields.IsNil(dto)}
}

// Auto uses v directly when it already is an E and maps it otherwise.
func Auto[E any](v any) Entry[E] {
	if e, ok := v.(E); ok {
		return Direct(e)
	}
	return Mapped[E](v)
}

// Entries wraps entities as direct entries.
func Entries[E any](es ...E) []Entry[E] {
	out := make([]Entry[E], len(es))
	for i, e := range es {
		out[i] = Direct(e)
	}
	return out
}

// IsSet reports whether the entry carries a non-nil value.
func (e Entry[E]) IsSet() bool { return e.set }

// IsMapped reports whether the entry goes through the mapper.
func (e Entry[E]) IsMapped() bool { return e.mapped }

func (e Entry[E]) resolve(m mapping.Mapper) (E, error) {
	if !e.set {
		var zero E
		return zero, fmt.Errorf("entry: %w", core.ErrArgumentNull)
	}
	if !e.mapped {
		return e.entity, nil
	}
	out, err := mapping.Map[E](m, e.payload)
	if err != nil {
		return out, fmt.Errorf("map %T: %w", e.payload, err)
	}
	return out, nil
}

func resolveAll[E any](m mapping.Mapper, entries []Entry[E]) ([]E, error) {
	out := make([]E, 0, len(entries))
	for _, en := range entries {
		e, err := en.resolve(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
