// Package lifecycle exposes committed change events as a lifecycle.Source.
package lifecycle

import (
	"context"
	"slices"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/furrow/pkg/core"
)

// SourceOption narrows the events a source forwards.
type SourceOption func(*changeSource)

// OnlyTypes forwards only events of the given types.
func OnlyTypes(types ...core.EventType) SourceOption {
	return func(s *changeSource) {
		s.keep = append(s.keep, func(e core.Event) bool { return slices.Contains(types, e.Type) })
	}
}

// OnlyEntities forwards only events about the named entity types.
func OnlyEntities(names ...string) SourceOption {
	return func(s *changeSource) {
		s.keep = append(s.keep, func(e core.Event) bool { return slices.Contains(names, e.Entity) })
	}
}

type changeSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
	keep   []func(core.Event) bool
}

// NewSource bridges the channel given to uow.WithEvents to the generic
// lifecycle Event interface.
func NewSource(events <-chan core.Event, opts ...SourceOption) lifecycle.Source {
	s := &changeSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) wanted(e core.Event) bool {
	for _, keep := range s.keep {
		if !keep(e) {
			return false
		}
	}
	return true
}

// Start forwards events until ctx is done or the input channel closes, then
// closes the output channel.
func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if !s.wanted(e) {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
