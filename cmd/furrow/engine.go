package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/catalog"
	"github.com/aretw0/furrow/pkg/adapters/lifecycle"
	"github.com/aretw0/furrow/pkg/core"
)

// session is an engine opened for one command, with the catalog installed.
type session struct {
	*furrow.Engine
	events chan core.Event
	done   sync.WaitGroup
	cancel context.CancelFunc
}

func openSession(ctx context.Context, opts ...furrow.Option) (*session, error) {
	s := &session{}
	opts = append([]furrow.Option{furrow.WithMigrator(catalog.Migrate)}, opts...)

	if showEvents {
		s.events = make(chan core.Event, 64)
		opts = append(opts, furrow.WithEvents(s.events))
	}

	e, err := furrow.Open(ctx, cfg, slog.Default(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	if err := catalog.Install(e); err != nil {
		_ = e.Close()
		return nil, err
	}
	s.Engine = e

	if s.events != nil {
		srcCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		src := lifecycle.NewSource(s.events)
		if err := src.Start(srcCtx); err != nil {
			cancel()
			_ = e.Close()
			return nil, err
		}
		s.done.Add(1)
		go func() {
			defer s.done.Done()
			for ev := range src.Events() {
				fmt.Fprintln(os.Stderr, ev.String())
			}
		}()
	}
	return s, nil
}

// Close drains pending events and closes the engine.
func (s *session) Close() error {
	if s.events != nil {
		close(s.events)
		s.done.Wait()
		s.cancel()
	}
	return s.Engine.Close()
}

// scoped opens a session, runs fn in one unit of work and closes everything.
func scoped(ctx context.Context, fn func(*session, *furrow.UnitOfWork) error) (err error) {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return s.Scope(ctx, func(u *furrow.UnitOfWork) error {
		return fn(s, u)
	})
}
