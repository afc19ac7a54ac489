// Package uow implements the Unit of Work: the per-scope owner of one persistence
// context, its repositories and its commits.
package uow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/furrow/pkg/core"
)

// ErrClosed is returned by every operation on a closed unit of work.
var ErrClosed = core.ErrClosed

// Option configures a UnitOfWork.
type Option func(*options)

type options struct {
	logger *slog.Logger
	events chan<- core.Event
	now    func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEvents publishes committed changes to ch. Sends never block; events are
// dropped when ch is full.
func WithEvents(ch chan<- core.Event) Option {
	return func(o *options) {
		o.events = ch
	}
}

func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
}

// UnitOfWork owns one persistence context for its lifetime. Like the context it
// wraps, it serves one operation at a time.
type UnitOfWork struct {
	ctx      core.Context
	registry *Registry
	opts     *options

	mu      sync.Mutex
	repos   map[core.RepositoryKey]any
	tx      core.Transaction
	closed  bool
	commits int
	changes int
}

// New wraps a persistence context. The unit of work closes c when it is closed.
func New(c core.Context, registry *Registry, opts ...Option) *UnitOfWork {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &UnitOfWork{
		ctx:      c,
		registry: registry,
		opts:     o,
		repos:    make(map[core.RepositoryKey]any),
	}
}

// Context returns the persistence context.
func (u *UnitOfWork) Context() core.Context { return u.ctx }

// Resolve implements core.UnitOfWork. Repositories are built once per scope.
func (u *UnitOfWork) Resolve(key core.RepositoryKey) (any, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, ErrClosed
	}
	if r, ok := u.repos[key]; ok {
		return r, nil
	}
	r, err := u.registry.build(key, u.ctx)
	if err != nil {
		return nil, err
	}
	u.repos[key] = r
	return r, nil
}

// Repository returns the typed repository for E.
func Repository[E core.Entity[ID], ID comparable](u core.UnitOfWork) (core.Repository[E, ID], error) {
	return core.ResolveRepository[E, ID](u)
}

// Commit saves every pending change without audit information.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	_, err := u.save(ctx, "")
	return err
}

// CommitAs saves every pending change, stamping auditable entities with userID.
func (u *UnitOfWork) CommitAs(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("commit user: %w", core.ErrArgumentNull)
	}
	_, err := u.save(ctx, userID)
	return err
}

// CommitWithCount is Commit reporting the number of persisted changes.
func (u *UnitOfWork) CommitWithCount(ctx context.Context) (int, error) {
	return u.save(ctx, "")
}

// CommitWithCountAs is CommitAs reporting the number of persisted changes.
func (u *UnitOfWork) CommitWithCountAs(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("commit user: %w", core.ErrArgumentNull)
	}
	return u.save(ctx, userID)
}

func (u *UnitOfWork) save(ctx context.Context, actor string) (int, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return 0, ErrClosed
	}
	u.mu.Unlock()

	changes, err := u.ctx.SaveChanges(ctx, actor)
	if err != nil {
		u.opts.logger.Debug("uow: commit failed", "error", err)
		return 0, err
	}

	u.mu.Lock()
	u.commits++
	u.changes += len(changes)
	u.mu.Unlock()

	u.opts.logger.Debug("uow: committed", "changes", len(changes), "actor", actor)
	u.publish(changes, actor)
	return len(changes), nil
}

func (u *UnitOfWork) publish(changes []core.Change, actor string) {
	if u.opts.events == nil {
		return
	}
	now := u.opts.now().Unix()
	for _, c := range changes {
		ev := core.Event{
			Type:      c.Type,
			Entity:    core.EntityName(typeOf(c.Entity)),
			ID:        c.ID,
			Actor:     actor,
			Timestamp: now,
		}
		select {
		case u.opts.events <- ev:
		default:
			u.opts.logger.Warn("uow: event dropped, channel full", "event", ev.String())
		}
	}
}

// Rollback discards every pending change and any open transaction.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.tx = nil
	u.mu.Unlock()

	if err := u.ctx.Rollback(ctx); err != nil {
		return err
	}
	u.opts.logger.Debug("uow: rolled back")
	return nil
}

// UseTransaction opens an explicit transaction; commits join it until it ends.
// An open transaction is rolled back on Close.
func (u *UnitOfWork) UseTransaction(ctx context.Context) (core.Transaction, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, ErrClosed
	}
	tx, err := u.ctx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	u.tx = tx
	return tx, nil
}

// Close releases the persistence context. It is safe to call more than once.
func (u *UnitOfWork) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	tx := u.tx
	u.tx = nil
	u.repos = nil
	u.mu.Unlock()

	if tx != nil {
		if err := tx.Rollback(context.Background()); err != nil {
			u.opts.logger.Warn("uow: failed to roll back open transaction", "error", err)
		}
	}
	return u.ctx.Close()
}

// Closed reports whether Close has been called.
func (u *UnitOfWork) Closed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

var _ core.UnitOfWork = (*UnitOfWork)(nil)
