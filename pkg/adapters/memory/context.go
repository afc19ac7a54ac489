package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/tracking"
)

// Context is a change-tracking persistence context over a Store.
type Context struct {
	store   *Store
	tracker *tracking.Tracker

	mu     sync.Mutex
	tx     *Transaction
	stage  *workset
	undo   []func()
	closed bool
	now    func() time.Time
}

func newContext(s *Store) *Context {
	s.open.Add(1)
	return &Context{store: s, tracker: tracking.New(), now: time.Now}
}

// Tracker exposes the tracked set.
func (c *Context) Tracker() *tracking.Tracker { return c.tracker }

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// view returns the version of a table this context reads: the open transaction's
// working copy, or the committed one.
func (c *Context) view(name string) *table {
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()
	if tx != nil {
		return tx.work.peek(name)
	}
	return c.store.snapshot(name)
}

// SaveChanges implements core.Context.
func (c *Context) SaveChanges(ctx context.Context, actor string) ([]core.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.tracker.DetectChanges()
	pending := c.tracker.Pending()
	if len(pending) == 0 {
		return nil, nil
	}
	if c.store.readOnly {
		return nil, core.ErrReadOnly
	}

	// 1. Join the explicit transaction, or take the writer slot for this save.
	base := c.store.snapshot
	if c.tx != nil {
		base = c.tx.work.peek
	} else {
		if err := c.store.acquire(ctx); err != nil {
			return nil, err
		}
		defer c.store.release()
	}

	if actor != "" {
		tracking.Stamp(pending, actor, c.now().UTC())
	}

	// 2. Apply every entry to clones of the touched tables.
	c.stage = newWorkset(base)
	c.undo = c.undo[:0]
	defer func() { c.stage = nil }()
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			c.revert()
			return nil, err
		}
		if err := e.Apply(ctx); err != nil {
			c.revert()
			return nil, fmt.Errorf("save %s: %w", core.EntityName(typeOf(e.Entity)), err)
		}
	}

	// 3. Publish.
	if c.tx != nil {
		c.tx.work.merge(c.stage)
	} else {
		c.store.publish(c.stage.tables)
	}
	changes := c.tracker.Accept(pending)
	c.store.logger.Debug("memory: changes saved", "changes", len(changes), "actor", actor, "in_tx", c.tx != nil)
	return changes, nil
}

func (c *Context) revert() {
	for i := len(c.undo) - 1; i >= 0; i-- {
		c.undo[i]()
	}
	c.undo = c.undo[:0]
}

// Rollback implements core.Context.
func (c *Context) Rollback(ctx context.Context) error {
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()
	if tx != nil {
		if err := tx.Rollback(ctx); err != nil {
			return err
		}
	}
	c.tracker.Clear()
	return nil
}

// Begin implements core.Context.
func (c *Context) Begin(ctx context.Context) (core.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrClosed
	}
	if c.tx != nil {
		return nil, core.ErrTransactionOpen
	}
	if err := c.store.acquire(ctx); err != nil {
		return nil, err
	}
	c.tx = &Transaction{ctx: c, work: newWorkset(c.store.snapshot)}
	return c.tx, nil
}

// Close implements core.Context. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tx := c.tx
	c.mu.Unlock()

	if tx != nil {
		_ = tx.Rollback(context.Background())
	}
	c.tracker.Clear()
	c.store.open.Add(-1)
	return nil
}

// Transaction is an explicit transaction: the context's writes accumulate in a
// working copy that is published on Commit. It holds the store's writer slot.
type Transaction struct {
	ctx  *Context
	work *workset
	done bool
}

// Commit implements core.Transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	c := t.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return fmt.Errorf("memory: transaction already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true
	c.store.publish(t.work.tables)
	c.store.release()
	c.tx = nil
	return nil
}

// Rollback implements core.Transaction. Entries saved inside the transaction no
// longer match the store, so the tracked set is cleared too.
func (t *Transaction) Rollback(context.Context) error {
	c := t.ctx
	c.mu.Lock()
	if t.done {
		c.mu.Unlock()
		return nil
	}
	t.done = true
	c.store.release()
	c.tx = nil
	c.mu.Unlock()
	c.tracker.Clear()
	return nil
}
