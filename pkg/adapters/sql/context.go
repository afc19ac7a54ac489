package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/tracking"
)

const savepoint = "furrow_save"

// querier is what repositories run statements on: the pool, an explicit
// transaction, or the transaction of a save in progress.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Context is a change-tracking persistence context over a Store.
type Context struct {
	store   *Store
	tracker *tracking.Tracker

	mu     sync.Mutex
	tx     *Transaction
	stage  *sql.Tx
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

// reader returns the explicit transaction when one is open, the pool otherwise.
func (c *Context) reader() (querier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrClosed
	}
	if c.tx != nil {
		return c.tx.tx, nil
	}
	return c.store.db, nil
}

// SaveChanges implements core.Context. Pending entries are written inside one
// transaction, or inside a savepoint of the explicit transaction when one is open.
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

	var commit func() error
	var abort func()
	if c.tx != nil {
		tx := c.tx.tx
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, fmt.Errorf("sqlstore: savepoint: %w", err)
		}
		c.stage = tx
		commit = func() error {
			_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
			return err
		}
		abort = func() {
			_, _ = tx.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+savepoint)
		}
	} else {
		tx, err := c.store.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: begin: %w", err)
		}
		c.stage = tx
		commit = tx.Commit
		abort = func() { _ = tx.Rollback() }
	}
	defer func() { c.stage = nil }()

	if actor != "" {
		tracking.Stamp(pending, actor, c.now().UTC())
	}

	c.undo = c.undo[:0]
	fail := func(err error) ([]core.Change, error) {
		abort()
		c.revert()
		return nil, err
	}
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := e.Apply(ctx); err != nil {
			return fail(fmt.Errorf("save %s: %w", core.EntityName(reflect.TypeOf(e.Entity)), err))
		}
	}
	if err := commit(); err != nil {
		return fail(fmt.Errorf("sqlstore: commit: %w", err))
	}

	changes := c.tracker.Accept(pending)
	c.store.commits.Add(1)
	c.store.logger.Debug("sqlstore: changes saved", "changes", len(changes), "actor", actor, "in_tx", c.tx != nil)
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
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	c.tx = &Transaction{ctx: c, tx: tx}
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

// Transaction is an explicit database transaction joined by the context's saves.
type Transaction struct {
	ctx  *Context
	tx   *sql.Tx
	done bool
}

// Commit implements core.Transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	c := t.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return fmt.Errorf("sqlstore: transaction already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true
	c.tx = nil
	return t.tx.Commit()
}

// Rollback implements core.Transaction. Entries saved inside the transaction no
// longer match the database, so the tracked set is cleared too.
func (t *Transaction) Rollback(context.Context) error {
	c := t.ctx
	c.mu.Lock()
	if t.done {
		c.mu.Unlock()
		return nil
	}
	t.done = true
	c.tx = nil
	c.mu.Unlock()

	err := t.tx.Rollback()
	c.tracker.Clear()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
