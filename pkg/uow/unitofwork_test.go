package uow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/adapters/memory"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/uow"
)

type note struct {
	ID        int64  `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	CreatedBy string `db:"created_by" json:"created_by"`
	UpdatedBy string `db:"updated_by" json:"updated_by"`
}

func (n *note) GetID() int64 { return n.ID }
func (n *note) SetID(id int64) { n.ID = id }

func (n *note) StampCreated(by string, _ time.Time) { n.CreatedBy = by }
func (n *note) StampUpdated(by string, _ time.Time) { n.UpdatedBy = by }

func setup(t *testing.T, opts ...uow.Option) (*memory.Store, *uow.Factory) {
	t.Helper()
	store := memory.NewStore()
	reg := uow.NewRegistry()
	memory.Register[*note, int64](reg, core.Table{Name: "notes", AutoKey: true})
	return store, uow.NewFactory(store, reg, opts...)
}

func TestRepositoryIsCachedPerScope(t *testing.T) {
	ctx := context.Background()
	_, f := setup(t)

	u1, err := f.Begin(ctx)
	require.NoError(t, err)
	defer u1.Close()
	u2, err := f.Begin(ctx)
	require.NoError(t, err)
	defer u2.Close()

	a, err := uow.Repository[*note, int64](u1)
	require.NoError(t, err)
	b, err := uow.Repository[*note, int64](u1)
	require.NoError(t, err)
	c, err := uow.Repository[*note, int64](u2)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestResolveUnregistered(t *testing.T) {
	u := uow.New(mustContext(t), nil)
	defer u.Close()
	_, err := uow.Repository[*note, int64](u)
	assert.ErrorIs(t, err, core.ErrNotRegistered)
}

func mustContext(t *testing.T) core.Context {
	t.Helper()
	c, err := memory.NewStore().NewContext(context.Background())
	require.NoError(t, err)
	return c
}

func TestCommitWithCount(t *testing.T) {
	ctx := context.Background()
	store, f := setup(t)

	err := uow.Scope(ctx, f, func(u *uow.UnitOfWork) error {
		repo, err := uow.Repository[*note, int64](u)
		if err != nil {
			return err
		}
		if err := repo.AddRange(ctx, []*note{{Title: "a"}, {Title: "b"}}); err != nil {
			return err
		}
		n, err := u.CommitWithCount(ctx)
		assert.Equal(t, 2, n)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len("notes"))
}

func TestCommitAsStampsAuditFields(t *testing.T) {
	ctx := context.Background()
	_, f := setup(t)
	u, err := f.Begin(ctx)
	require.NoError(t, err)
	defer u.Close()

	repo, err := uow.Repository[*note, int64](u)
	require.NoError(t, err)
	n := &note{Title: "audited"}
	require.NoError(t, repo.Add(ctx, n))
	require.NoError(t, u.CommitAs(ctx, "alice"))
	assert.Equal(t, "alice", n.CreatedBy)

	n.Title = "changed"
	require.NoError(t, u.Commit(ctx))
	assert.Empty(t, n.UpdatedBy, "unaudited commit must not stamp")

	assert.ErrorIs(t, u.CommitAs(ctx, ""), core.ErrArgumentNull)
}

func TestRollbackDiscardsPending(t *testing.T) {
	ctx := context.Background()
	store, f := setup(t)
	u, err := f.Begin(ctx)
	require.NoError(t, err)
	defer u.Close()

	repo, err := uow.Repository[*note, int64](u)
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, &note{Title: "x"}))
	require.NoError(t, u.Rollback(ctx))

	n, err := u.CommitWithCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.Len("notes"))
}

func TestUseTransaction(t *testing.T) {
	ctx := context.Background()
	store, f := setup(t)

	t.Run("commit publishes", func(t *testing.T) {
		u, err := f.Begin(ctx)
		require.NoError(t, err)
		defer u.Close()
		repo, _ := uow.Repository[*note, int64](u)

		tx, err := u.UseTransaction(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Add(ctx, &note{Title: "in tx"}))
		require.NoError(t, u.Commit(ctx))
		assert.Zero(t, store.Len("notes"), "not visible before the transaction commits")

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1, "visible inside the transaction")

		require.NoError(t, tx.Commit(ctx))
		assert.Equal(t, 1, store.Len("notes"))
	})

	t.Run("close rolls back", func(t *testing.T) {
		u, err := f.Begin(ctx)
		require.NoError(t, err)
		repo, _ := uow.Repository[*note, int64](u)

		_, err = u.UseTransaction(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Add(ctx, &note{Title: "lost"}))
		require.NoError(t, u.Commit(ctx))
		require.NoError(t, u.Close())
		assert.Equal(t, 1, store.Len("notes"))
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, f := setup(t)
	u, err := f.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, u.Close())
	require.NoError(t, u.Close())
	assert.True(t, u.Closed())
	assert.ErrorIs(t, u.Commit(ctx), uow.ErrClosed)
	_, err = uow.Repository[*note, int64](u)
	assert.ErrorIs(t, err, uow.ErrClosed)
}

func TestScopeClosesOnError(t *testing.T) {
	ctx := context.Background()
	_, f := setup(t)
	boom := errors.New("boom")

	var captured *uow.UnitOfWork
	err := uow.Scope(ctx, f, func(u *uow.UnitOfWork) error {
		captured = u
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, captured.Closed())
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	ctx := context.Background()
	events := make(chan core.Event, 4)
	_, f := setup(t, uow.WithEvents(events))

	err := uow.Scope(ctx, f, func(u *uow.UnitOfWork) error {
		repo, _ := uow.Repository[*note, int64](u)
		n := &note{Title: "e"}
		if err := repo.Add(ctx, n); err != nil {
			return err
		}
		assert.Empty(t, events)
		return u.CommitAs(ctx, "bob")
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, core.EventCreate, ev.Type)
	assert.Equal(t, "note", ev.Entity)
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, "bob", ev.Actor)
}

func TestStateReportsCounts(t *testing.T) {
	ctx := context.Background()
	_, f := setup(t)
	u, err := f.Begin(ctx)
	require.NoError(t, err)
	defer u.Close()

	_, err = uow.Repository[*note, int64](u)
	require.NoError(t, err)

	s, ok := u.State().(uow.State)
	require.True(t, ok)
	assert.Equal(t, 1, s.Repositories)
	assert.Equal(t, "memory-context", s.Context)
	assert.Equal(t, "unit-of-work", u.ComponentType())
}
