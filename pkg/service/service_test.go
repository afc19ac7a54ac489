package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/adapters/memory"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/result"
	"github.com/aretw0/furrow/pkg/service"
	"github.com/aretw0/furrow/pkg/uow"
)

type customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c *customer) GetID() int64 { return c.ID }
func (c *customer) SetID(id int64) { c.ID = id }
func (c *customer) IsActive() bool { return c.Active }
func (c *customer) SetActive(a bool) { c.Active = a }
func (c *customer) StampCreated(by string, at time.Time) {
	c.CreatedBy = by
	c.UpdatedAt = at
}
func (c *customer) StampUpdated(by string, at time.Time) {
	c.UpdatedBy = by
	c.UpdatedAt = at
}

type customerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type customerView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// countingUoW records repository resolutions.
type countingUoW struct {
	core.UnitOfWork
	resolved int
}

func (c *countingUoW) Resolve(key core.RepositoryKey) (any, error) {
	c.resolved++
	return c.UnitOfWork.Resolve(key)
}

type fixture struct {
	store   *memory.Store
	factory *uow.Factory
}

func newFixture() *fixture {
	store := memory.NewStore()
	reg := uow.NewRegistry()
	memory.Register[*customer, int64](reg, core.Table{Name: "customers", AutoKey: true})
	return &fixture{store: store, factory: uow.NewFactory(store, reg)}
}

func (f *fixture) scope(t *testing.T, opts ...service.Option) (*countingUoW, *service.Service[*customer, int64]) {
	t.Helper()
	u, err := f.factory.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	c := &countingUoW{UnitOfWork: u}
	return c, service.NewDefault[*customer](c, opts...)
}

func TestAddRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)

	in := &customer{Name: "Ada", Email: "ada@example.com", Active: true}
	id, ok := svc.Add(ctx, service.Direct(in), true, "").Value()
	require.True(t, ok)
	require.NotZero(t, id)

	_, other := f.scope(t)
	got, ok := other.Get(ctx, id).Value()
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.NotSame(t, in, got)
}

func TestAddWithoutSaveIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)

	id, ok := svc.Add(ctx, service.Direct(&customer{Name: "Lin"}), false, "").Value()
	require.True(t, ok)
	assert.Zero(t, id)

	_, other := f.scope(t)
	count, ok := other.LongCount(ctx, nil).Value()
	require.True(t, ok)
	assert.Zero(t, count)
	assert.Zero(t, f.store.Len("customers"))
}

func TestAddMappedAndAudited(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)

	r := svc.Add(ctx, service.Mapped[*customer](customerInput{Name: "Grace", Email: "g@example.com"}), true, "admin")
	id, ok := r.Value()
	require.True(t, ok, "%v", r.Err())

	got, ok := svc.Get(ctx, id).Value()
	require.True(t, ok)
	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, "admin", got.CreatedBy)
	assert.False(t, got.UpdatedAt.IsZero())

	auto := svc.Add(ctx, service.Auto[*customer](&customer{Name: "direct"}), true, "")
	require.True(t, auto.IsSuccess())
}

func TestAddRangeOrderAndEmptyWhenNotSaving(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)

	entries := service.Entries(&customer{Name: "a"}, &customer{Name: "b"}, &customer{Name: "c"})
	ids, ok := svc.AddRange(ctx, entries, true, "").Value()
	require.True(t, ok)
	require.Len(t, ids, 3)
	for i, name := range []string{"a", "b", "c"} {
		got, ok := svc.Get(ctx, ids[i]).Value()
		require.True(t, ok)
		assert.Equal(t, name, got.Name)
	}

	pending, ok := svc.AddRange(ctx, service.Entries(&customer{Name: "d"}), false, "").Value()
	require.True(t, ok)
	assert.NotNil(t, pending)
	assert.Empty(t, pending)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	id := svc.Add(ctx, service.Direct(&customer{Name: "x"}), true, "").OrElse(0)
	require.NotZero(t, id)

	require.True(t, svc.DeleteByID(ctx, id, true, "").IsSuccess())

	_, other := f.scope(t)
	r := other.Get(ctx, id)
	assert.True(t, r.Is(result.NotFound))
	assert.ErrorIs(t, r.Err(), result.ErrNotFound)
}

func TestDeleteByInstanceAndRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	ids := svc.AddRange(ctx, service.Entries(&customer{Name: "a"}, &customer{Name: "b"}, &customer{Name: "c"}), true, "").OrElse(nil)
	require.Len(t, ids, 3)

	_, other := f.scope(t)
	stub := &customer{ID: ids[0]}
	require.True(t, other.Delete(ctx, service.Direct(stub), false, "").IsSuccess())
	require.True(t, other.DeleteRangeByID(ctx, ids[1:], true, "").IsSuccess())

	assert.Zero(t, f.store.Len("customers"))
}

func TestPendingDeleteIsSkippedBeforePaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	ids := svc.AddRange(ctx, service.Entries(&customer{Name: "a"}, &customer{Name: "b"}, &customer{Name: "c"}), true, "").OrElse(nil)
	require.Len(t, ids, 3)

	_, other := f.scope(t)
	require.True(t, other.DeleteByID(ctx, ids[0], false, "").IsSuccess())

	page, ok := other.GetBySpec(ctx, core.Spec{}.Asc("id").Page(0, 1)).Value()
	require.True(t, ok)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Name)

	page, ok = other.GetBySpec(ctx, core.Spec{}.Asc("id").Page(1, 5)).Value()
	require.True(t, ok)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].Name)

	first, ok := other.GetSingleBySpec(ctx, core.Spec{}.Asc("id").Page(0, 1)).Value()
	require.True(t, ok)
	assert.Equal(t, ids[1], first.ID)

	count, ok := other.LongCount(ctx, nil).Value()
	require.True(t, ok)
	assert.Equal(t, int64(2), count)

	_, untouched := f.scope(t)
	count, ok = untouched.LongCount(ctx, nil).Value()
	require.True(t, ok)
	assert.Equal(t, int64(3), count)
}

func TestDisableKeepsRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	id := svc.Add(ctx, service.Direct(&customer{Name: "x", Active: true}), true, "").OrElse(0)

	_, other := f.scope(t)
	require.True(t, other.DisableByID(ctx, id, true, "ops").IsSuccess())

	_, third := f.scope(t)
	got, ok := third.Get(ctx, id).Value()
	require.True(t, ok)
	assert.False(t, got.Active)
	assert.Equal(t, "ops", got.UpdatedBy)
}

func TestDisableRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	a, b := &customer{Name: "a", Active: true}, &customer{Name: "b", Active: true}
	require.True(t, svc.AddRange(ctx, service.Entries(a, b), true, "").IsSuccess())

	require.True(t, svc.DisableRange(ctx, service.Entries(a, b), true, "").IsSuccess())
	active, ok := svc.Any(ctx, core.Where(core.Eq("active", true))).Value()
	require.True(t, ok)
	assert.False(t, active)
}

func TestBeginUpdateSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, seed := f.scope(t)
	id := seed.Add(ctx, service.Direct(&customer{Name: "orig"}), true, "").OrElse(0)

	_, svc := f.scope(t)
	_, ok := svc.Get(ctx, id).Value()
	require.True(t, ok)

	replacement := &customer{ID: id, Name: "replacement"}
	r := svc.BeginUpdate(service.Direct(replacement), false)
	require.True(t, r.Is(result.Exception))
	assert.ErrorIs(t, r.AsError(), core.ErrDuplicateTracking)

	require.True(t, svc.BeginUpdate(service.Direct(replacement), true).IsSuccess())
	n, ok := svc.Commit(ctx, "").Value()
	require.True(t, ok)
	assert.Equal(t, 1, n)

	_, other := f.scope(t)
	got, _ := other.Get(ctx, id).Value()
	assert.Equal(t, "replacement", got.Name)
}

func TestBeginUpdateRangeNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, seed := f.scope(t)
	a := &customer{Name: "a"}
	require.True(t, seed.Add(ctx, service.Direct(a), true, "").IsSuccess())

	a.Name = "changed"
	require.True(t, seed.BeginUpdateRange(service.Entries(a), false).IsSuccess())

	_, other := f.scope(t)
	got, _ := other.Get(ctx, a.ID).Value()
	assert.Equal(t, "a", got.Name)
}

func TestNullArgumentsSkipRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u, svc := f.scope(t)

	checks := map[string]result.Result{
		"Add":              svc.Add(ctx, service.Direct[*customer](nil), true, "").Result(),
		"AddMapped":        svc.Add(ctx, service.Mapped[*customer](nil), true, "").Result(),
		"AddRange nil":     svc.AddRange(ctx, nil, true, "").Result(),
		"AddRange element": svc.AddRange(ctx, []service.Entry[*customer]{service.Direct(&customer{}), service.Direct[*customer](nil)}, true, "").Result(),
		"Get":              svc.Get(ctx, 0).Result(),
		"BeginUpdate":      svc.BeginUpdate(service.Direct[*customer](nil), true),
		"Delete":           svc.Delete(ctx, service.Direct[*customer](nil), true, ""),
		"DeleteByID":       svc.DeleteByID(ctx, 0, true, ""),
		"DeleteRange":      svc.DeleteRange(ctx, nil, true, ""),
		"DeleteRangeByID":  svc.DeleteRangeByID(ctx, []int64{1, 0}, true, ""),
		"Disable":          svc.Disable(ctx, service.Direct[*customer](nil), true, ""),
		"DisableByID":      svc.DisableByID(ctx, 0, true, ""),
		"DisableRange":     svc.DisableRange(ctx, nil, true, ""),
		"DisableRangeByID": svc.DisableRangeByID(ctx, nil, true, ""),
		"Detach":           svc.Detach(service.Direct[*customer](nil)),
	}
	for name, r := range checks {
		assert.True(t, r.Is(result.ArgumentNull), name)
		assert.ErrorIs(t, r.AsError(), result.ErrArgumentNull, name)
	}
	assert.Zero(t, u.resolved)
}

func TestGetAsBothPathsAgree(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	id := svc.Add(ctx, service.Direct(&customer{Name: "view me"}), true, "").OrElse(0)

	mapped, ok := service.GetAs[customerView](ctx, svc.ReadService, id, false).Value()
	require.True(t, ok)
	projected, ok := service.GetAs[customerView](ctx, svc.ReadService, id, true).Value()
	require.True(t, ok)
	assert.Equal(t, mapped, projected)
	assert.Equal(t, customerView{ID: id, Name: "view me"}, mapped)

	for _, direct := range []bool{false, true} {
		r := service.GetAs[customerView](ctx, svc.ReadService, id+100, direct)
		assert.True(t, r.Is(result.NotFound), "projectDirectly=%v", direct)
	}
}

func TestSpecReadsAs(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	require.True(t, svc.AddRange(ctx, service.Entries(
		&customer{Name: "b", Active: true},
		&customer{Name: "a", Active: true},
		&customer{Name: "c"},
	), true, "").IsSuccess())

	spec := core.Where(core.Eq("active", true)).Asc("name")
	for _, direct := range []bool{false, true} {
		views, ok := service.GetBySpecAs[customerView](ctx, svc.ReadService, spec, direct).Value()
		require.True(t, ok)
		require.Len(t, views, 2)
		assert.Equal(t, "a", views[0].Name)

		first, ok := service.GetSingleBySpecAs[customerView](ctx, svc.ReadService, spec, direct).Value()
		require.True(t, ok)
		assert.Equal(t, "a", first.Name)

		all, ok := service.GetAllAs[customerView](ctx, svc.ReadService, direct).Value()
		require.True(t, ok)
		assert.Len(t, all, 3)

		missing := service.GetSingleBySpecAs[customerView](ctx, svc.ReadService, core.Where(core.Eq("name", "zz")), direct)
		assert.True(t, missing.Is(result.NotFound))
	}

	none, ok := svc.GetBySpec(ctx, core.Where(core.Eq("name", "zz"))).Value()
	require.True(t, ok)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDetachDropsPendingChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)
	c := &customer{Name: "tmp"}
	require.True(t, svc.Add(ctx, service.Direct(c), false, "").IsSuccess())
	require.True(t, svc.Detach(service.Direct(c)).IsSuccess())

	n, ok := svc.Commit(ctx, "").Value()
	require.True(t, ok)
	assert.Zero(t, n)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture()
	_, svc := f.scope(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := svc.AddRange(ctx, service.Entries(&customer{Name: "a"}, &customer{Name: "b"}), true, "")
	require.True(t, r.IsFailure())
	assert.ErrorIs(t, r.Err(), context.Canceled)
	assert.Zero(t, f.store.Len("customers"))

	assert.True(t, svc.Get(ctx, 1).Is(result.Exception))
}

func TestCancelledBeforeCommit(t *testing.T) {
	f := newFixture()
	_, svc := f.scope(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, svc.AddRange(ctx, service.Entries(&customer{Name: "a"}, &customer{Name: "b"}), false, "").IsSuccess())
	cancel()
	r := svc.Commit(ctx, "")
	assert.ErrorIs(t, r.Err(), context.Canceled)
	assert.Zero(t, f.store.Len("customers"))

	n, ok := svc.Commit(context.Background(), "").Value()
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestStoreFailureIsException(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, svc := f.scope(t)

	r := svc.BeginUpdate(service.Direct(&customer{ID: 77, Name: "ghost"}), false)
	require.True(t, r.IsSuccess())
	commit := svc.Commit(ctx, "")
	assert.True(t, commit.Is(result.Exception))
	assert.ErrorIs(t, commit.Err(), core.ErrConcurrency)
}

func TestInterceptorsWrapOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var calls []string
	record := service.InterceptorFunc(func(ctx context.Context, call service.Call, next func(context.Context) error) error {
		calls = append(calls, call.Path())
		return next(ctx)
	})
	onlyDeletes, err := service.Match("*/Delete*", record)
	require.NoError(t, err)

	_, svc := f.scope(t, service.WithInterceptors(onlyDeletes))
	id := svc.Add(ctx, service.Direct(&customer{Name: "x"}), true, "").OrElse(0)
	svc.DeleteByID(ctx, id, true, "")

	assert.Equal(t, []string{"customer/DeleteByID"}, calls)

	_, err = service.Match("[", record)
	assert.Error(t, err)
}

func TestInterceptorPanicIsRecovered(t *testing.T) {
	f := newFixture()
	boom := service.InterceptorFunc(func(context.Context, service.Call, func(context.Context) error) error {
		panic(errors.New("interceptor exploded"))
	})
	_, svc := f.scope(t, service.WithInterceptors(boom))
	r := svc.GetAll(context.Background())
	assert.True(t, r.Is(result.Exception))
	assert.Contains(t, r.Err().Error(), "interceptor exploded")
}
