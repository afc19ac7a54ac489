package tracking

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/core"
)

type toggle struct {
	ID     int
	Active bool
}

func (t *toggle) GetID() int        { return t.ID }
func (t *toggle) SetID(id int)      { t.ID = id }
func (t *toggle) IsActive() bool    { return t.Active }
func (t *toggle) SetActive(on bool) { t.Active = on }

type toggleBinding struct{ recorder }

func (b *toggleBinding) Key(entity any) (Key, bool) {
	if e, ok := entity.(*toggle); ok {
		return KeyOf[*toggle, int](e)
	}
	return b.recorder.Key(entity)
}

func newSets(t *testing.T) (*Tracker, Set[*toggle, int], Set[*order, int]) {
	t.Helper()
	tr := New()
	b := &toggleBinding{}
	rows := map[int]*toggle{1: {ID: 1, Active: true}, 2: {ID: 2, Active: true}}
	toggles := Set[*toggle, int]{
		Tracker: tr,
		Binding: b,
		Name:    "toggles",
		Load: func(_ context.Context, id int) (*toggle, error) {
			row, ok := rows[id]
			if !ok {
				return nil, fmt.Errorf("toggles[%d]: %w", id, core.ErrNotFound)
			}
			e, _ := tr.Attach(&toggle{ID: row.ID, Active: row.Active}, b)
			return e.(*toggle), nil
		},
	}
	orders := Set[*order, int]{Tracker: tr, Binding: b, Name: "orders"}
	return tr, toggles, orders
}

func TestSetDisableByID(t *testing.T) {
	ctx := context.Background()
	tr, toggles, _ := newSets(t)

	require.NoError(t, toggles.DisableRangeByID(ctx, []int{1, 2}))
	for _, id := range []int{1, 2} {
		e, ok := tr.Lookup(Key{Type: reflect.TypeFor[*toggle](), ID: id})
		require.True(t, ok)
		assert.False(t, e.(*toggle).Active)
		assert.Equal(t, Modified, tr.StateOf(e))
	}

	err := toggles.DisableByID(ctx, 3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSetDisableRequiresCapability(t *testing.T) {
	_, _, orders := newSets(t)
	err := orders.Disable(context.Background(), &order{ID: 1})
	assert.ErrorIs(t, err, core.ErrNotDisableable)
}

func TestSetDeleteByIDAndDetach(t *testing.T) {
	ctx := context.Background()
	tr, toggles, _ := newSets(t)

	e, err := toggles.Load(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, toggles.DeleteByID(ctx, 1))
	assert.Equal(t, Deleted, tr.StateOf(e))
	_, visible := tr.Lookup(Key{Type: reflect.TypeOf(e), ID: 1})
	assert.False(t, visible)

	require.NoError(t, toggles.Detach(e))
	assert.Equal(t, Detached, tr.StateOf(e))
}

func TestSetHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr, toggles, _ := newSets(t)

	assert.ErrorIs(t, toggles.Add(ctx, &toggle{ID: 9}), context.Canceled)
	assert.ErrorIs(t, toggles.DeleteRange(ctx, []*toggle{{ID: 9}}), context.Canceled)
	assert.Zero(t, tr.Len())
}
