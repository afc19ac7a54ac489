package result_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/result"
)

func TestWrap(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := result.Wrap(func() error { return nil })
		assert.True(t, r.IsSuccess())
		assert.Nil(t, r.Err())
	})

	t.Run("error becomes exception", func(t *testing.T) {
		boom := errors.New("boom")
		r := result.Wrap(func() error { return boom })
		require.True(t, r.IsFailure())
		assert.True(t, r.Is(result.Exception))
		assert.ErrorIs(t, r.AsError(), boom)
		assert.ErrorIs(t, r.AsError(), result.ErrException)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		r := result.Wrap(func() error { panic("kaput") })
		require.True(t, r.IsFailure())
		assert.True(t, r.Is(result.Exception))
		assert.Contains(t, r.Err().Error(), "kaput")
	})
}

func TestWrapValue(t *testing.T) {
	r := result.WrapValue(func() (int, error) { return 42, nil })
	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, 42, v)

	failed := result.WrapValue(func() (int, error) { return 7, errors.New("nope") })
	v, ok = failed.Value()
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, -1, failed.OrElse(-1))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want result.Kind
	}{
		{"not found sentinel", fmt.Errorf("get 3: %w", core.ErrNotFound), result.NotFound},
		{"argument null sentinel", fmt.Errorf("entry: %w", core.ErrArgumentNull), result.ArgumentNull},
		{"typed error keeps kind", result.NewArgumentNull("id"), result.ArgumentNull},
		{"wrapped typed error", fmt.Errorf("outer: %w", result.NewNotFound("product")), result.NotFound},
		{"anything else", core.ErrConcurrency, result.Exception},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, result.KindOf(tt.err))
			r := result.Fail[string](tt.err)
			assert.True(t, r.Is(tt.want))
			assert.ErrorIs(t, r.Err(), tt.err)
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := error(result.NewNotFound("product 9"))
	assert.ErrorIs(t, err, result.ErrNotFound)
	assert.NotErrorIs(t, err, result.ErrArgumentNull)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	r := result.DoValue(ctx, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called)
	require.True(t, r.Is(result.Exception))
	assert.ErrorIs(t, r.Err(), context.Canceled)

	r2 := result.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, r2.AsError(), context.Canceled)
}

func TestUnwrap(t *testing.T) {
	v, err := result.Ok("x").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = result.Fail[string](core.ErrNotFound).Unwrap()
	assert.ErrorIs(t, err, result.ErrNotFound)
}

func TestMapAndBind(t *testing.T) {
	doubled := result.Map(result.Ok(21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.OrElse(0))

	failed := result.Map(result.Fail[int](core.ErrNotFound), func(v int) string { return "unreachable" })
	assert.True(t, failed.Is(result.NotFound))

	bound := result.Bind(result.Ok(2), func(v int) result.Of[string] {
		if v > 1 {
			return result.Fail[string](result.NewArgumentNull("v"))
		}
		return result.Ok("ok")
	})
	assert.True(t, bound.Is(result.ArgumentNull))
}
