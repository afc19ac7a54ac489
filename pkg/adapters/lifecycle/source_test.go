package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/adapters/lifecycle"
	"github.com/aretw0/furrow/pkg/core"
)

func TestSourceForwardsAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 1)
	src := lifecycle.NewSource(in)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventCreate, Entity: "product", ID: int64(1), Actor: "ops"}

	select {
	case e := <-src.Events():
		assert.Equal(t, "CREATE product[1] by ops", e.String())
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}

	close(in)
	select {
	case _, ok := <-src.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output not closed")
	}
}

func TestSourceFilters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 4)
	src := lifecycle.NewSource(in,
		lifecycle.OnlyTypes(core.EventDelete),
		lifecycle.OnlyEntities("product"),
	)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventCreate, Entity: "product", ID: int64(1)}
	in <- core.Event{Type: core.EventDelete, Entity: "order", ID: int64(2)}
	in <- core.Event{Type: core.EventDelete, Entity: "product", ID: int64(3)}
	close(in)

	var got []string
	for e := range src.Events() {
		got = append(got, e.String())
	}
	assert.Equal(t, []string{"DELETE product[3]"}, got)
}
