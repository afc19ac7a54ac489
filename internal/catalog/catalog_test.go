package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/internal/catalog"
	"github.com/aretw0/furrow/internal/platform"
	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
	"github.com/aretw0/furrow/pkg/result"
	"github.com/aretw0/furrow/pkg/service"
	"github.com/aretw0/furrow/pkg/uow"
)

func engines(t *testing.T) map[string]*platform.Engine {
	t.Helper()
	ctx := context.Background()

	mem, err := platform.New(ctx, "")
	require.NoError(t, err)

	lite, err := platform.New(ctx, "file:"+filepath.Join(t.TempDir(), "catalog.db"),
		platform.WithBackend(platform.BackendSQLite),
		platform.WithMigrator(catalog.Migrate),
	)
	require.NoError(t, err)

	out := map[string]*platform.Engine{"memory": mem, "sqlite": lite}
	for _, e := range out {
		require.NoError(t, catalog.Install(e))
		t.Cleanup(func() { _ = e.Close() })
	}
	return out
}

func TestProductLifecycle(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var id int64
			require.NoError(t, e.Scope(ctx, func(u *uow.UnitOfWork) error {
				svc := platform.NewService[*catalog.Product, int64](e, u)
				var err error
				id, err = svc.Add(ctx, service.Mapped[*catalog.Product](catalog.ProductInput{
					SKU: "SKU-1", Name: "Garden Hose", PriceCents: 1999,
				}), true, "ana").Unwrap()
				return err
			}))

			require.NoError(t, e.Scope(ctx, func(u *uow.UnitOfWork) error {
				svc := platform.NewService[*catalog.Product, int64](e, u)
				p, err := svc.Get(ctx, id).Unwrap()
				require.NoError(t, err)
				assert.True(t, p.Active)
				assert.Equal(t, "ana", p.CreatedBy)
				assert.False(t, p.CreatedAt.IsZero())

				return svc.DisableByID(ctx, id, true, "bo").AsError()
			}))

			require.NoError(t, e.Scope(ctx, func(u *uow.UnitOfWork) error {
				svc := platform.NewReadService[*catalog.Product, int64](e, u)
				n, err := svc.LongCount(ctx, nil).Unwrap()
				require.NoError(t, err)
				assert.EqualValues(t, 1, n)

				active, err := svc.Any(ctx, catalog.Active()).Unwrap()
				require.NoError(t, err)
				assert.False(t, active)

				views, err := service.GetBySpecAs[catalog.ProductView](ctx, svc, catalog.Named("hose"), true).Unwrap()
				require.NoError(t, err)
				require.Len(t, views, 1)
				assert.Equal(t, "SKU-1", views[0].SKU)
				assert.False(t, views[0].Active)
				return nil
			}))
		})
	}
}

func TestInvalidInputIsRejected(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, e.Scope(ctx, func(u *uow.UnitOfWork) error {
				res := platform.NewService[*catalog.Product, int64](e, u).Add(ctx,
					service.Mapped[*catalog.Product](catalog.ProductInput{Name: "no sku"}), true, "")
				assert.True(t, res.Is(result.Exception))
				return nil
			}))
		})
	}
}

func TestDuplicateSKUOnSQLite(t *testing.T) {
	e := engines(t)["sqlite"]
	ctx := context.Background()
	add := func(sku string) error {
		return e.Scope(ctx, func(u *uow.UnitOfWork) error {
			_, err := platform.NewService[*catalog.Product, int64](e, u).Add(ctx,
				service.Mapped[*catalog.Product](&catalog.ProductInput{SKU: sku, Name: "n"}), true, "").Unwrap()
			return err
		})
	}
	require.NoError(t, add("DUP"))
	assert.Error(t, add("DUP"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "m.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, catalog.Migrate(ctx, s))
	require.NoError(t, catalog.Migrate(ctx, s))

	v, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}
