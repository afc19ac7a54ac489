package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
)

func TestIsDevRunUnderGoTest(t *testing.T) {
	assert.True(t, IsDevRun())
}

// outsideTemp returns an absolute path that is never under os.TempDir, whatever
// the working directory is.
func outsideTemp(name string) string {
	return filepath.Join(string(os.PathSeparator), "furrow-outside-temp", name)
}

func TestResolveSQLiteDSN(t *testing.T) {
	sandbox := filepath.Join(os.TempDir(), "furrow-dev")
	inTemp := filepath.Join(t.TempDir(), "x.db")
	shop := outsideTemp("shop.db")

	tests := []struct {
		name      string
		dsn       string
		forceTemp bool
		want      string
	}{
		{"no sandbox", "shop.db", false, "shop.db"},
		{"plain file", shop, true, filepath.Join(sandbox, "shop.db")},
		{"file scheme keeps query", "file:" + shop + "?_pragma=foreign_keys(1)", true, "file:" + filepath.Join(sandbox, "shop.db") + "?_pragma=foreign_keys(1)"},
		{"memory", ":memory:", true, ":memory:"},
		{"memory mode", "file:x?mode=memory&cache=shared", true, "file:x?mode=memory&cache=shared"},
		{"already in temp", "file:" + inTemp, true, "file:" + inTemp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSQLiteDSN(tt.dsn, tt.forceTemp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	o := defaultOptions()
	o.backend = "oracle"
	_, _, err := openStore(context.Background(), "", o)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestSQLiteIsSandboxedInDevRuns(t *testing.T) {
	name := "furrow-sandbox-test.db"
	requested := outsideTemp(name)
	e, err := New(context.Background(), "file:"+requested, WithBackend(BackendSQLite))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
		_ = os.Remove(filepath.Join(os.TempDir(), "furrow-dev", name))
	})

	_, statErr := os.Stat(requested)
	assert.True(t, os.IsNotExist(statErr), "the requested location must stay untouched")

	s, ok := e.Store().(*sqlstore.Store)
	require.True(t, ok)
	assert.Equal(t, sqlstore.DriverSQLite, s.Driver())
	assert.FileExists(t, filepath.Join(os.TempDir(), "furrow-dev", name))
}
