package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfig(t *testing.T) {
	// /tmp/
	//   repo/ (furrow.yaml)
	//     subdir/
	//       nested/
	//   empty/
	baseDir := t.TempDir()
	repoDir := filepath.Join(baseDir, "repo")
	nestedDir := filepath.Join(repoDir, "subdir", "nested")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	require.NoError(t, os.MkdirAll(emptyDir, 0o755))
	cfgPath := filepath.Join(repoDir, "furrow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: info\n"), 0o644))

	// A directory with a config name is not a config file.
	require.NoError(t, os.Mkdir(filepath.Join(nestedDir, "furrow.yml"), 0o755))

	tests := []struct {
		name      string
		startPath string
		want      string
		wantErr   bool
	}{
		{"Start at Root", repoDir, cfgPath, false},
		{"Start in Nested Dir", nestedDir, cfgPath, false},
		{"No Config", emptyDir, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindConfig(tt.startPath)
			if tt.wantErr {
				// The temp dir may sit below a directory holding a furrow.yaml;
				// only assert that nothing under baseDir was picked.
				if err == nil {
					assert.NotContains(t, got, baseDir)
					return
				}
				assert.ErrorIs(t, err, ErrNoConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
