package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigNames are the file names FindConfig looks for, in order.
var ConfigNames = []string{"furrow.yaml", "furrow.yml", ".furrow.yaml"}

// ErrNoConfig is returned by FindConfig when no directory up to the filesystem
// root holds a config file.
var ErrNoConfig = errors.New("config file not found")

// FindConfig looks upwards from startDir for one of ConfigNames and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range ConfigNames {
			if path := filepath.Join(dir, name); isFile(path) {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", ErrNoConfig
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
