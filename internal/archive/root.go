package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// PackageRoot locates the package root inside an extraction directory.
// dir itself is the root when it holds marker; otherwise the root is its only
// top-level directory, ignoring hidden entries and macOS resource forks.
// When neither applies dir is returned and the caller's marker lookup fails.
func PackageRoot(fs afero.Fs, dir, marker string) (string, error) {
	if _, err := fs.Stat(filepath.Join(dir, marker)); err == nil {
		return dir, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("read extraction directory: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Name() == "__MACOSX" {
			continue
		}
		dirs = append(dirs, e.Name())
	}
	if len(dirs) == 1 {
		return filepath.Join(dir, dirs[0]), nil
	}
	return dir, nil
}
