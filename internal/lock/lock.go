// Package lock provides the per-package advisory lock held while a package
// version is verified and committed into the store.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the hidden store subdirectory holding lock files
const Dir = ".locks"

// Path returns <store-root>/.locks/<name>@<version>.lock
func Path(storeRoot, name, version string) string {
	return filepath.Join(storeRoot, Dir, fmt.Sprintf("%s@%s.lock", name, version))
}

// Acquire blocks until the exclusive lock for name@version is held.
// The zero-byte lock file is left behind on release.
func Acquire(storeRoot, name, version string) (*Lock, error) {
	path := Path(storeRoot, name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return acquire(path)
}
