package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateExtractPath prevents directory traversal (Zip Slip).
// It ensures entryPath, joined onto targetDir, does not escape targetDir.
func ValidateExtractPath(targetDir, entryPath string) error {
	if strings.Contains(entryPath, "\x00") {
		return fmt.Errorf("path contains null byte: %q", entryPath)
	}

	cleanPath := filepath.Clean(filepath.FromSlash(entryPath))

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute path not allowed: %s", entryPath)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes destination: %s", entryPath)
	}

	cleanDest, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve target directory: %w", err)
	}
	cleanTarget, err := filepath.Abs(filepath.Join(targetDir, cleanPath))
	if err != nil {
		return fmt.Errorf("resolve destination path: %w", err)
	}

	if !within(cleanTarget, cleanDest) {
		return fmt.Errorf("path escapes destination directory: %s", entryPath)
	}
	return nil
}

// ValidateSymlink ensures a symlink created at linkPath pointing to linkTarget
// resolves inside targetDir
func ValidateSymlink(targetDir, linkPath, linkTarget string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink target not allowed: %s -> %s", linkPath, linkTarget)
	}

	resolved, err := filepath.Abs(filepath.Join(filepath.Dir(linkPath), linkTarget))
	if err != nil {
		return fmt.Errorf("resolve symlink target: %w", err)
	}
	cleanDest, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve target directory: %w", err)
	}

	if !within(resolved, cleanDest) {
		return fmt.Errorf("symlink target escapes destination: %s -> %s", linkPath, linkTarget)
	}
	return nil
}

// IsPathWithinDirectory reports whether targetPath is basePath or below it.
// Both paths must be absolute.
func IsPathWithinDirectory(targetPath, basePath string) (bool, error) {
	if !filepath.IsAbs(targetPath) {
		return false, fmt.Errorf("target path must be absolute, got relative path: %s", targetPath)
	}
	if !filepath.IsAbs(basePath) {
		return false, fmt.Errorf("base path must be absolute, got relative path: %s", basePath)
	}

	rel, err := filepath.Rel(filepath.Clean(basePath), filepath.Clean(targetPath))
	if err != nil {
		return false, fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}
