// Package version orders package version strings.
//
// Versions are compared by numeric segments with pre-release qualifiers ordering
// below their final release, so 1.2.0-rc1 < 1.2.0 < 1.10.0. A leading "v" is ignored.
package version

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnparsable indicates a version string that cannot be ordered
var ErrUnparsable = errors.New("unparsable version")

// Parse parses a version string
func Parse(v string) (*semver.Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(v), "v")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty string", ErrUnparsable)
	}
	parsed, err := semver.NewVersion(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnparsable, v, err)
	}
	return parsed, nil
}

// Compare returns -1, 0 or 1 when a is lower than, equal to or greater than b
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Newer reports whether candidate orders strictly after current
func Newer(candidate, current string) (bool, error) {
	cmp, err := Compare(candidate, current)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// Less orders versions for display. Unparsable versions sort before parsable
// ones and are ordered lexically among themselves.
func Less(a, b string) bool {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return true
	case errB != nil:
		return false
	}
	if c := va.Compare(vb); c != 0 {
		return c < 0
	}
	return a < b
}

// Sort sorts versions ascending in place
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Less(versions[i], versions[j])
	})
}

// Max returns the highest version of the list, or "" for an empty list
func Max(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	sorted := append([]string(nil), versions...)
	Sort(sorted)
	return sorted[len(sorted)-1]
}
