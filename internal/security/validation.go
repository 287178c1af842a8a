package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// ValidPackageNameRegex allows alphanumeric, dash, underscore, and dot
	ValidPackageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	// ValidVersionRegex allows standard version formats
	ValidVersionRegex = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)
)

// ValidatePackageName validates a package name. Names become directory names
// in the store, so they must be a single safe path component.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("package name too long (max 255 characters)")
	}
	if !ValidPackageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name %q: must contain only alphanumeric, dash, underscore, or dot characters", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid package name %q: must not start with a dot", name)
	}
	return nil
}

// ValidateVersion validates a version string used as a directory name
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("invalid version: version cannot be empty")
	}
	if len(version) >= 100 {
		return fmt.Errorf("version string too long (max 100 characters)")
	}
	if strings.Contains(version, "\x00") {
		return fmt.Errorf("invalid version: contains null byte")
	}

	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(version, pattern) {
			return fmt.Errorf("invalid version: contains dangerous pattern: %s", pattern)
		}
	}
	if strings.HasPrefix(version, ".") {
		return fmt.Errorf("invalid version %q: must not start with a dot", version)
	}

	if !ValidVersionRegex.MatchString(version) {
		return fmt.Errorf("invalid version format: must be alphanumeric with dots, dashes, or plus signs")
	}
	return nil
}

// ValidateCommandArg validates a command-line argument passed to a child process
func ValidateCommandArg(arg string) error {
	if strings.Contains(arg, "\x00") {
		return fmt.Errorf("argument contains null byte")
	}
	for _, char := range []string{"\n", "\r"} {
		if strings.Contains(arg, char) {
			return fmt.Errorf("argument contains line break")
		}
	}
	return nil
}
