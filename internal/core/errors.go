package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures
type ErrorKind string

const (
	KindFetch             ErrorKind = "fetch"
	KindArchive           ErrorKind = "archive"
	KindManifestNotFound  ErrorKind = "manifest-not-found"
	KindInvalidManifest   ErrorKind = "invalid-manifest"
	KindChecksumMismatch  ErrorKind = "checksum-mismatch"
	KindDependencyMissing ErrorKind = "dependency-missing"
	KindScriptExecution   ErrorKind = "script-execution"
	KindFileSystem        ErrorKind = "filesystem"
)

// Error is the tagged error returned by the installer, update checker and self-updater.
// Callers discriminate on Kind with errors.Is against the sentinels below or with KindOf.
type Error struct {
	Kind    ErrorKind
	Package string
	Err     error
}

// Sentinels for errors.Is. They carry only a kind.
var (
	ErrFetch             = &Error{Kind: KindFetch}
	ErrArchive           = &Error{Kind: KindArchive}
	ErrManifestNotFound  = &Error{Kind: KindManifestNotFound}
	ErrInvalidManifest   = &Error{Kind: KindInvalidManifest}
	ErrChecksumMismatch  = &Error{Kind: KindChecksumMismatch}
	ErrDependencyMissing = &Error{Kind: KindDependencyMissing}
	ErrScriptExecution   = &Error{Kind: KindScriptExecution}
	ErrFileSystem        = &Error{Kind: KindFileSystem}
)

// NewError wraps err with a kind and the package it concerns (may be empty)
func NewError(kind ErrorKind, pkg string, err error) *Error {
	return &Error{Kind: kind, Package: pkg, Err: err}
}

// Errorf builds an *Error from a format string
func Errorf(kind ErrorKind, pkg string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Package: pkg, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Package != "" {
		return fmt.Sprintf("%s: %s", e.Package, msg)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Package == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Describe returns a human-readable label for a kind
func (k ErrorKind) Describe() string {
	switch k {
	case KindFetch:
		return "download failed"
	case KindArchive:
		return "archive is corrupt or unreadable"
	case KindManifestNotFound:
		return "manifest not found in package"
	case KindInvalidManifest:
		return "manifest is invalid"
	case KindChecksumMismatch:
		return "checksum verification failed"
	case KindDependencyMissing:
		return "missing dependency"
	case KindScriptExecution:
		return "install script failed"
	case KindFileSystem:
		return "filesystem error"
	default:
		return "unknown error"
	}
}
