package integrity

import (
	"crypto/md5"  //nolint:gosec // md5 is accepted for legacy manifests only
	"crypto/sha1" //nolint:gosec // sha1 is accepted for legacy manifests only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// Algorithm names a supported digest function
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"

	// DefaultAlgorithm is used when no algorithm is configured
	DefaultAlgorithm = SHA256

	chunkSize = 4096
)

var (
	// ErrUnsupportedAlgorithm is a configuration error
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")

	// ErrChecksumMismatch indicates the computed digest differs from the expected one
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ChecksumError carries both digests of a failed verification
type ChecksumError struct {
	Path      string
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum mismatch for %s: expected %s, got %s", e.Algorithm, e.Path, e.Expected, e.Actual)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Algorithms lists the supported algorithms
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256, SHA512}
}

// ParseAlgorithm validates an algorithm name. An empty name selects the default.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	algo := Algorithm(name)
	if !slices.Contains(Algorithms(), algo) {
		names := make([]string, 0, len(Algorithms()))
		for _, a := range Algorithms() {
			names = append(names, string(a))
		}
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedAlgorithm, name, strings.Join(names, ", "))
	}
	return algo, nil
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil //nolint:gosec // see import
	case SHA1:
		return sha1.New(), nil //nolint:gosec // see import
	case SHA256, "":
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algo)
	}
}

// Verifier computes and compares file digests
type Verifier struct {
	fs afero.Fs
}

// NewVerifier creates a Verifier reading through fs
func NewVerifier(fs afero.Fs) *Verifier {
	return &Verifier{fs: fs}
}

// ComputeDigest returns the lowercase hex digest of the file at path.
// The file is read in fixed-size chunks so memory stays bounded for large archives.
func (v *Verifier) ComputeDigest(path string, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	f, err := v.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the digest of path equals expected.
// The comparison is an exact, case-sensitive match against the lowercase digest.
func (v *Verifier) Verify(path, expected string, algo Algorithm) (bool, error) {
	actual, err := v.ComputeDigest(path, algo)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// VerifyFile is like Verify but returns a *ChecksumError on mismatch
func (v *Verifier) VerifyFile(path, expected string, algo Algorithm) error {
	if algo == "" {
		algo = DefaultAlgorithm
	}
	actual, err := v.ComputeDigest(path, algo)
	if err != nil {
		return err
	}
	if actual != expected {
		return &ChecksumError{Path: path, Algorithm: algo, Expected: expected, Actual: actual}
	}
	return nil
}
