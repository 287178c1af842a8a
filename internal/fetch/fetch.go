// Package fetch retrieves package archives and manifests by URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/spf13/afero"
)

// DefaultMaxBytes caps the size of a single download (1 GiB)
const DefaultMaxBytes = 1 << 30

// ErrUnsupportedScheme is returned for URLs that are neither http(s) nor file
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// ErrTooLarge is returned when a response exceeds the configured limit
var ErrTooLarge = errors.New("response exceeds size limit")

// Fetcher returns the bytes behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// StatusError is a non-200 HTTP response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

type (
	// HTTPFetcher fetches http, https and file URLs
	HTTPFetcher struct {
		client    *http.Client
		fs        afero.Fs
		userAgent string
		progress  io.Writer
		maxBytes  int64
	}

	// Option configures an HTTPFetcher
	Option func(*HTTPFetcher)
)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithTimeout sets a per-request timeout on a fresh client
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.client = &http.Client{Timeout: d} }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithProgress renders a download progress bar to w
func WithProgress(w io.Writer) Option {
	return func(f *HTTPFetcher) { f.progress = w }
}

// WithFs sets the filesystem used for file:// URLs
func WithFs(fs afero.Fs) Option {
	return func(f *HTTPFetcher) { f.fs = fs }
}

// WithMaxBytes overrides DefaultMaxBytes
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

// NewHTTPFetcher creates an HTTPFetcher
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: 5 * time.Minute},
		fs:        afero.NewOsFs(),
		userAgent: "qpm",
		maxBytes:  DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u)
	case "file":
		return f.fetchFile(u.Path)
	default:
		return nil, fmt.Errorf("%s: %w", u.Scheme, ErrUnsupportedScheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", Redact(u.String()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: Redact(u.String()), StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("GET %s: %d bytes: %w", Redact(u.String()), resp.ContentLength, ErrTooLarge)
	}

	var body io.Reader = resp.Body
	if f.progress != nil {
		pr := ui.NewProgressReader(resp.Body, f.progress, resp.ContentLength, "downloading "+filepath.Base(u.Path))
		defer pr.Close()
		body = pr
	}

	return f.readLimited(body, Redact(u.String()))
}

func (f *HTTPFetcher) fetchFile(path string) ([]byte, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return f.readLimited(file, path)
}

func (f *HTTPFetcher) readLimited(r io.Reader, what string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%s: %w", what, ErrTooLarge)
	}
	return data, nil
}

// Redact strips credentials, query and fragment from a URL for logs and errors
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
