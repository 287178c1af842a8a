package installer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/quantmind-br/qpm/internal/archive/archivetest"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/sandbox"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const payload = "PAYLOAD-CONTENT-0123456789"

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return data, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeRunner struct {
	result sandbox.Result
	err    error
	calls  [][2]string
}

func (r *fakeRunner) Run(ctx context.Context, scriptPath, workDir string) (sandbox.Result, error) {
	r.calls = append(r.calls, [2]string{scriptPath, workDir})
	return r.result, r.err
}

// aliasVerifier lets test manifests name a placeholder checksum. A package
// cannot carry the digest of the archive that contains it, so tests map each
// placeholder to the real digest of the published bytes and still run the
// real verifier over the downloaded file.
type aliasVerifier struct {
	real    *integrity.Verifier
	digests map[string]string
	calls   int
}

func (v *aliasVerifier) VerifyFile(path, expected string, algo integrity.Algorithm) error {
	v.calls++
	if actual, ok := v.digests[expected]; ok {
		expected = actual
	}
	return v.real.VerifyFile(path, expected, algo)
}

type fakeJournal struct {
	events []core.Event
}

func (j *fakeJournal) Record(ctx context.Context, ev core.Event) error {
	j.events = append(j.events, ev)
	return nil
}

type env struct {
	t         *testing.T
	storeRoot string
	tempDir   string
	store     *store.PackageStore
	fetcher   *fakeFetcher
	runner    *fakeRunner
	verifier  *aliasVerifier
	journal   *fakeJournal
	inst      *Installer
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	root := t.TempDir()
	fs := afero.NewOsFs()
	logger := zerolog.Nop()

	e := &env{
		t:         t,
		storeRoot: filepath.Join(root, "packages"),
		tempDir:   filepath.Join(root, "tmp"),
		fetcher:   &fakeFetcher{data: map[string][]byte{}, calls: map[string]int{}},
		runner:    &fakeRunner{result: sandbox.Result{Success: true}},
		verifier:  &aliasVerifier{real: integrity.NewVerifier(fs), digests: map[string]string{}},
		journal:   &fakeJournal{},
	}
	require.NoError(t, os.MkdirAll(e.storeRoot, 0755))
	e.store = store.New(fs, e.storeRoot, "", &logger)

	base := []Option{
		WithFs(fs),
		WithVerifier(e.verifier),
		WithTempDir(e.tempDir),
		WithJournal(e.journal),
	}
	e.inst = New(e.store, e.fetcher, e.runner, &logger, append(base, opts...)...)
	return e
}

// publish serves a package archive at url and registers its checksum alias
func (e *env) publish(url string, m core.Manifest, extra archivetest.Files) []byte {
	e.t.Helper()
	data := packageArchive(e.t, m, "pkg/", extra)
	e.serve(url, m.Checksum, data)
	return data
}

func (e *env) serve(url, checksum string, data []byte) {
	sum := sha256.Sum256(data)
	e.fetcher.data[url] = data
	e.verifier.digests[checksum] = hex.EncodeToString(sum[:])
}

func packageArchive(t *testing.T, m core.Manifest, prefix string, extra archivetest.Files) []byte {
	t.Helper()
	body, err := json.Marshal(m)
	require.NoError(t, err)

	files := archivetest.Files{
		prefix + core.ManifestFileName: string(body),
		prefix + "lib/data.txt":        payload,
	}
	for name, content := range extra {
		files[prefix+name] = content
	}
	return archivetest.Tar(t, files)
}

func corrupt(t *testing.T, data []byte) []byte {
	t.Helper()
	idx := bytes.Index(data, []byte(payload))
	require.GreaterOrEqual(t, idx, 0)
	out := bytes.Clone(data)
	out[idx] ^= 0x01
	return out
}

func (e *env) versionDir(name, ver string) string {
	return filepath.Join(e.storeRoot, name, ver)
}

func (e *env) tempEntries() []os.DirEntry {
	entries, err := os.ReadDir(e.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(e.t, err)
	return entries
}

func fooManifest(ver string) core.Manifest {
	return core.Manifest{
		Name:        "foo",
		Version:     ver,
		Checksum:    "f00" + hex.EncodeToString([]byte(ver)),
		Description: "demo package",
	}
}
