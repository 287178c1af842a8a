package cmd

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
	"time"

	"github.com/fatih/color"
	"github.com/quantmind-br/qpm/internal/archive/archivetest"
	"github.com/quantmind-br/qpm/internal/config"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/helpers"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/paths"
	"github.com/quantmind-br/qpm/internal/sandbox"
	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const selfManifestURL = "https://example.test/qvoid_package_qpm.json"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return data, nil
}

type fakeRunner struct{}

func (fakeRunner) Run(context.Context, string, string) (sandbox.Result, error) {
	return sandbox.Result{Success: true}, nil
}

// aliasVerifier maps placeholder manifest checksums to the digests of the
// served archives, since an archive cannot contain its own digest
type aliasVerifier struct {
	real    *integrity.Verifier
	digests map[string]string
}

func (v *aliasVerifier) VerifyFile(path, expected string, algo integrity.Algorithm) error {
	if actual, ok := v.digests[expected]; ok {
		expected = actual
	}
	return v.real.VerifyFile(path, expected, algo)
}

type fakeLauncher struct {
	plans []*selfupdate.Plan
}

func (l *fakeLauncher) Launch(_ context.Context, plan *selfupdate.Plan) error {
	l.plans = append(l.plans, plan)
	return nil
}

type fixture struct {
	t        *testing.T
	root     string
	deps     *Deps
	fetcher  *fakeFetcher
	verifier *aliasVerifier
	prompter *ui.ScriptedPrompter
	launcher *fakeLauncher
	exited   []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "qpm")
	exe := filepath.Join(root, "qpm")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))

	cfg := &config.Config{
		Paths:   config.PathsConfig{TempDir: filepath.Join(base, "tmp")},
		Install: config.InstallConfig{ManifestFile: core.ManifestFileName, ChecksumAlgorithm: "sha256"},
		SelfUpdate: config.SelfUpdateConfig{
			ManifestURL:    selfManifestURL,
			BootstrapDelay: time.Second,
			ReadyTimeout:   time.Minute,
		},
	}

	fs := afero.NewOsFs()
	logger := zerolog.Nop()
	f := &fixture{
		t:        t,
		root:     root,
		fetcher:  &fakeFetcher{data: map[string][]byte{}, calls: map[string]int{}},
		verifier: &aliasVerifier{real: integrity.NewVerifier(fs), digests: map[string]string{}},
		prompter: &ui.ScriptedPrompter{},
		launcher: &fakeLauncher{},
	}
	f.deps = &Deps{
		Config:   cfg,
		Paths:    paths.NewResolverWithRoot(cfg, root, exe),
		Log:      &logger,
		Version:  "1.0.0",
		Fs:       fs,
		Fetcher:  f.fetcher,
		Runner:   fakeRunner{},
		Verifier: f.verifier,
		Commands: &helpers.MockCommandRunner{CommandExistsFunc: func(string) bool { return true }},
		Launcher: f.launcher,
		Prompter: f.prompter,
		Exit:     func(code int) { f.exited = append(f.exited, code) },
	}
	return f
}

func (f *fixture) run(args ...string) (string, string, error) {
	f.t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd(f.deps)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func manifestFor(name, ver string) core.Manifest {
	return core.Manifest{
		Name:        name,
		Version:     ver,
		Checksum:    "c0de" + hex.EncodeToString([]byte(name+ver)),
		SourceURL:   "https://example.test/" + name + ".tar",
		Description: name + " package",
	}
}

// publish serves a package archive at url
func (f *fixture) publish(url string, m core.Manifest) {
	f.t.Helper()
	body, err := json.Marshal(m)
	require.NoError(f.t, err)
	data := archivetest.Tar(f.t, archivetest.Files{
		m.Name + "/" + core.ManifestFileName: string(body),
		m.Name + "/bin/tool":                 "tool " + m.Version,
	})
	sum := sha256.Sum256(data)
	f.fetcher.data[url] = data
	f.verifier.digests[m.Checksum] = hex.EncodeToString(sum[:])
}

// installDirect materializes a package in the store without the installer
func (f *fixture) installDirect(m core.Manifest) {
	f.t.Helper()
	dir := filepath.Join(f.deps.Paths.StoreDir(), m.Name, m.Version)
	require.NoError(f.t, os.MkdirAll(dir, 0755))
	body, err := json.Marshal(m)
	require.NoError(f.t, err)
	require.NoError(f.t, os.WriteFile(filepath.Join(dir, core.ManifestFileName), body, 0644))
}

func (f *fixture) versionDir(name, ver string) string {
	return filepath.Join(f.deps.Paths.StoreDir(), name, ver)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
