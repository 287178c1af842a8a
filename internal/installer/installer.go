// Package installer implements the package install pipeline:
// fetch, extract, locate and validate the manifest, verify the archive
// checksum, check dependencies, commit into the store and run the optional
// install script.
package installer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quantmind-br/qpm/internal/archive"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/lock"
	"github.com/quantmind-br/qpm/internal/manifest"
	"github.com/quantmind-br/qpm/internal/sandbox"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/quantmind-br/qpm/internal/transaction"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Phase is a state of the install pipeline
type Phase string

const (
	PhaseFetching             Phase = "fetching"
	PhaseExtracting           Phase = "extracting"
	PhaseLocatingManifest     Phase = "locating-manifest"
	PhaseValidatingManifest   Phase = "validating-manifest"
	PhaseAlreadyInstalled     Phase = "already-installed"
	PhaseVerifyingChecksum    Phase = "verifying-checksum"
	PhaseCheckingDependencies Phase = "checking-dependencies"
	PhaseStagingCommit        Phase = "staging-commit"
	PhaseRunningInstallScript Phase = "running-install-script"
	PhaseDone                 Phase = "done"
)

// File names inside the private work directory
const (
	archiveFileName = "package.archive"
	extractDirName  = "extracted"
)

// Skip reasons for no-op results
const (
	ReasonAlreadyInstalled = "already installed"
	ReasonInFlight         = "install already in progress"
)

// Result describes a finished install attempt. On failure Phase is the
// phase in which the error occurred.
type Result struct {
	URL      string
	Phase    Phase
	Manifest *core.Manifest
	Path     string
	NoOp     bool
	Reason   string
	Script   *sandbox.Result
}

// Verifier checks a file against an expected digest
type Verifier interface {
	VerifyFile(path, expected string, algo integrity.Algorithm) error
}

// Journal receives one event per install attempt
type Journal interface {
	Record(ctx context.Context, ev core.Event) error
}

type (
	// Installer runs the install pipeline against a PackageStore
	Installer struct {
		fs        afero.Fs
		store     *store.PackageStore
		fetcher   fetch.Fetcher
		unpacker  archive.Unpacker
		verifier  Verifier
		runner    sandbox.Runner
		journal   Journal
		algorithm integrity.Algorithm
		tempDir   string
		refetch   bool
		logger    *zerolog.Logger
	}

	// Option configures an Installer
	Option func(*Installer)
)

// WithFs overrides the filesystem (default: the OS filesystem)
func WithFs(fs afero.Fs) Option {
	return func(i *Installer) { i.fs = fs }
}

// WithVerifier overrides the checksum verifier
func WithVerifier(v Verifier) Option {
	return func(i *Installer) { i.verifier = v }
}

// WithJournal records every outcome to j
func WithJournal(j Journal) Option {
	return func(i *Installer) { i.journal = j }
}

// WithAlgorithm sets the checksum algorithm (default sha256)
func WithAlgorithm(a integrity.Algorithm) Option {
	return func(i *Installer) { i.algorithm = a }
}

// WithTempDir sets the parent of the private work directories
func WithTempDir(dir string) Option {
	return func(i *Installer) { i.tempDir = dir }
}

// WithRefetch disables the shortcut that skips fetching a URL an installed
// package was installed from. Needed when a URL serves changing releases.
func WithRefetch() Option {
	return func(i *Installer) { i.refetch = true }
}

// WithUnpacker overrides the archive unpacker
func WithUnpacker(u archive.Unpacker) Option {
	return func(i *Installer) { i.unpacker = u }
}

// New creates an Installer
func New(st *store.PackageStore, fetcher fetch.Fetcher, runner sandbox.Runner, logger *zerolog.Logger, opts ...Option) *Installer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	i := &Installer{
		fs:        afero.NewOsFs(),
		store:     st,
		fetcher:   fetcher,
		runner:    runner,
		algorithm: integrity.DefaultAlgorithm,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.unpacker == nil {
		i.unpacker = archive.NewExtractor(i.fs, logger)
	}
	if i.verifier == nil {
		i.verifier = integrity.NewVerifier(i.fs)
	}
	return i
}

// Install installs the package behind url with an empty in-flight set
func (i *Installer) Install(ctx context.Context, url string) (*Result, error) {
	return i.InstallWithin(ctx, url, InFlight{})
}

// InstallWithin installs the package behind url. Packages whose name is in
// inflight succeed immediately without verification.
func (i *Installer) InstallWithin(ctx context.Context, url string, inflight InFlight) (*Result, error) {
	res := &Result{URL: url}
	log := i.logger.With().Str("url", fetch.Redact(url)).Logger()

	workDir, err := fsops.CreateTempDir(i.fs, i.tempDir, "qpm_install_")
	if err != nil {
		err = core.NewError(core.KindFileSystem, "", err)
		i.record(ctx, res, err)
		return res, err
	}
	defer func() {
		if rmErr := i.fs.RemoveAll(workDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("work_dir", workDir).Msg("failed to remove work directory")
		}
	}()

	tx := transaction.NewManager(&log)
	err = i.run(ctx, &log, url, inflight, workDir, tx, res)
	if err != nil {
		log.Error().
			Err(err).
			Str("phase", string(res.Phase)).
			Str("kind", string(core.KindOf(err))).
			Msg("install failed")
		i.record(ctx, res, err)
		return res, err
	}

	tx.Commit()
	i.record(ctx, res, nil)
	return res, nil
}

// run executes the pipeline. Undo steps are only registered while the
// package lock is held, and on failure they are replayed before it is released.
func (i *Installer) run(ctx context.Context, log *zerolog.Logger, url string, inflight InFlight, workDir string, tx *transaction.Manager, res *Result) (err error) {
	enter := func(p Phase) {
		res.Phase = p
		log.Debug().Str("phase", string(p)).Msg("install phase")
	}

	if !i.refetch {
		if rec, ok := i.store.FindByOrigin(url); ok {
			res.Manifest = recordManifest(rec)
			res.NoOp, res.Reason = true, ReasonAlreadyInstalled
			res.Path = rec.Path
			enter(PhaseAlreadyInstalled)
			return nil
		}
	}

	enter(PhaseFetching)
	data, err := i.fetcher.Fetch(ctx, url)
	if err != nil {
		return core.NewError(core.KindFetch, "", err)
	}
	archivePath := filepath.Join(workDir, archiveFileName)
	if err := afero.WriteFile(i.fs, archivePath, data, 0600); err != nil {
		return core.Errorf(core.KindFileSystem, "", "write archive: %w", err)
	}

	enter(PhaseExtracting)
	extractDir := filepath.Join(workDir, extractDirName)
	if err := i.unpacker.Unpack(archivePath, extractDir); err != nil {
		return core.NewError(core.KindArchive, "", err)
	}

	enter(PhaseLocatingManifest)
	manifestFile := i.store.ManifestFile()
	root, err := archive.PackageRoot(i.fs, extractDir, manifestFile)
	if err != nil {
		return core.NewError(core.KindArchive, "", err)
	}
	if !fsops.Exists(i.fs, filepath.Join(root, manifestFile)) {
		return core.Errorf(core.KindManifestNotFound, "", "%s not found in package", manifestFile)
	}

	enter(PhaseValidatingManifest)
	m, err := manifest.Load(i.fs, root, manifestFile)
	if err != nil {
		return err
	}
	res.Manifest = m
	log.Info().Str("name", m.Name).Str("version", m.Version).Msg("manifest loaded")

	if inflight.Has(m.Name) {
		enter(PhaseAlreadyInstalled)
		res.NoOp, res.Reason = true, ReasonInFlight
		return nil
	}
	if i.alreadyInstalled(m, res) {
		enter(PhaseAlreadyInstalled)
		return nil
	}

	lk, err := lock.Acquire(i.store.Root(), m.Name, m.Version)
	if err != nil {
		return core.NewError(core.KindFileSystem, m.Name, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("rollback incomplete")
			}
		}
		if relErr := lk.Release(); relErr != nil {
			log.Warn().Err(relErr).Msg("failed to release package lock")
		}
	}()

	// another process may have committed while we waited for the lock
	if i.alreadyInstalled(m, res) {
		enter(PhaseAlreadyInstalled)
		return nil
	}

	enter(PhaseVerifyingChecksum)
	if err := i.verifier.VerifyFile(archivePath, m.Checksum, i.algorithm); err != nil {
		if errors.Is(err, integrity.ErrChecksumMismatch) {
			return core.NewError(core.KindChecksumMismatch, m.Name, err)
		}
		return core.NewError(core.KindFileSystem, m.Name, err)
	}

	enter(PhaseCheckingDependencies)
	var missing []string
	for _, dep := range m.Dependencies {
		if !i.store.IsInstalled(dep, "") {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return core.Errorf(core.KindDependencyMissing, m.Name, "missing dependencies: %s", strings.Join(missing, ", "))
	}

	enter(PhaseStagingCommit)
	dest, err := i.commit(m, root, url, tx)
	if err != nil {
		return err
	}
	res.Path = dest

	if m.InstallScript != "" {
		scriptPath := filepath.Join(dest, filepath.FromSlash(m.InstallScript))
		if !fsops.Exists(i.fs, scriptPath) {
			log.Warn().Str("script", m.InstallScript).Msg("install script declared but not found")
		} else {
			enter(PhaseRunningInstallScript)
			if err := i.runScript(ctx, m, scriptPath, dest, res); err != nil {
				return err
			}
		}
	}

	enter(PhaseDone)
	log.Info().Str("name", m.Name).Str("version", m.Version).Str("path", dest).Msg("package installed")
	return nil
}

func (i *Installer) alreadyInstalled(m *core.Manifest, res *Result) bool {
	if !i.store.IsInstalled(m.Name, m.Version) {
		return false
	}
	res.NoOp, res.Reason = true, ReasonAlreadyInstalled
	res.Path = i.store.VersionDir(m.Name, m.Version)
	return true
}

func (i *Installer) commit(m *core.Manifest, root, url string, tx *transaction.Manager) (string, error) {
	dest := i.store.VersionDir(m.Name, m.Version)

	if fsops.Exists(i.fs, dest) {
		i.logger.Warn().Str("path", dest).Msg("replacing unregistered version directory")
		if err := i.fs.RemoveAll(dest); err != nil {
			return "", core.Errorf(core.KindFileSystem, m.Name, "remove existing destination: %w", err)
		}
	}

	if err := fsops.MoveDir(i.fs, root, dest); err != nil {
		// a failed cross-device copy may leave a partial tree
		if rmErr := i.fs.RemoveAll(dest); rmErr != nil {
			i.logger.Warn().Err(rmErr).Str("path", dest).Msg("failed to remove partial package directory")
		}
		if prErr := i.store.PruneBase(m.Name); prErr != nil {
			i.logger.Warn().Err(prErr).Str("name", m.Name).Msg("failed to prune package directory")
		}
		return "", core.NewError(core.KindFileSystem, m.Name, err)
	}

	tx.Add("remove committed package", func() error {
		if err := i.fs.RemoveAll(dest); err != nil {
			return err
		}
		return i.store.PruneBase(m.Name)
	})

	if err := i.store.WriteOrigin(m.Name, m.Version, url); err != nil {
		i.logger.Warn().Err(err).Msg("failed to record install origin")
	}
	return dest, nil
}

func recordManifest(rec core.PackageRecord) *core.Manifest {
	return &core.Manifest{
		Name:        rec.Name,
		Version:     rec.Version,
		Checksum:    rec.Checksum,
		SourceURL:   rec.SourceURL,
		Description: rec.Description,
	}
}

func (i *Installer) runScript(ctx context.Context, m *core.Manifest, scriptPath, dest string, res *Result) error {
	out, err := i.runner.Run(ctx, scriptPath, dest)
	res.Script = &out
	if err != nil {
		return core.NewError(core.KindScriptExecution, m.Name, err)
	}
	if !out.Success {
		stderr := strings.TrimSpace(out.Stderr)
		if stderr == "" {
			return core.Errorf(core.KindScriptExecution, m.Name, "%s exited with code %d", m.InstallScript, out.ExitCode)
		}
		return core.Errorf(core.KindScriptExecution, m.Name, "%s exited with code %d: %s", m.InstallScript, out.ExitCode, stderr)
	}
	return nil
}

func (i *Installer) record(ctx context.Context, res *Result, err error) {
	if i.journal == nil {
		return
	}

	ev := core.Event{
		ID:        newEventID(),
		Action:    core.ActionInstall,
		SourceURL: fetch.Redact(res.URL),
		Outcome:   core.OutcomeSuccess,
		Timestamp: time.Now().UTC(),
	}
	if res.Manifest != nil {
		ev.Name = res.Manifest.Name
		ev.Version = res.Manifest.Version
	}
	switch {
	case err != nil:
		ev.Outcome = core.OutcomeFailed
		ev.ErrorKind = string(core.KindOf(err))
		ev.Message = err.Error()
	case res.NoOp:
		ev.Outcome = core.OutcomeSkipped
		ev.Message = res.Reason
	}

	if jErr := i.journal.Record(ctx, ev); jErr != nil {
		i.logger.Warn().Err(jErr).Msg("failed to record install history")
	}
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
