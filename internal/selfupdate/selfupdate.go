package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/qpm/internal/archive"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/manifest"
	"github.com/quantmind-br/qpm/internal/security"
	"github.com/quantmind-br/qpm/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultManifestURL is where the qpm self-manifest is published
const DefaultManifestURL = "https://raw.githubusercontent.com/quantmind-br/qpm/main/qvoid_package_qpm.json"

const (
	// BootstrapName is the file name of the bootstrap copy inside the work directory
	BootstrapName = "qpm-bootstrap"
	// ReadyFileName is written by the parent right before it exits
	ReadyFileName = "parent.ready"
	// LogFileName receives the bootstrap's stdout and stderr
	LogFileName = "bootstrap.log"

	unknownVersion = "0.0.0"
	defaultName    = "qpm"
)

// Defaults applied by New to zero Config fields
var (
	DefaultDelay        = time.Second
	DefaultReadyTimeout = time.Minute
	DefaultKeep         = []string{"packages", "qpm.db", "logs"}
)

// Config describes the installation being updated
type Config struct {
	// InstallRoot is the directory replaced by the update
	InstallRoot string
	// Executable is the resolved path of the running binary
	Executable string
	// ManifestURL locates the remote self-manifest
	ManifestURL string
	// ManifestFile names the version file at the install root
	ManifestFile string
	// RequiredEntries must exist at the top of the new release.
	// Empty means the manifest file and the executable's base name.
	RequiredEntries []string
	// TempDir is the parent of the work directory
	TempDir   string
	Algorithm integrity.Algorithm
	// Delay is slept by the bootstrap after the parent signals readiness
	Delay time.Duration
	// ReadyTimeout bounds the bootstrap's wait for the readiness signal
	ReadyTimeout time.Duration
	// Keep lists install-root entries carried over from the backup when the
	// new release does not ship them
	Keep []string
}

// Outcome is the result of Run
type Outcome struct {
	Current string
	Remote  string
	// Launched is true when a bootstrap was started; the caller must then
	// call SignalReady and exit
	Launched bool
	Plan     *Plan
}

// Launcher starts the bootstrap detached from the current process
type Launcher interface {
	Launch(ctx context.Context, plan *Plan) error
}

type (
	// Updater runs the self-update check and hands off to the bootstrap
	Updater struct {
		cfg      Config
		fs       afero.Fs
		fetcher  fetch.Fetcher
		unpacker archive.Unpacker
		verifier *integrity.Verifier
		launcher Launcher
		now      func() time.Time
		logger   *zerolog.Logger
	}

	// Option configures an Updater
	Option func(*Updater)
)

// WithFs overrides the filesystem
func WithFs(fs afero.Fs) Option {
	return func(u *Updater) { u.fs = fs }
}

// WithClock overrides time.Now, which names the backup directory
func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// New creates an Updater
func New(cfg Config, fetcher fetch.Fetcher, launcher Launcher, logger *zerolog.Logger, opts ...Option) *Updater {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.ManifestURL == "" {
		cfg.ManifestURL = DefaultManifestURL
	}
	if cfg.ManifestFile == "" {
		cfg.ManifestFile = core.ManifestFileName
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = integrity.DefaultAlgorithm
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.Keep == nil {
		cfg.Keep = DefaultKeep
	}
	if len(cfg.RequiredEntries) == 0 {
		cfg.RequiredEntries = []string{cfg.ManifestFile, filepath.Base(cfg.Executable)}
	}

	u := &Updater{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		fetcher:  fetcher,
		launcher: launcher,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.unpacker = archive.NewExtractor(u.fs, logger)
	u.verifier = integrity.NewVerifier(u.fs)
	return u
}

// CurrentVersion reads the version of the running installation.
// A missing or unreadable manifest yields "0.0.0".
func (u *Updater) CurrentVersion() string {
	path := filepath.Join(u.cfg.InstallRoot, u.cfg.ManifestFile)
	data, err := afero.ReadFile(u.fs, path)
	if err != nil {
		u.logger.Warn().
			Err(err).
			Str("path", path).
			Str("install_root", u.cfg.InstallRoot).
			Msg("no installed manifest, assuming 0.0.0; an update replaces the whole install root")
		return unknownVersion
	}
	m, err := manifest.Decode(data)
	if err != nil || m.Version == "" {
		u.logger.Warn().Str("path", path).Msg("cannot read current version, assuming 0.0.0")
		return unknownVersion
	}
	return m.Version
}

// FetchManifest downloads and validates the remote self-manifest
func (u *Updater) FetchManifest(ctx context.Context) (*core.Manifest, error) {
	data, err := u.fetcher.Fetch(ctx, u.cfg.ManifestURL)
	if err != nil {
		return nil, core.NewError(core.KindFetch, defaultName, err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return nil, core.NewError(core.KindInvalidManifest, defaultName, err)
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"version", m.Version},
		{"source_url", m.SourceURL},
		{"checksum", m.Checksum},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, core.Errorf(core.KindInvalidManifest, defaultName, "remote manifest is missing %s", strings.Join(missing, ", "))
	}
	if err := security.ValidateVersion(m.Version); err != nil {
		return nil, core.NewError(core.KindInvalidManifest, defaultName, err)
	}
	if m.Name == "" {
		m.Name = defaultName
	}
	return m, nil
}

// Run checks for a newer release and, when one exists, prepares and launches
// the bootstrap. Nothing outside the work directory is touched, and the work
// directory is removed when any step fails.
func (u *Updater) Run(ctx context.Context) (*Outcome, error) {
	current := u.CurrentVersion()
	out := &Outcome{Current: current}

	remote, err := u.FetchManifest(ctx)
	if err != nil {
		return out, err
	}
	out.Remote = remote.Version

	newer, err := version.Newer(remote.Version, current)
	if err != nil {
		return out, core.NewError(core.KindInvalidManifest, defaultName, err)
	}
	if !newer {
		u.logger.Info().Str("current", current).Str("remote", remote.Version).Msg("qpm is up to date")
		return out, nil
	}

	u.logger.Info().Str("current", current).Str("remote", remote.Version).Msg("new qpm release available")

	workDir, err := fsops.CreateTempDir(u.fs, u.cfg.TempDir, "qpm_self_update_")
	if err != nil {
		return out, core.NewError(core.KindFileSystem, defaultName, err)
	}

	plan, err := u.prepare(ctx, remote, workDir)
	if err == nil {
		err = u.launcher.Launch(ctx, plan)
		if err != nil {
			err = core.Errorf(core.KindFileSystem, defaultName, "launch bootstrap: %w", err)
		}
	}
	if err != nil {
		if rmErr := u.fs.RemoveAll(workDir); rmErr != nil {
			u.logger.Warn().Err(rmErr).Str("work_dir", workDir).Msg("failed to remove work directory")
		}
		return out, err
	}

	out.Launched = true
	out.Plan = plan
	u.logger.Info().Str("work_dir", workDir).Str("backup", plan.Args.Backup).Msg("bootstrap launched")
	return out, nil
}

func (u *Updater) prepare(ctx context.Context, remote *core.Manifest, workDir string) (*Plan, error) {
	data, err := u.fetcher.Fetch(ctx, remote.SourceURL)
	if err != nil {
		return nil, core.NewError(core.KindFetch, defaultName, err)
	}

	archivePath := filepath.Join(workDir, fmt.Sprintf("%s-%s.archive", remote.Name, remote.Version))
	if err := afero.WriteFile(u.fs, archivePath, data, 0600); err != nil {
		return nil, core.Errorf(core.KindFileSystem, defaultName, "write archive: %w", err)
	}

	if err := u.verifier.VerifyFile(archivePath, remote.Checksum, u.cfg.Algorithm); err != nil {
		if errors.Is(err, integrity.ErrChecksumMismatch) {
			return nil, core.NewError(core.KindChecksumMismatch, defaultName, err)
		}
		return nil, core.NewError(core.KindFileSystem, defaultName, err)
	}

	extractDir := filepath.Join(workDir, "new_extracted")
	if err := u.unpacker.Unpack(archivePath, extractDir); err != nil {
		return nil, core.NewError(core.KindArchive, defaultName, err)
	}
	root, err := archive.PackageRoot(u.fs, extractDir, u.cfg.ManifestFile)
	if err != nil {
		return nil, core.NewError(core.KindArchive, defaultName, err)
	}
	for _, entry := range u.cfg.RequiredEntries {
		if !fsops.Exists(u.fs, filepath.Join(root, entry)) {
			return nil, core.Errorf(core.KindArchive, defaultName, "release is missing required entry %q", entry)
		}
	}

	bootstrap := filepath.Join(workDir, BootstrapName)
	if err := fsops.CopyFile(u.fs, u.cfg.Executable, bootstrap); err != nil {
		return nil, core.Errorf(core.KindFileSystem, defaultName, "copy bootstrap: %w", err)
	}
	if err := u.fs.Chmod(bootstrap, 0755); err != nil {
		return nil, core.Errorf(core.KindFileSystem, defaultName, "chmod bootstrap: %w", err)
	}

	plan := &Plan{
		Bootstrap: bootstrap,
		LogFile:   filepath.Join(workDir, LogFileName),
		Args: BootstrapArgs{
			Old:       u.cfg.InstallRoot,
			New:       root,
			Backup:    fmt.Sprintf("%s_old_backup_%d", filepath.Clean(u.cfg.InstallRoot), u.now().Unix()),
			WorkDir:   workDir,
			ReadyFile: filepath.Join(workDir, ReadyFileName),
			Delay:     u.cfg.Delay,
			Timeout:   u.cfg.ReadyTimeout,
			Keep:      u.cfg.Keep,
		},
	}
	if err := plan.Args.Validate(); err != nil {
		return nil, core.NewError(core.KindFileSystem, defaultName, err)
	}
	return plan, nil
}

// SignalReady writes the readiness file the bootstrap waits for. The caller
// must exit right after it returns.
func (u *Updater) SignalReady(plan *Plan) error {
	if err := afero.WriteFile(u.fs, plan.Args.ReadyFile, []byte("ready\n"), 0644); err != nil {
		return fmt.Errorf("write readiness file: %w", err)
	}
	return nil
}
