// Package updater compares installed packages with the releases published at
// their source URLs.
package updater

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/quantmind-br/qpm/internal/archive"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/manifest"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/quantmind-br/qpm/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrPackageNotInstalled is returned when a named package has no installed version
var ErrPackageNotInstalled = errors.New("package is not installed")

// Status is the outcome of one update check
type Status string

const (
	StatusUpToDate        Status = "up-to-date"
	StatusUpdateAvailable Status = "update-available"
	StatusCheckFailed     Status = "check-failed"
)

// Reason explains a failed check
type Reason string

const (
	ReasonNoSourceURL       Reason = "no-source-url"
	ReasonFetchFailed       Reason = "fetch-failed"
	ReasonArchiveInvalid    Reason = "archive-invalid"
	ReasonManifestInvalid   Reason = "manifest-invalid"
	ReasonUnparsableVersion Reason = "unparsable-version"
)

// Report is the update status of one package
type Report struct {
	Name      string
	Installed string
	Remote    string
	SourceURL string
	Status    Status
	Reason    Reason
	Err       error
}

// Checker runs update checks. It never modifies the store.
type Checker struct {
	fs       afero.Fs
	store    *store.PackageStore
	fetcher  fetch.Fetcher
	unpacker archive.Unpacker
	tempDir  string
	logger   *zerolog.Logger
}

// NewChecker creates a Checker
func NewChecker(fs afero.Fs, st *store.PackageStore, fetcher fetch.Fetcher, unpacker archive.Unpacker, tempDir string, logger *zerolog.Logger) *Checker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Checker{
		fs:       fs,
		store:    st,
		fetcher:  fetcher,
		unpacker: unpacker,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Check reports on name, or on every installed package when name is empty.
// Only the highest installed version of each package is compared.
func (c *Checker) Check(ctx context.Context, name string) ([]Report, error) {
	if name != "" {
		rec, ok := c.store.Latest(name)
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrPackageNotInstalled)
		}
		return []Report{c.CheckRecord(ctx, rec)}, nil
	}

	index := c.store.All()
	names := make([]string, 0, len(index))
	for n := range index {
		names = append(names, n)
	}
	sort.Strings(names)

	reports := make([]Report, 0, len(names))
	for _, n := range names {
		rec, _ := store.LatestOf(index[n])
		reports = append(reports, c.CheckRecord(ctx, rec))
	}
	return reports, nil
}

// CheckRecord compares one installed record with its remote release
func (c *Checker) CheckRecord(ctx context.Context, rec core.PackageRecord) Report {
	rep := Report{Name: rec.Name, Installed: rec.Version, SourceURL: rec.SourceURL}
	log := c.logger.With().Str("name", rec.Name).Str("installed", rec.Version).Logger()

	if rec.SourceURL == "" {
		return failed(rep, ReasonNoSourceURL, errors.New("manifest has no source_url"))
	}

	remote, reason, err := c.remoteManifest(ctx, rec.SourceURL)
	if err != nil {
		log.Debug().Err(err).Str("reason", string(reason)).Msg("update check failed")
		return failed(rep, reason, err)
	}
	if remote.Name != rec.Name {
		return failed(rep, ReasonManifestInvalid, fmt.Errorf("remote package is %q", remote.Name))
	}
	rep.Remote = remote.Version

	newer, err := version.Newer(remote.Version, rec.Version)
	if err != nil {
		return failed(rep, ReasonUnparsableVersion, err)
	}
	if newer {
		rep.Status = StatusUpdateAvailable
		log.Info().Str("remote", remote.Version).Msg("update available")
	} else {
		rep.Status = StatusUpToDate
	}
	return rep
}

func (c *Checker) remoteManifest(ctx context.Context, url string) (*core.Manifest, Reason, error) {
	workDir, err := fsops.CreateTempDir(c.fs, c.tempDir, "qpm_update_")
	if err != nil {
		return nil, ReasonFetchFailed, err
	}
	defer c.fs.RemoveAll(workDir)

	data, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, ReasonFetchFailed, err
	}

	archivePath := filepath.Join(workDir, "latest.archive")
	if err := afero.WriteFile(c.fs, archivePath, data, 0600); err != nil {
		return nil, ReasonFetchFailed, fmt.Errorf("write archive: %w", err)
	}

	extractDir := filepath.Join(workDir, "extracted")
	if err := c.unpacker.Unpack(archivePath, extractDir); err != nil {
		return nil, ReasonArchiveInvalid, err
	}

	manifestFile := c.store.ManifestFile()
	root, err := archive.PackageRoot(c.fs, extractDir, manifestFile)
	if err != nil {
		return nil, ReasonArchiveInvalid, err
	}

	m, err := manifest.Load(c.fs, root, manifestFile)
	if err != nil {
		return nil, ReasonManifestInvalid, err
	}
	return m, "", nil
}

func failed(rep Report, reason Reason, err error) Report {
	rep.Status = StatusCheckFailed
	rep.Reason = reason
	rep.Err = err
	return rep
}
