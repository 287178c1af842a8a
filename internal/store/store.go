// Package store is the on-disk registry of installed packages.
//
// Layout: <root>/<name>/<version>/<manifest-file>. The directory tree is the
// only source of truth; every query rescans it.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/manifest"
	"github.com/quantmind-br/qpm/internal/security"
	"github.com/quantmind-br/qpm/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// OriginFile records, inside each version directory, the URL it was installed from
const OriginFile = ".qpm_origin"

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrVersionNotFound = errors.New("version not found")
)

// Warning describes a directory skipped during a scan
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Reason
}

// PackageStore scans and mutates the package tree. It holds no cached state.
type PackageStore struct {
	fs           afero.Fs
	root         string
	manifestFile string
	logger       *zerolog.Logger
}

// New creates a PackageStore rooted at root
func New(fs afero.Fs, root, manifestFile string, logger *zerolog.Logger) *PackageStore {
	if manifestFile == "" {
		manifestFile = core.ManifestFileName
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PackageStore{fs: fs, root: root, manifestFile: manifestFile, logger: logger}
}

// Root returns the store root directory
func (s *PackageStore) Root() string { return s.root }

// ManifestFile returns the manifest file name looked up in each version directory
func (s *PackageStore) ManifestFile() string { return s.manifestFile }

// PackageDir returns <root>/<name>
func (s *PackageStore) PackageDir(name string) string {
	return filepath.Join(s.root, name)
}

// VersionDir returns <root>/<name>/<version>
func (s *PackageStore) VersionDir(name, ver string) string {
	return filepath.Join(s.root, name, ver)
}

// Refresh rebuilds the index from disk. Skipped directories are logged and
// returned as warnings; a missing root yields an empty index.
func (s *PackageStore) Refresh() (core.Index, []Warning) {
	index := core.Index{}
	var warnings []Warning

	warn := func(path, reason string) {
		warnings = append(warnings, Warning{Path: path, Reason: reason})
		s.logger.Warn().Str("path", path).Msg(reason)
	}

	names, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if fsops.Exists(s.fs, s.root) {
			warn(s.root, fmt.Sprintf("cannot read store: %v", err))
		}
		return index, warnings
	}

	for _, nameEntry := range names {
		if !nameEntry.IsDir() || hidden(nameEntry.Name()) {
			continue
		}
		name := nameEntry.Name()
		baseDir := filepath.Join(s.root, name)

		versions, err := afero.ReadDir(s.fs, baseDir)
		if err != nil {
			warn(baseDir, fmt.Sprintf("cannot read package directory: %v", err))
			continue
		}

		for _, verEntry := range versions {
			if !verEntry.IsDir() || hidden(verEntry.Name()) {
				continue
			}
			ver := verEntry.Name()
			dir := filepath.Join(baseDir, ver)

			rec, reason := s.readRecord(dir, name, ver)
			if reason != "" {
				warn(dir, reason)
				continue
			}
			if index[name] == nil {
				index[name] = map[string]core.PackageRecord{}
			}
			index[name][ver] = rec
		}
	}

	return index, warnings
}

func (s *PackageStore) readRecord(dir, name, ver string) (core.PackageRecord, string) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, s.manifestFile))
	if err != nil {
		return core.PackageRecord{}, "missing or unreadable manifest"
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return core.PackageRecord{}, "corrupt manifest"
	}
	if m.Name != name || m.Version != ver {
		return core.PackageRecord{}, fmt.Sprintf("manifest declares %s@%s", m.Name, m.Version)
	}

	path := dir
	if abs, err := filepath.Abs(dir); err == nil {
		path = abs
	}
	rec := core.PackageRecord{
		Name:        m.Name,
		Version:     m.Version,
		Path:        path,
		SourceURL:   m.SourceURL,
		Checksum:    m.Checksum,
		Description: m.Description,
	}
	if origin, err := afero.ReadFile(s.fs, filepath.Join(dir, OriginFile)); err == nil {
		rec.Origin = strings.TrimSpace(string(origin))
	}
	return rec, ""
}

// WriteOrigin records the install URL of name@ver
func (s *PackageStore) WriteOrigin(name, ver, url string) error {
	path := filepath.Join(s.VersionDir(name, ver), OriginFile)
	if err := afero.WriteFile(s.fs, path, []byte(url+"\n"), 0644); err != nil {
		return fmt.Errorf("write origin: %w", err)
	}
	return nil
}

// FindByOrigin returns the installed record that was installed from url
func (s *PackageStore) FindByOrigin(url string) (core.PackageRecord, bool) {
	if url == "" {
		return core.PackageRecord{}, false
	}
	for _, versions := range s.All() {
		for _, rec := range versions {
			if rec.Origin == url {
				return rec, true
			}
		}
	}
	return core.PackageRecord{}, false
}

// All returns a fresh index of every installed package
func (s *PackageStore) All() core.Index {
	index, _ := s.Refresh()
	return index
}

// IsInstalled reports whether name is installed; an empty ver matches any version
func (s *PackageStore) IsInstalled(name, ver string) bool {
	return s.All().Has(name, ver)
}

// RecordsFor returns the installed versions of name, or nil
func (s *PackageStore) RecordsFor(name string) map[string]core.PackageRecord {
	return s.All()[name]
}

// Latest returns the record with the highest version of name
func (s *PackageStore) Latest(name string) (core.PackageRecord, bool) {
	return LatestOf(s.RecordsFor(name))
}

// LatestOf picks the highest version out of a set of records
func LatestOf(records map[string]core.PackageRecord) (core.PackageRecord, bool) {
	if len(records) == 0 {
		return core.PackageRecord{}, false
	}
	versions := make([]string, 0, len(records))
	for v := range records {
		versions = append(versions, v)
	}
	return records[version.Max(versions)], true
}

// Versions lists the version directories under <root>/<name>, lowest first.
// Unlike the index it does not require a valid manifest.
func (s *PackageStore) Versions(name string) ([]string, error) {
	if err := security.ValidatePackageName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackageNotFound, err)
	}
	base := s.PackageDir(name)
	entries, err := afero.ReadDir(s.fs, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: no installed versions: %w", name, ErrPackageNotFound)
	}
	version.Sort(versions)
	return versions, nil
}

// Remove deletes the given versions of name. With no versions every version
// is removed. The package directory is deleted once it is empty.
func (s *PackageStore) Remove(name string, versions ...string) error {
	installed, err := s.Versions(name)
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		versions = installed
	}
	for _, v := range versions {
		if !slices.Contains(installed, v) {
			return fmt.Errorf("%s@%s (available: %s): %w", name, v, strings.Join(installed, ", "), ErrVersionNotFound)
		}
	}

	var errs []error
	for _, v := range versions {
		dir := s.VersionDir(name, v)
		if err := s.fs.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
			continue
		}
		s.logger.Debug().Str("name", name).Str("version", v).Msg("removed version directory")
	}
	if len(errs) > 0 {
		return core.NewError(core.KindFileSystem, name, errors.Join(errs...))
	}

	return s.PruneBase(name)
}

// PruneBase removes <root>/<name> if it holds no entries
func (s *PackageStore) PruneBase(name string) error {
	base := s.PackageDir(name)
	empty, err := fsops.IsEmptyDir(s.fs, base)
	if err != nil || !empty {
		return nil
	}
	if err := s.fs.Remove(base); err != nil {
		return core.Errorf(core.KindFileSystem, name, "remove empty package directory: %w", err)
	}
	s.logger.Debug().Str("name", name).Msg("removed empty package directory")
	return nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
