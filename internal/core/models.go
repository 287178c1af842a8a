package core

import "time"

// ManifestFileName is the metadata file shipped at the root of every package
const ManifestFileName = "qvoid_package.json"

// Manifest describes a package release
type Manifest struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Checksum      string   `json:"checksum"`
	SourceURL     string   `json:"source_url,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	InstallScript string   `json:"install_script,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// PackageRecord is the materialized state of one installed (name, version) pair.
// Records are built by scanning the store and must not be cached across refreshes.
type PackageRecord struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Path        string `json:"path"`
	SourceURL   string `json:"source_url,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Description string `json:"description,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// Index maps package name to version to record
type Index map[string]map[string]PackageRecord

// Has reports whether name (and version, if non-empty) is present
func (i Index) Has(name, version string) bool {
	versions, ok := i[name]
	if !ok || len(versions) == 0 {
		return false
	}
	if version == "" {
		return true
	}
	_, ok = versions[version]
	return ok
}

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneral       = 1
	ExitInvalidArgs   = 2
	ExitInstallFailed = 3
	ExitRemoveFailed  = 4
	ExitDatabase      = 5
	ExitPermission    = 6
	ExitNetwork       = 7
	ExitInterrupted   = 130
)

// Event is one entry of the history journal
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	SourceURL string    `json:"source_url,omitempty"`
	Outcome   string    `json:"outcome"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal actions
const (
	ActionInstall    = "install"
	ActionRemove     = "remove"
	ActionUpdate     = "update"
	ActionSelfUpdate = "self-update"
)

// Journal outcomes
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)
