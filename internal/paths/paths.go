package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantmind-br/qpm/internal/config"
)

// Layout names relative to the install root
const (
	StoreDirName = "packages"
	DBFileName   = "qpm.db"
	LogDirName   = "logs"
	LogFileName  = "qpm.log"
)

// test seams
var (
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// Resolver centralizes qpm's on-disk layout. Everything lives under the
// install root, the directory holding the resolved executable, unless the
// configuration overrides a path.
type Resolver struct {
	installRoot string
	executable  string
	cfg         *config.Config
}

// NewResolver resolves the running executable and derives the install root
// from it (or from cfg.Paths.InstallRoot when set)
func NewResolver(cfg *config.Config) (*Resolver, error) {
	exe, err := Executable()
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(exe)
	if cfg != nil && cfg.Paths.InstallRoot != "" {
		root = cfg.Paths.InstallRoot
	}
	return NewResolverWithRoot(cfg, root, exe), nil
}

// NewResolverWithRoot creates a Resolver with an explicit install root (useful for tests)
func NewResolverWithRoot(cfg *config.Config, installRoot, executable string) *Resolver {
	if abs, err := filepath.Abs(installRoot); err == nil {
		installRoot = abs
	}
	return &Resolver{
		installRoot: installRoot,
		executable:  executable,
		cfg:         cfg,
	}
}

// Executable returns the symlink-resolved path of the running binary
func Executable() (string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	resolved, err := evalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable %s: %w", exe, err)
	}
	return resolved, nil
}

// InstallRoot returns the directory replaced by self-update
func (r *Resolver) InstallRoot() string {
	return r.installRoot
}

// ExecutablePath returns the resolved executable
func (r *Resolver) ExecutablePath() string {
	return r.executable
}

// StoreDir returns the package store root
func (r *Resolver) StoreDir() string {
	return r.pick(r.paths().StoreDir, StoreDirName)
}

// DBFile returns the history journal path
func (r *Resolver) DBFile() string {
	return r.pick(r.paths().DBFile, DBFileName)
}

// LogFile returns the rotating log file path
func (r *Resolver) LogFile() string {
	return r.pick(r.paths().LogFile, filepath.Join(LogDirName, LogFileName))
}

// TempDir returns the parent for work directories; empty means the OS default
func (r *Resolver) TempDir() string {
	return r.paths().TempDir
}

func (r *Resolver) paths() config.PathsConfig {
	if r.cfg == nil {
		return config.PathsConfig{}
	}
	return r.cfg.Paths
}

func (r *Resolver) pick(override, rel string) string {
	if override != "" {
		return override
	}
	return filepath.Join(r.installRoot, rel)
}
