package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// BootstrapCommand is the hidden subcommand that runs the bootstrap
const BootstrapCommand = "__bootstrap"

// ErrNotReady is returned when the parent never signals readiness
var ErrNotReady = errors.New("parent process did not signal readiness")

var pollInterval = 100 * time.Millisecond

// BootstrapArgs is everything the detached bootstrap needs to replace the
// installation
type BootstrapArgs struct {
	Old       string
	New       string
	Backup    string
	WorkDir   string
	ReadyFile string
	Delay     time.Duration
	Timeout   time.Duration
	Keep      []string
	// ParentPID, when non-zero, is also waited on after readiness
	ParentPID int
}

// Plan is a prepared bootstrap launch
type Plan struct {
	Bootstrap string
	LogFile   string
	Args      BootstrapArgs
}

// Argv renders the bootstrap command line, subcommand included
func (a BootstrapArgs) Argv() []string {
	argv := []string{
		BootstrapCommand,
		"--old", a.Old,
		"--new", a.New,
		"--backup", a.Backup,
		"--work-dir", a.WorkDir,
		"--ready-file", a.ReadyFile,
		"--delay", a.Delay.String(),
		"--timeout", a.Timeout.String(),
	}
	if len(a.Keep) > 0 {
		argv = append(argv, "--keep", strings.Join(a.Keep, ","))
	}
	if a.ParentPID > 0 {
		argv = append(argv, "--parent-pid", strconv.Itoa(a.ParentPID))
	}
	return argv
}

// Validate checks that the arguments describe a safe replacement
func (a BootstrapArgs) Validate() error {
	for flag, v := range map[string]string{"old": a.Old, "new": a.New, "backup": a.Backup, "work-dir": a.WorkDir} {
		if v == "" {
			return fmt.Errorf("bootstrap: --%s is required", flag)
		}
		if !filepath.IsAbs(v) {
			return fmt.Errorf("bootstrap: --%s must be absolute, got %q", flag, v)
		}
	}
	old := filepath.Clean(a.Old)
	if old == "/" {
		return fmt.Errorf("bootstrap: refusing to replace %q", a.Old)
	}
	// RunBootstrap deletes Old before copying New into place
	for _, p := range []struct{ flag, path string }{
		{"new", a.New},
		{"backup", a.Backup},
		{"work-dir", a.WorkDir},
	} {
		inside, err := security.IsPathWithinDirectory(filepath.Clean(p.path), old)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		if inside {
			return fmt.Errorf("bootstrap: --%s %q lies inside the install root %q", p.flag, p.path, a.Old)
		}
		if p.flag == "work-dir" {
			continue
		}
		if contains, _ := security.IsPathWithinDirectory(old, filepath.Clean(p.path)); contains {
			return fmt.Errorf("bootstrap: install root %q lies inside --%s %q", a.Old, p.flag, p.path)
		}
	}
	return nil
}

// RunBootstrap waits for the parent, backs up the installation to
// args.Backup and copies args.New in its place. Entries named in args.Keep
// are carried over from the backup when the new release lacks them. The
// work directory is removed only on success; on failure it and the backup
// are left for inspection.
func RunBootstrap(ctx context.Context, fs afero.Fs, args BootstrapArgs, logger *zerolog.Logger) error {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := args.Validate(); err != nil {
		return err
	}

	if err := waitReady(ctx, fs, args); err != nil {
		return err
	}
	logger.Info().Str("old", args.Old).Str("new", args.New).Msg("parent exited, replacing installation")

	if args.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(args.Delay):
		}
	}

	if fsops.Exists(fs, args.Old) {
		if err := fsops.CopyDir(fs, args.Old, args.Backup); err != nil {
			return fmt.Errorf("back up %s: %w", args.Old, err)
		}
		logger.Info().Str("backup", args.Backup).Msg("installation backed up")
		if err := fs.RemoveAll(args.Old); err != nil {
			return fmt.Errorf("remove old installation: %w", err)
		}
	}

	if err := fsops.CopyDir(fs, args.New, args.Old); err != nil {
		return fmt.Errorf("install new release: %w", err)
	}

	for _, name := range args.Keep {
		if err := restore(fs, args, name); err != nil {
			return err
		}
	}

	if err := fs.RemoveAll(args.WorkDir); err != nil {
		logger.Warn().Err(err).Str("work_dir", args.WorkDir).Msg("failed to remove work directory")
	}
	logger.Info().Str("install_root", args.Old).Msg("self-update complete")
	return nil
}

func restore(fs afero.Fs, args BootstrapArgs, name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("bootstrap: invalid keep entry %q", name)
	}
	src := filepath.Join(args.Backup, name)
	dst := filepath.Join(args.Old, name)
	if !fsops.Exists(fs, src) || fsops.Exists(fs, dst) {
		return nil
	}
	var err error
	if fsops.IsDir(fs, src) {
		err = fsops.CopyDir(fs, src, dst)
	} else {
		err = fsops.CopyFile(fs, src, dst)
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	return nil
}

func waitReady(ctx context.Context, fs afero.Fs, args BootstrapArgs) error {
	timeout := args.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ready := args.ReadyFile == "" || fsops.Exists(fs, args.ReadyFile)
		if ready && (args.ParentPID <= 0 || !processAlive(args.ParentPID)) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w within %s", ErrNotReady, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
