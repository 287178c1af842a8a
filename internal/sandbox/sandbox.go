// Package sandbox runs package install scripts as child processes.
//
// Isolation is limited to a separate process with its own working
// directory and a bounded run time. There is no OS-level confinement.
package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/qpm/internal/helpers"
	"github.com/quantmind-br/qpm/internal/security"
	"github.com/rs/zerolog"
)

// Result is the outcome of one script run
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a script with workDir as its working directory.
// A script that runs but exits non-zero yields Success=false and a nil error;
// the error is reserved for scripts that could not be started.
type Runner interface {
	Run(ctx context.Context, scriptPath, workDir string) (Result, error)
}

// Interpreters maps script extensions to the program used to run them.
// Scripts with other extensions are executed directly.
var Interpreters = map[string]string{
	".py": "python3",
	".sh": "sh",
}

// ProcessRunner is the Runner backed by helpers.CommandRunner
type ProcessRunner struct {
	cmd     helpers.CommandRunner
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewProcessRunner creates a ProcessRunner. A zero timeout means no limit
// beyond the caller's context.
func NewProcessRunner(cmd helpers.CommandRunner, timeout time.Duration, logger *zerolog.Logger) *ProcessRunner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ProcessRunner{cmd: cmd, timeout: timeout, logger: logger}
}

// Command returns the program and arguments used to run scriptPath
func Command(scriptPath string) (string, []string) {
	ext := strings.ToLower(filepath.Ext(scriptPath))
	if interp, ok := Interpreters[ext]; ok {
		return interp, []string{scriptPath}
	}
	return scriptPath, nil
}

// Run implements Runner
func (r *ProcessRunner) Run(ctx context.Context, scriptPath, workDir string) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for _, arg := range []string{scriptPath, workDir} {
		if err := security.ValidateCommandArg(arg); err != nil {
			return Result{ExitCode: -1}, fmt.Errorf("script %q: %w", filepath.Base(scriptPath), err)
		}
	}

	name, args := Command(scriptPath)
	if _, ok := Interpreters[strings.ToLower(filepath.Ext(scriptPath))]; ok {
		if err := r.cmd.RequireCommand(name); err != nil {
			return Result{ExitCode: -1}, fmt.Errorf("interpreter for %s: %w", filepath.Base(scriptPath), err)
		}
	}

	r.logger.Debug().
		Str("script", scriptPath).
		Str("interpreter", name).
		Str("work_dir", workDir).
		Msg("running install script")

	stdout, stderr, err := r.cmd.RunCommandInDirWithOutput(ctx, workDir, name, args...)
	res := Result{
		Success:  err == nil,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: r.cmd.GetExitCode(err),
	}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("run %s: %w", filepath.Base(scriptPath), err)
	}
	if res.ExitCode < 0 {
		return res, fmt.Errorf("start %s: %w", filepath.Base(scriptPath), err)
	}
	r.logger.Debug().Int("exit_code", res.ExitCode).Str("stderr", stderr).Msg("install script failed")
	return res, nil
}
