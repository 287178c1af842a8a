package selfupdate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ProcessLauncher starts the bootstrap as a detached OS process whose output
// goes to the plan's log file
type ProcessLauncher struct{}

// Launch starts plan.Bootstrap and releases it. The child is not waited on.
func (ProcessLauncher) Launch(_ context.Context, plan *Plan) error {
	logFile, err := os.OpenFile(plan.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open bootstrap log: %w", err)
	}
	defer logFile.Close()

	args := plan.Args
	if args.ParentPID == 0 {
		args.ParentPID = os.Getpid()
		plan.Args.ParentPID = args.ParentPID
	}

	// the child must outlive the request context, so exec.Command is used
	cmd := exec.Command(plan.Bootstrap, args.Argv()...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = plan.Args.WorkDir
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", plan.Bootstrap, err)
	}
	return cmd.Process.Release()
}
