package cmd

import (
	"time"

	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/spf13/cobra"
)

// NewBootstrapCmd creates the hidden command run by the detached
// self-update bootstrap
func NewBootstrapCmd(deps *Deps) *cobra.Command {
	var args selfupdate.BootstrapArgs

	cmd := &cobra.Command{
		Use:    selfupdate.BootstrapCommand,
		Short:  "Replace the qpm installation (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := deps.logger()
			log.Info().
				Str("old", args.Old).
				Str("new", args.New).
				Str("backup", args.Backup).
				Msg("bootstrap started")

			if err := selfupdate.RunBootstrap(cmd.Context(), deps.fs(), args, log); err != nil {
				log.Error().Err(err).Str("backup", args.Backup).Msg("bootstrap failed, restore manually from the backup")
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&args.Old, "old", "", "installation directory to replace")
	f.StringVar(&args.New, "new", "", "directory holding the new release")
	f.StringVar(&args.Backup, "backup", "", "backup directory for the current installation")
	f.StringVar(&args.WorkDir, "work-dir", "", "temporary directory removed on success")
	f.StringVar(&args.ReadyFile, "ready-file", "", "file the parent writes before exiting")
	f.DurationVar(&args.Delay, "delay", selfupdate.DefaultDelay, "settle delay after the parent is ready")
	f.DurationVar(&args.Timeout, "timeout", time.Minute, "maximum wait for the parent")
	f.StringSliceVar(&args.Keep, "keep", nil, "entries restored from the backup when the new release lacks them")
	f.IntVar(&args.ParentPID, "parent-pid", 0, "wait for this process to exit")

	return cmd
}
