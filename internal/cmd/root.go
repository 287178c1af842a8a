package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(deps *Deps) *cobra.Command {
	var (
		timeout time.Duration
		cancel  context.CancelFunc
	)

	cmd := &cobra.Command{
		Use:   "qpm",
		Short: "Package installer and self-updater",
		Long: `qpm installs versioned packages from archive URLs into a local store,
verifies their checksums, detects newer releases and updates itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if timeout > 0 {
				var ctx context.Context
				ctx, cancel = context.WithTimeout(cmd.Context(), timeout)
				cmd.SetContext(ctx)
			}
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if cancel != nil {
				cancel()
			}
		},
	}

	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort the command after this duration (0 disables)")

	cmd.AddCommand(NewInstallCmd(deps))
	cmd.AddCommand(NewListCmd(deps))
	cmd.AddCommand(NewInfoCmd(deps))
	cmd.AddCommand(NewUpdateCmd(deps))
	cmd.AddCommand(NewRemoveCmd(deps))
	cmd.AddCommand(NewSelfUpdateCmd(deps))
	cmd.AddCommand(NewHistoryCmd(deps))
	cmd.AddCommand(NewDoctorCmd(deps))
	cmd.AddCommand(NewBootstrapCmd(deps))
	cmd.AddCommand(NewCompletionCmd(deps))
	cmd.AddCommand(NewVersionCmd(deps.Version))

	return cmd
}
