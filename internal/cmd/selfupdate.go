package cmd

import (
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/spf13/cobra"
)

// NewSelfUpdateCmd creates the self-update command
func NewSelfUpdateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update qpm itself",
		Long: `Check the published qpm release and, when it is newer than this
installation, download and verify it, then hand off to a detached bootstrap
that replaces the installation once this process has exited.

The previous installation is kept as <install-root>_old_backup_<timestamp>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := deps.logger()
			out := printer(cmd)

			algo, err := deps.algorithm()
			if err != nil {
				out.Error("%v", err)
				return withExit(core.ExitGeneral, err)
			}

			sc := deps.Config.SelfUpdate
			u := selfupdate.New(selfupdate.Config{
				InstallRoot:     deps.Paths.InstallRoot(),
				Executable:      deps.Paths.ExecutablePath(),
				ManifestURL:     sc.ManifestURL,
				ManifestFile:    deps.Config.Install.ManifestFile,
				RequiredEntries: sc.RequiredEntries,
				TempDir:         deps.Paths.TempDir(),
				Algorithm:       algo,
				Delay:           sc.BootstrapDelay,
				ReadyTimeout:    sc.ReadyTimeout,
			}, deps.fetcher(cmd.ErrOrStderr()), deps.launcher(), log, selfupdate.WithFs(deps.fs()))

			out.Info("Checking for qpm updates")

			journal := deps.openJournal(ctx)
			outcome, err := u.Run(ctx)

			ev := core.Event{Action: core.ActionSelfUpdate, Name: "qpm", Version: outcome.Remote, Outcome: core.OutcomeSuccess}
			switch {
			case err != nil:
				ev.Outcome = core.OutcomeFailed
				ev.ErrorKind = string(core.KindOf(err))
				ev.Message = err.Error()
			case !outcome.Launched:
				ev.Outcome = core.OutcomeSkipped
				ev.Message = "up to date"
			default:
				ev.Message = outcome.Current + " -> " + outcome.Remote
			}
			recordEvent(ctx, journal, log, ev)
			closeJournal(journal, log)

			if err != nil {
				out.Error("self-update failed: %v", err)
				if core.KindOf(err) == core.KindFetch {
					return withExit(core.ExitNetwork, err)
				}
				return withExit(core.ExitGeneral, err)
			}

			if !outcome.Launched {
				out.Success("qpm %s is up to date (published: %s)", outcome.Current, outcome.Remote)
				return nil
			}

			if err := u.SignalReady(outcome.Plan); err != nil {
				out.Error("%v", err)
				return withExit(core.ExitGeneral, err)
			}
			out.Success("Updating qpm %s -> %s", outcome.Current, outcome.Remote)
			out.Info("Backup: %s", outcome.Plan.Args.Backup)
			out.Info("Bootstrap log: %s", outcome.Plan.LogFile)

			deps.exit(core.ExitSuccess)
			return nil
		},
	}

	return cmd
}
