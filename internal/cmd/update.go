package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/qpm/internal/archive"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/installer"
	"github.com/quantmind-br/qpm/internal/updater"
	"github.com/spf13/cobra"
)

// NewUpdateCmd creates the update command
func NewUpdateCmd(deps *Deps) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Check installed packages for newer releases",
		Long: `Compare the highest installed version of each package (or of the named
package) with the release published at its source_url.

With --apply, packages that have an update are installed from their source_url.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := deps.logger()
			out := printer(cmd)

			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			st := deps.store()
			fetcher := deps.fetcher(nil)
			checker := updater.NewChecker(deps.fs(), st, fetcher, archive.NewExtractor(deps.fs(), log), deps.Paths.TempDir(), log)

			reports, err := checker.Check(ctx, name)
			if err != nil {
				out.Error("%v", err)
				return withExit(core.ExitGeneral, err)
			}
			if len(reports) == 0 {
				out.Info("No packages installed")
				return nil
			}

			printReports(cmd.OutOrStdout(), reports)

			var pending []updater.Report
			for _, rep := range reports {
				if rep.Status == updater.StatusUpdateAvailable {
					pending = append(pending, rep)
				}
			}
			if len(pending) == 0 {
				out.Success("Everything is up to date")
				return nil
			}
			if !apply {
				out.Info("%d update(s) available; run with --apply to install", len(pending))
				return nil
			}

			journal := deps.openJournal(ctx)
			defer closeJournal(journal, log)

			inst, err := deps.newInstaller(cmd, journal, installer.WithRefetch())
			if err != nil {
				out.Error("%v", err)
				return withExit(core.ExitGeneral, err)
			}

			var failures []error
			for i, rep := range pending {
				out.Step(i+1, len(pending), "%s %s -> %s", rep.Name, rep.Installed, rep.Remote)
				res, err := inst.Install(ctx, rep.SourceURL)
				ev := core.Event{
					Action:    core.ActionUpdate,
					Name:      rep.Name,
					Version:   rep.Remote,
					SourceURL: rep.SourceURL,
					Outcome:   core.OutcomeSuccess,
					Message:   fmt.Sprintf("%s -> %s", rep.Installed, rep.Remote),
				}
				if err != nil {
					ev.Outcome = core.OutcomeFailed
					ev.ErrorKind = string(core.KindOf(err))
					ev.Message = err.Error()
					recordEvent(ctx, journal, log, ev)
					reportInstallError(out, err)
					failures = append(failures, err)
					continue
				}
				recordEvent(ctx, journal, log, ev)
				reportInstall(out, res)
			}

			if len(failures) > 0 {
				return withExitf(installExitCode(failures), "%d of %d updates failed", len(failures), len(pending))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "install available updates")

	return cmd
}

func printReports(w io.Writer, reports []updater.Report) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Name", "Installed", "Remote", "Status"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, rep := range reports {
		remote := rep.Remote
		if remote == "" {
			remote = "-"
		}
		status := string(rep.Status)
		if rep.Status == updater.StatusCheckFailed {
			status = fmt.Sprintf("%s (%s)", rep.Status, rep.Reason)
		}
		table.Append(rep.Name, rep.Installed, remote, status)
	}

	table.Render()
}
