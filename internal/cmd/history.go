package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/db"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(deps *Deps) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		prune      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "Show install, update and remove history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := printer(cmd)

			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			journal, err := db.New(ctx, deps.Paths.DBFile())
			if err != nil {
				out.Error("failed to open history: %v", err)
				return withExit(core.ExitDatabase, fmt.Errorf("open database: %w", err))
			}
			defer closeJournal(journal, deps.logger())

			if cmd.Flags().Changed("prune") {
				if name != "" {
					return withExit(core.ExitInvalidArgs, fmt.Errorf("--prune does not take a package name"))
				}
				if prune < 0 {
					return withExit(core.ExitInvalidArgs, fmt.Errorf("--prune must not be negative"))
				}
				n, err := journal.Prune(ctx, time.Now().Add(-prune))
				if err != nil {
					out.Error("failed to prune history: %v", err)
					return withExit(core.ExitDatabase, err)
				}
				out.Success("Pruned %d event(s) older than %s", n, prune)
				return nil
			}

			events, err := journal.List(ctx, name, limit)
			if err != nil {
				out.Error("failed to read history: %v", err)
				return withExit(core.ExitDatabase, err)
			}

			if jsonOutput {
				if events == nil {
					events = []core.Event{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}

			if len(events) == 0 {
				out.Info("No history recorded")
				return nil
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of events (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete events older than this age (e.g. 720h) instead of listing")

	return cmd
}

func printEvents(w io.Writer, events []core.Event) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Time", "Action", "Package", "Outcome", "Details"}),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, ev := range events {
		pkg := ev.Name
		if ev.Version != "" {
			pkg += "@" + ev.Version
		}
		if pkg == "" {
			pkg = "-"
		}
		details := ev.Message
		if ev.ErrorKind != "" {
			details = ev.ErrorKind + ": " + details
		}
		if len(details) > 60 {
			details = details[:57] + "..."
		}
		table.Append(ev.Timestamp.Local().Format("2006-01-02 15:04"), ev.Action, pkg, ev.Outcome, details)
	}

	table.Render()
}
