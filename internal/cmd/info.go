package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command
func NewInfoCmd(deps *Deps) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show package information",
		Long:  `Show every installed version of a package with its manifest details.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			out := printer(cmd)

			records := deps.store().RecordsFor(name)
			if len(records) == 0 {
				out.Error("package not installed: %s", name)
				return withExit(core.ExitGeneral, fmt.Errorf("%s: %w", name, store.ErrPackageNotFound))
			}

			index := core.Index{name: records}
			list := flatten(index)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			latest, _ := store.LatestOf(records)
			out.Header(name)
			for _, rec := range list {
				label := rec.Version
				if rec.Version == latest.Version {
					label += " (latest)"
				}
				out.KeyValue("Version", label)
				out.KeyValue("Path", rec.Path)
				if rec.Description != "" {
					out.KeyValue("Description", rec.Description)
				}
				if rec.SourceURL != "" {
					out.KeyValue("Source", rec.SourceURL)
				}
				if rec.Origin != "" && rec.Origin != rec.SourceURL {
					out.KeyValue("Installed from", fetch.Redact(rec.Origin))
				}
				out.KeyValue("Checksum", rec.Checksum)
				out.Println()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
