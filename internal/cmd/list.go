package cmd

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/version"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd(deps *Deps) *cobra.Command {
	var (
		jsonOutput bool
		filter     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Long:  `List every installed (name, version) pair found by scanning the package store.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := printer(cmd)
			st := deps.store()

			index, warnings := st.Refresh()
			for _, w := range warnings {
				out.Warning("%s", w)
			}

			records := filterRecords(flatten(index), filter)

			if jsonOutput {
				if records == nil {
					records = []core.PackageRecord{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				if filter != "" {
					out.Warning("No packages match %q", filter)
				} else {
					out.Info("No packages installed in %s", st.Root())
				}
				return nil
			}

			printRecordTable(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "fuzzy filter on package name")

	return cmd
}

// flatten returns the index as records sorted by name, then version
func flatten(index core.Index) []core.PackageRecord {
	var records []core.PackageRecord
	for _, versions := range index {
		for _, rec := range versions {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
		}
		return version.Less(records[i].Version, records[j].Version)
	})
	return records
}

func filterRecords(records []core.PackageRecord, filter string) []core.PackageRecord {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return records
	}
	var matched []core.PackageRecord
	for _, rec := range records {
		if fuzzy.MatchNormalizedFold(filter, rec.Name) {
			matched = append(matched, rec)
		}
	}
	return matched
}

func printRecordTable(w io.Writer, records []core.PackageRecord) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Name", "Version", "Description", "Path"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, rec := range records {
		desc := rec.Description
		if desc == "" {
			desc = "-"
		}
		if len(desc) > 40 {
			desc = desc[:37] + "..."
		}
		table.Append(rec.Name, rec.Version, desc, rec.Path)
	}

	table.Render()
}
