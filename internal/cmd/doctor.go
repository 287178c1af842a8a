package cmd

import (
	"fmt"
	"os"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/db"
	"github.com/quantmind-br/qpm/internal/fsops"
	"github.com/quantmind-br/qpm/internal/sandbox"
	"github.com/spf13/cobra"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation and package store",
		Long:  `Check writable paths, the package store, the history database and script interpreters.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := printer(cmd)
			fs := deps.fs()

			var issues, warnings []string

			out.Header("Paths")
			dirs := []struct {
				name   string
				path   string
				create bool
			}{
				{"Install root", deps.Paths.InstallRoot(), false},
				{"Package store", deps.Paths.StoreDir(), true},
				{"Temp directory", tempDirOrDefault(deps.Paths.TempDir()), true},
			}
			for _, d := range dirs {
				if d.create {
					if err := fsops.EnsureDir(fs, d.path, 0755); err != nil {
						out.Error("%s: %v", d.name, err)
						issues = append(issues, fmt.Sprintf("%s not accessible: %s", d.name, d.path))
						continue
					}
				}
				if err := fsops.CheckWritable(fs, d.path); err != nil {
					out.Error("%s: not writable (%s)", d.name, d.path)
					issues = append(issues, fmt.Sprintf("%s not writable: %s", d.name, d.path))
					continue
				}
				out.Success("%s: %s", d.name, d.path)
			}
			out.Println()

			out.Header("Checksums")
			if algo, err := deps.algorithm(); err != nil {
				out.Error("%v", err)
				issues = append(issues, fmt.Sprintf("install.checksum_algorithm: %v", err))
			} else {
				out.Success("Algorithm: %s", algo)
			}
			out.Println()

			out.Header("Package store")
			index, storeWarnings := deps.store().Refresh()
			count := 0
			for _, versions := range index {
				count += len(versions)
			}
			out.Info("%d package(s), %d version(s) installed", len(index), count)
			for _, w := range storeWarnings {
				out.Warning("%s", w)
				warnings = append(warnings, w.String())
			}
			out.Println()

			out.Header("History database")
			journal, err := db.New(ctx, deps.Paths.DBFile())
			if err == nil {
				err = journal.Ping(ctx)
				closeJournal(journal, deps.logger())
			}
			if err != nil {
				out.Error("%s: %v", deps.Paths.DBFile(), err)
				issues = append(issues, fmt.Sprintf("history database unusable: %v", err))
			} else {
				out.Success("%s", deps.Paths.DBFile())
			}
			out.Println()

			out.Header("Script interpreters")
			for _, ext := range []string{".sh", ".py"} {
				interp := sandbox.Interpreters[ext]
				if deps.commands().CommandExists(interp) {
					out.Success("%s (%s scripts)", interp, ext)
				} else {
					out.Warning("%s not found, %s install scripts will fail", interp, ext)
					warnings = append(warnings, fmt.Sprintf("%s not found", interp))
				}
			}
			out.Println()

			out.Header("Summary")
			if len(warnings) > 0 {
				out.Warning("%d warning(s)", len(warnings))
			}
			if len(issues) > 0 {
				out.List(issues)
				return withExitf(core.ExitGeneral, "%d issue(s) found", len(issues))
			}
			out.Success("All critical checks passed")
			return nil
		},
	}

	return cmd
}

func tempDirOrDefault(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}
