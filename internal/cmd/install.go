package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/installer"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd(deps *Deps) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "install <source-url>...",
		Short: "Install packages from archive URLs",
		Long: `Download, verify and install each package archive into the store.

Sources may be http(s) or file URLs, or local archive paths. A package whose
name and version are already installed is left untouched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := deps.logger()
			out := printer(cmd)

			journal := deps.openJournal(ctx)
			defer closeJournal(journal, log)

			var opts []installer.Option
			if refresh {
				opts = append(opts, installer.WithRefetch())
			}
			inst, err := deps.newInstaller(cmd, journal, opts...)
			if err != nil {
				out.Error("%v", err)
				return withExit(core.ExitGeneral, err)
			}

			var failures []error
			for i, arg := range args {
				source := normalizeSource(arg)
				if len(args) > 1 {
					out.Step(i+1, len(args), "%s", fetch.Redact(source))
				} else {
					out.Info("Installing %s", fetch.Redact(source))
				}

				res, err := inst.Install(ctx, source)
				if err != nil {
					reportInstallError(out, err)
					failures = append(failures, err)
					continue
				}
				reportInstall(out, res)
			}

			if len(failures) > 0 {
				code := installExitCode(failures)
				if len(args) == 1 {
					return withExit(code, failures[0])
				}
				return withExitf(code, "%d of %d installs failed", len(failures), len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "download again even if the URL was installed before")

	return cmd
}

// normalizeSource turns local paths into file URLs
func normalizeSource(arg string) string {
	if strings.Contains(arg, "://") {
		return arg
	}
	if abs, err := filepath.Abs(arg); err == nil {
		arg = abs
	}
	return "file://" + filepath.ToSlash(arg)
}

func reportInstall(out *ui.Printer, res *installer.Result) {
	m := res.Manifest
	if res.NoOp {
		out.Success("%s@%s: %s", m.Name, m.Version, res.Reason)
		return
	}
	out.Success("Installed %s@%s", m.Name, m.Version)
	out.KeyValue("Path", res.Path)
	if m.Description != "" {
		out.KeyValue("Description", m.Description)
	}
	if res.Script != nil {
		out.KeyValue("Script", fmt.Sprintf("%s (exit %d)", m.InstallScript, res.Script.ExitCode))
	}
}

func reportInstallError(out *ui.Printer, err error) {
	kind := core.KindOf(err)
	out.Error("%s: %v", kind.Describe(), err)

	var sumErr *integrity.ChecksumError
	if errors.As(err, &sumErr) {
		out.KeyValue("Expected", sumErr.Expected)
		out.KeyValue("Actual", sumErr.Actual)
	}
}
