package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/spf13/cobra"
)

const (
	choiceAll    = "all versions"
	choiceCancel = "cancel"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd(deps *Deps) *cobra.Command {
	var (
		ver string
		yes bool
	)

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"uninstall", "rm"},
		Short:   "Remove an installed package",
		Long: `Remove one version, or every version, of an installed package.

When several versions are installed and --version is not given, you are asked
which version to remove. A yes/no confirmation follows unless --yes is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := deps.logger()
			out := printer(cmd)
			name := args[0]
			st := deps.store()

			versions, err := st.Versions(name)
			if err != nil {
				out.Error("package not installed: %s", name)
				return withExit(core.ExitRemoveFailed, err)
			}

			targets, err := chooseVersions(deps.prompter(), name, ver, versions)
			if errors.Is(err, ui.ErrCancelled) {
				out.Warning("Removal cancelled")
				return nil
			}
			if err != nil {
				out.Error("%v", err)
				return withExit(core.ExitRemoveFailed, err)
			}

			label := fmt.Sprintf("%s %s", name, strings.Join(targets, ", "))
			if !yes {
				ok, err := deps.prompter().Confirm(fmt.Sprintf("Remove %s", label))
				if err != nil && !errors.Is(err, ui.ErrCancelled) {
					return withExit(core.ExitRemoveFailed, err)
				}
				if !ok {
					out.Warning("Removal cancelled")
					return nil
				}
			}

			journal := deps.openJournal(ctx)
			defer closeJournal(journal, log)

			removeErr := st.Remove(name, targets...)
			for _, v := range targets {
				ev := core.Event{Action: core.ActionRemove, Name: name, Version: v, Outcome: core.OutcomeSuccess}
				if removeErr != nil {
					ev.Outcome = core.OutcomeFailed
					ev.ErrorKind = string(core.KindOf(removeErr))
					ev.Message = removeErr.Error()
				}
				recordEvent(ctx, journal, log, ev)
			}
			if removeErr != nil {
				out.Error("failed to remove %s: %v", label, removeErr)
				return withExit(core.ExitRemoveFailed, removeErr)
			}

			log.Info().Str("name", name).Strs("versions", targets).Msg("package removed")
			out.Success("Removed %s", label)
			return nil
		},
	}

	cmd.Flags().StringVar(&ver, "version", "", "version to remove")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

// chooseVersions resolves which versions to remove. An explicit version
// must exist; a single installed version needs no choice; otherwise the
// user picks one version, all of them, or cancels.
func chooseVersions(p ui.Prompter, name, requested string, versions []string) ([]string, error) {
	if requested != "" {
		if !slices.Contains(versions, requested) {
			return nil, fmt.Errorf("%s@%s: %w", name, requested, store.ErrVersionNotFound)
		}
		return []string{requested}, nil
	}
	if len(versions) == 1 {
		return versions, nil
	}

	items := append(slices.Clone(versions), choiceAll, choiceCancel)
	idx, err := p.Select(fmt.Sprintf("%s has %d versions installed, remove which", name, len(versions)), items)
	if err != nil {
		return nil, err
	}
	switch items[idx] {
	case choiceCancel:
		return nil, ui.ErrCancelled
	case choiceAll:
		return versions, nil
	default:
		return []string{items[idx]}, nil
	}
}
