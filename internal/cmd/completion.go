package cmd

import (
	"github.com/spf13/cobra"
)

// NewCompletionCmd creates the completion command
func NewCompletionCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for qpm.

Bash:
  $ source <(qpm completion bash)

Zsh:
  $ qpm completion zsh > "${fpath[1]}/_qpm"

Fish:
  $ qpm completion fish > ~/.config/fish/completions/qpm.fish

PowerShell:
  PS> qpm completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			root := cmd.Root()

			var err error
			switch args[0] {
			case "bash":
				err = root.GenBashCompletionV2(w, true)
			case "zsh":
				err = root.GenZshCompletion(w)
			case "fish":
				err = root.GenFishCompletion(w, true)
			case "powershell":
				err = root.GenPowerShellCompletionWithDesc(w)
			}
			if err != nil {
				printer(cmd).Error("failed to generate %s completion: %v", args[0], err)
				return err
			}

			deps.logger().Debug().Str("shell", args[0]).Msg("generated shell completion")
			return nil
		},
	}

	return cmd
}
