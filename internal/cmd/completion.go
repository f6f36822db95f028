package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for your shell.

  bash        source <(nearby completion bash)
  zsh         nearby completion zsh > "${fpath[1]}/_nearby"
  fish        nearby completion fish > ~/.config/fish/completions/nearby.fish
  powershell  nearby completion powershell >> $PROFILE
`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(w, true)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		default:
			return rootCmd.GenPowerShellCompletionWithDesc(w)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
