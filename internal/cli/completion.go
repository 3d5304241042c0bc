package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for sdscan.

To load completions:

Bash:
  $ source <(sdscan completion bash)
  # Or add to ~/.bashrc:
  $ echo 'source <(sdscan completion bash)' >> ~/.bashrc

Zsh:
  $ source <(sdscan completion zsh)
  # Or add to ~/.zshrc:
  $ echo 'source <(sdscan completion zsh)' >> ~/.zshrc

Fish:
  $ sdscan completion fish | source
  # Or add to config:
  $ sdscan completion fish > ~/.config/fish/completions/sdscan.fish
`,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				rootCmd.GenFishCompletion(os.Stdout, true)
			}
		},
	})
}
