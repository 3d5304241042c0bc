package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the size profiles",
	Long: `List the size profiles used to derive block, sample and tail sizes and
the candidate capacities for an image. Built-in profiles can be replaced or
extended from the config file.`,
	Args: cobra.NoArgs,
	Run:  runProfiles,
}

func runProfiles(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := printProfiles(os.Stdout, c.Config); err != nil {
		exitError("%v", err)
	}
}

func printProfiles(w io.Writer, cfg *config.Config) error {
	yellow := color.New(color.FgYellow)

	if cfg.Path() != "" {
		fmt.Fprintf(w, "Config: %s\n\n", cfg.Path())
	}
	for i := range cfg.Profiles {
		p := &cfg.Profiles[i]
		s, err := p.Resolve()
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
		candidates := make([]string, len(s.Candidates))
		for j, c := range s.Candidates {
			candidates[j] = humanize.IBytes(uint64(c))
		}
		yellow.Fprintf(w, "%-6s", p.Name)
		fmt.Fprintf(w, " nominal %-9s block %-9s sample %-9s tail %-9s\n",
			humanize.IBytes(uint64(s.NominalSize)),
			humanize.IBytes(uint64(s.BlockSize)),
			humanize.IBytes(uint64(s.SampleSize)),
			humanize.IBytes(uint64(s.TailSize)))
		fmt.Fprintf(w, "       candidates %s\n", strings.Join(candidates, ", "))
	}
	return nil
}
