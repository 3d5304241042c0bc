package cli

import (
	"fmt"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the sdscan configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a TOML file",
	Long: `Write the effective defaults and size profiles to a TOML file, ready for
editing. The default path is ` + config.DefaultFile + ` in the current directory.
An existing file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	path := config.DefaultFile
	if len(args) == 1 {
		path = args[0]
	}
	if err := c.Config.Save(path); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}
