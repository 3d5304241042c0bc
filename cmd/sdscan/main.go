// Command sdscan inspects raw flash images for their data boundary and for
// wrap-around aliasing.
package main

import (
	"os"

	"github.com/didzislauva/sdcard-forensics/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
