package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/didzislauva/sdcard-forensics/internal/core"
	"github.com/didzislauva/sdcard-forensics/internal/fixture"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture <output>",
	Short: "Write a synthetic image with a known boundary",
	Long: `Write a synthetic flash image for checking the scanners by hand. The image
is pad-filled, holds pseudo-random data up to --data-end, and can carry a
wrap-around copy of its tail one candidate capacity earlier.

Examples:
  sdscan fixture card.img --size 64MiB --data-end 1000000
  sdscan fixture fake.img --size 64MiB --data-end 64MiB --wrap 16MiB --tail-size 1MiB`,
	Args: cobra.ExactArgs(1),
	Run:  runFixture,
}

type fixtureOptions struct {
	Size     string
	DataEnd  string
	Pad      uint8
	Seed     uint64
	Wrap     string
	TailSize string
}

var fixtureFlags fixtureOptions

func init() {
	f := fixtureCmd.Flags()
	f.StringVar(&fixtureFlags.Size, "size", "16MiB", "Image size")
	f.StringVar(&fixtureFlags.DataEnd, "data-end", "", "Fill [0, data-end) with data (default: none)")
	f.Uint8Var(&fixtureFlags.Pad, "pad", 0xFF, "Pad byte value")
	f.Uint64Var(&fixtureFlags.Seed, "seed", 1, "Data generator seed")
	f.StringVar(&fixtureFlags.Wrap, "wrap", "", "Copy the tail this many bytes earlier")
	f.StringVar(&fixtureFlags.TailSize, "tail-size", "1MiB", "Bytes copied by --wrap")
}

func runFixture(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := writeFixture(os.Stdout, args[0], fixtureFlags); err != nil {
		exitError("%v", err)
	}
	c.Logger.Debug("fixture written", "path", args[0])
}

func writeFixture(w io.Writer, path string, opts fixtureOptions) error {
	size, err := config.ParseSize(opts.Size)
	if err != nil {
		return fmt.Errorf("%w: --size: %v", core.ErrConfiguration, err)
	}
	dataEnd, err := sizeFlag("data-end", opts.DataEnd)
	if err != nil {
		return err
	}
	spec := fixture.Spec{Size: size, Pad: opts.Pad, DataEnd: dataEnd, Seed: opts.Seed}

	wrap, err := sizeFlag("wrap", opts.Wrap)
	if err != nil {
		return err
	}
	if wrap > 0 {
		tail, err := sizeFlag("tail-size", opts.TailSize)
		if err != nil {
			return err
		}
		spec.Copies = append(spec.Copies, fixture.WrapCopy(size, tail, wrap))
	}

	last, err := fixture.Write(path, spec)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %s (%s)\n", path, humanize.IBytes(uint64(size)))
	if last >= 0 {
		fmt.Fprintf(w, "Last data byte %s, sector %d\n", offset(last), last/512)
	} else {
		fmt.Fprintln(w, "All pad")
	}
	if wrap > 0 {
		fmt.Fprintf(w, "Tail copied %s earlier\n", humanize.IBytes(uint64(wrap)))
	}
	return nil
}
