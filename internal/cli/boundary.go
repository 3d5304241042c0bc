package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/didzislauva/sdcard-forensics/internal/core"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary <image>",
	Short: "Find where data ends before the erased padding",
	Long: `Scan an image backward for the last block that holds anything other than
pad bytes, then narrow the hit down to the 512-byte sector (and optionally
the exact byte) where real data ends.

Exit status is 0 when data was found, 2 when the scanned range is all
padding, and 1 on any other error.

Examples:
  sdscan boundary card.img
  sdscan boundary card.img --strategy pattern --exact
  sdscan boundary card.img --pad ff,00 --extract-pair boundary.bin`,
	Args: cobra.ExactArgs(1),
	Run:  runBoundary,
}

// boundaryOptions are the parsed boundary flags.
type boundaryOptions struct {
	Profile    string
	BlockSize  string
	ChunkSize  string
	Pad        string
	Strategy   string
	Matcher    string
	Backend    string
	StartBlock *int64
	NoRefine   bool
	Exact      bool
	JSON       bool

	ExtractTrimmed string
	ExtractSector  string
	ExtractPair    string
}

var (
	boundaryFlags      boundaryOptions
	boundaryStartBlock int64
)

func init() {
	f := boundaryCmd.Flags()
	f.StringVar(&boundaryFlags.Profile, "profile", "", "Size profile supplying the block size (default: nearest to image size)")
	f.StringVar(&boundaryFlags.BlockSize, "block-size", "", "Block size, e.g. 64KiB (overrides the profile)")
	f.StringVar(&boundaryFlags.ChunkSize, "chunk-size", "", "Read size of the windowed and pattern strategies")
	f.StringVar(&boundaryFlags.Pad, "pad", "", "Pad bytes as comma-separated hex, or auto")
	f.StringVar(&boundaryFlags.Strategy, "strategy", "", "Scan strategy (direct|windowed|pattern)")
	f.StringVar(&boundaryFlags.Matcher, "matcher", "", "Byte pattern matcher (auto|word|byte)")
	f.StringVar(&boundaryFlags.Backend, "backend", "", "Image read backend (file|mmap)")
	f.Int64Var(&boundaryStartBlock, "start-block", 0, "Scan backward from this block instead of the last one")
	f.BoolVar(&boundaryFlags.NoRefine, "no-refine", false, "Stop at block precision")
	f.BoolVar(&boundaryFlags.Exact, "exact", false, "Report the exact offset of the last data byte")
	f.BoolVar(&boundaryFlags.JSON, "json", false, "Print the report as JSON")
	f.StringVar(&boundaryFlags.ExtractTrimmed, "extract-trimmed", "", "Write the image up to the end of the boundary sector to FILE")
	f.StringVar(&boundaryFlags.ExtractSector, "extract-sector", "", "Write the last data sector to FILE")
	f.StringVar(&boundaryFlags.ExtractPair, "extract-pair", "", "Write the last data sector and the first pad sector to FILE")
}

func runBoundary(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	opts := boundaryFlags
	if cmd.Flags().Changed("start-block") {
		opts.StartBlock = &boundaryStartBlock
	}

	ctx, stop := signalContext()
	defer stop()

	err := scanBoundary(ctx, c, os.Stdout, args[0], opts)
	c.Close()
	exitOnError(err)
}

// boundaryReport is the JSON form of a boundary scan.
type boundaryReport struct {
	Image     string           `json:"image"`
	ImageSize int64            `json:"image_size"`
	BlockSize int64            `json:"block_size"`
	Profile   string           `json:"profile,omitempty"`
	Pad       string           `json:"pad"`
	PadSource string           `json:"pad_source"`
	Matcher   string           `json:"matcher"`
	NotFound  bool             `json:"not_found"`
	Boundary  *models.Boundary `json:"boundary"`
	Extracted []extraction     `json:"extracted,omitempty"`
}

type extraction struct {
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// scanBoundary runs one boundary search and writes the report to w.
func scanBoundary(ctx context.Context, c *cmdContext, w io.Writer, path string, opts boundaryOptions) error {
	if err := c.openImage(path, opts.Backend); err != nil {
		return err
	}
	img := c.Image
	d := c.Config.Defaults

	blockSize, err := sizeFlag("block-size", opts.BlockSize)
	if err != nil {
		return err
	}
	geom, err := core.ResolveGeometry(img.Size(), c.Config.Profiles, core.GeometryRequest{
		Profile:   opts.Profile,
		BlockSize: blockSize,
	})
	if err != nil {
		return err
	}
	chunkSize, err := sizeFlag("chunk-size", orDefault(opts.ChunkSize, d.ChunkSize))
	if err != nil {
		return err
	}
	strategy, err := models.ParseStrategy(orDefault(opts.Strategy, d.Strategy))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}

	set, padSource, err := resolvePad(img, orDefault(opts.Pad, d.Pad), geom.BlockSize)
	if err != nil {
		return err
	}
	matcher, err := pad.SelectMatcher(orDefault(opts.Matcher, d.Matcher), set)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	c.Logger.Info("boundary scan",
		"image", path,
		"strategy", strategy.String(),
		"block_size", geom.BlockSize,
		"pad", set.String(),
		"pad_source", padSource,
		"matcher", matcher.Name())

	extracting := opts.ExtractTrimmed != "" || opts.ExtractSector != "" || opts.ExtractPair != ""
	if extracting && opts.NoRefine {
		return fmt.Errorf("%w: extraction needs sector refinement; drop --no-refine", core.ErrConfiguration)
	}

	b, err := core.Locate(ctx, img, core.LocateOptions{
		BlockSize:  geom.BlockSize,
		ChunkSize:  chunkSize,
		Pad:        set,
		Matcher:    matcher,
		Strategy:   strategy,
		StartBlock: opts.StartBlock,
		Refine:     !opts.NoRefine,
		Exact:      opts.Exact,
		Logger:     c.Logger,
	})
	report := &boundaryReport{
		Image:     path,
		ImageSize: img.Size(),
		BlockSize: geom.BlockSize,
		Profile:   geom.Profile,
		Pad:       set.String(),
		PadSource: padSource,
		Matcher:   matcher.Name(),
		Boundary:  b,
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		report.NotFound = true
		if perr := printBoundary(w, report, opts.JSON); perr != nil {
			return perr
		}
		return err
	case err != nil:
		return err
	}

	if extracting {
		if err := extractBoundary(ctx, c, b, opts, report); err != nil {
			return err
		}
	}
	return printBoundary(w, report, opts.JSON)
}

func extractBoundary(ctx context.Context, c *cmdContext, b *models.Boundary, opts boundaryOptions, report *boundaryReport) error {
	jobs := []struct {
		kind string
		path string
		run  func(string) (int64, error)
	}{
		{"trimmed", opts.ExtractTrimmed, func(p string) (int64, error) { return core.ExtractTrimmed(ctx, c.Image, b, p) }},
		{"sector", opts.ExtractSector, func(p string) (int64, error) { return core.ExtractLastSector(ctx, c.Image, b, p) }},
		{"pair", opts.ExtractPair, func(p string) (int64, error) { return core.ExtractBoundaryPair(ctx, c.Image, b, p, c.Logger) }},
	}
	for _, job := range jobs {
		if job.path == "" {
			continue
		}
		n, err := job.run(job.path)
		if err != nil {
			return fmt.Errorf("extract %s: %w", job.kind, err)
		}
		c.Logger.Info("extracted", "kind", job.kind, "path", job.path, "bytes", n)
		report.Extracted = append(report.Extracted, extraction{Kind: job.kind, Path: job.path, Bytes: n})
	}
	return nil
}

func printBoundary(w io.Writer, r *boundaryReport, asJSON bool) error {
	if asJSON {
		return writeJSON(w, r)
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	fmt.Fprintf(w, "Image:       %s (%s, %d sectors)\n", r.Image, humanize.IBytes(uint64(r.ImageSize)), (r.ImageSize+models.SectorSize-1)/models.SectorSize)
	fmt.Fprintf(w, "Block size:  %s", humanize.IBytes(uint64(r.BlockSize)))
	if r.Profile != "" {
		fmt.Fprintf(w, " (profile %s)", r.Profile)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Pad bytes:   %s (%s)\n", r.Pad, r.PadSource)
	fmt.Fprintf(w, "Strategy:    %s (matcher %s)\n", r.Boundary.Strategy, r.Matcher)
	fmt.Fprintln(w)

	b := r.Boundary
	if r.NotFound {
		yellow.Fprintln(w, "No non-pad data found in the scanned range.")
		return nil
	}

	bold.Fprint(w, "Last data block:  ")
	fmt.Fprintf(w, "%d  [%s, %s)\n", b.LastBlock, offset(b.State.LowerBound), offset(b.State.UpperBound))
	if !b.Refined() {
		cyan.Fprintln(w, "  (refinement skipped)")
	} else {
		bold.Fprint(w, "Last data sector: ")
		green.Fprintf(w, "%d", b.Sector)
		fmt.Fprintf(w, "  at %s\n", offset(b.Sector*models.SectorSize))

		bold.Fprint(w, "First pad sector: ")
		if b.FirstPadIsEOF() {
			yellow.Fprintln(w, "EOF")
		} else {
			fmt.Fprintf(w, "%d  at %s\n", b.FirstPadSector, offset(b.FirstPadSector*models.SectorSize))
		}
	}
	if b.ByteOffset != models.NoSector {
		bold.Fprint(w, "Last data byte:   ")
		green.Fprintf(w, "%s\n", offset(b.ByteOffset))
	}

	if len(r.Extracted) > 0 {
		fmt.Fprintln(w)
		for _, e := range r.Extracted {
			fmt.Fprintf(w, "Wrote %s (%s) to %s\n", e.Kind, humanize.IBytes(uint64(e.Bytes)), e.Path)
		}
	}
	return nil
}

// offset formats a byte offset in decimal and hex.
func offset(n int64) string {
	return fmt.Sprintf("%d (0x%x)", n, n)
}
