package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/didzislauva/sdcard-forensics/internal/core"
	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var aliasCmd = &cobra.Command{
	Use:   "alias <image>",
	Short: "Look for wrap-around aliasing of a fake-capacity card",
	Long: `Hash the start of the image to find repeated blocks, then compare the tail
of the image against the window that lies each candidate capacity earlier.
A card that silently wraps writes at its real capacity shows the tail
content repeated exactly that many bytes back.

The result is classified as STRONG, WEAK or NONE. A weak or absent signal
is reported, not treated as an error.

Examples:
  sdscan alias card.img
  sdscan alias card.img --profile 64g --hasher sha256
  sdscan alias card.img --candidates 4GiB,8GiB --dump-duplicates dups.bin`,
	Args: cobra.ExactArgs(1),
	Run:  runAlias,
}

// aliasOptions are the parsed alias flags.
type aliasOptions struct {
	Profile        string
	BlockSize      string
	SampleSize     string
	TailSize       string
	Candidates     []string
	Pad            string
	Hasher         string
	Backend        string
	Workers        int
	IndexDir       string
	DumpDuplicates string
	JSON           bool
}

var aliasFlags aliasOptions

func init() {
	f := aliasCmd.Flags()
	f.StringVar(&aliasFlags.Profile, "profile", "", "Size profile (default: nearest to image size)")
	f.StringVar(&aliasFlags.BlockSize, "block-size", "", "Hash block size (overrides the profile)")
	f.StringVar(&aliasFlags.SampleSize, "sample-size", "", "Bytes from the start of the image checked for duplicates")
	f.StringVar(&aliasFlags.TailSize, "tail-size", "", "Bytes at the end of the image compared against candidates")
	f.StringSliceVar(&aliasFlags.Candidates, "candidates", nil, "Candidate capacities, e.g. 4GiB,8GiB (overrides the profile)")
	f.StringVar(&aliasFlags.Pad, "pad", "", "Pad bytes used to flag pad-only duplicates, or auto")
	f.StringVar(&aliasFlags.Hasher, "hasher", "", "Content hasher (auto|blake3|sha256)")
	f.StringVar(&aliasFlags.Backend, "backend", "", "Image read backend (file|mmap)")
	f.IntVar(&aliasFlags.Workers, "workers", 0, "Candidate windows hashed in parallel (default from config)")
	f.StringVar(&aliasFlags.IndexDir, "index-dir", "", "Keep the duplicate index on disk in this directory")
	f.StringVar(&aliasFlags.DumpDuplicates, "dump-duplicates", "", "Write the first copy of every duplicated block to FILE")
	f.BoolVar(&aliasFlags.JSON, "json", false, "Print the report as JSON")
}

func runAlias(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx, stop := signalContext()
	defer stop()

	err := scanAlias(ctx, c, os.Stdout, args[0], aliasFlags)
	c.Close()
	exitOnError(err)
}

// aliasReport is the JSON form of an alias scan.
type aliasReport struct {
	Image      string                `json:"image"`
	ImageSize  int64                 `json:"image_size"`
	Geometry   *models.Geometry      `json:"geometry"`
	Duplicates *core.DuplicateReport `json:"duplicates"`
	DumpPath   string                `json:"dump_path,omitempty"`
	DumpBytes  int64                 `json:"dump_bytes,omitempty"`
	Alias      *core.AliasReport     `json:"alias"`
}

// scanAlias runs duplicate detection and alias comparison and writes the
// report to w.
func scanAlias(ctx context.Context, c *cmdContext, w io.Writer, path string, opts aliasOptions) error {
	if err := c.openImage(path, opts.Backend); err != nil {
		return err
	}
	img := c.Image
	d := c.Config.Defaults

	req := core.GeometryRequest{Profile: opts.Profile}
	var err error
	if req.BlockSize, err = sizeFlag("block-size", opts.BlockSize); err != nil {
		return err
	}
	if req.SampleSize, err = sizeFlag("sample-size", opts.SampleSize); err != nil {
		return err
	}
	if req.TailSize, err = sizeFlag("tail-size", opts.TailSize); err != nil {
		return err
	}
	if req.Candidates, err = candidatesFlag(opts.Candidates); err != nil {
		return err
	}
	geom, err := core.ResolveGeometry(img.Size(), c.Config.Profiles, req)
	if err != nil {
		return err
	}

	h, err := hasher.Select(orDefault(opts.Hasher, d.Hasher))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	set, padSource, err := resolvePad(img, orDefault(opts.Pad, d.Pad), geom.BlockSize)
	if err != nil {
		return err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = d.Workers
	}
	c.Logger.Info("alias scan",
		"image", path,
		"profile", geom.Profile,
		"block_size", geom.BlockSize,
		"sample_size", geom.SampleSize,
		"tail_size", geom.TailSize,
		"candidates", len(geom.Candidates),
		"hasher", h.Name(),
		"pad", set.String(),
		"pad_source", padSource)

	dups, err := core.FindDuplicates(ctx, img, geom, core.DuplicateOptions{
		Hasher:      h,
		Pad:         set,
		SpillBlocks: d.IndexSpillBlocks,
		IndexDir:    opts.IndexDir,
		Logger:      c.Logger,
	})
	if err != nil {
		return err
	}
	report := &aliasReport{Image: path, ImageSize: img.Size(), Geometry: geom, Duplicates: dups}

	if opts.DumpDuplicates != "" {
		n, err := core.DumpDuplicates(ctx, img, geom, dups.Groups, opts.DumpDuplicates)
		if err != nil {
			return fmt.Errorf("dump duplicates: %w", err)
		}
		report.DumpPath, report.DumpBytes = opts.DumpDuplicates, n
	}

	report.Alias, err = core.CompareAliases(ctx, img, geom, core.AliasOptions{
		Hasher:     h,
		Thresholds: core.Thresholds{StrongFraction: d.StrongFraction},
		Workers:    workers,
		Logger:     c.Logger,
	})
	if err != nil {
		return err
	}
	if ambiguous := report.Alias.Err(); ambiguous != nil {
		c.Logger.Info("alias signal", "tier", report.Alias.Tier.String(), "detail", ambiguous)
	}

	if opts.JSON {
		return writeJSON(w, report)
	}
	printAlias(w, report)
	return nil
}

// maxListedGroups bounds how many duplicate groups the text report lists.
const maxListedGroups = 20

func printAlias(w io.Writer, r *aliasReport) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	g := r.Geometry
	fmt.Fprintf(w, "Image:       %s (%s)\n", r.Image, humanize.IBytes(uint64(r.ImageSize)))
	if g.Profile != "" {
		fmt.Fprintf(w, "Profile:     %s\n", g.Profile)
	}
	fmt.Fprintf(w, "Block size:  %s\n", humanize.IBytes(uint64(g.BlockSize)))
	fmt.Fprintf(w, "Hasher:      %s\n", r.Alias.Hasher)

	dups := r.Duplicates
	fmt.Fprintln(w)
	bold.Fprintf(w, "Duplicates in first %s (%d blocks):\n", humanize.IBytes(uint64(dups.SampleSize)), dups.Blocks)
	if len(dups.Groups) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for i, grp := range dups.Groups {
		if i == maxListedGroups {
			cyan.Fprintf(w, "  ... %d more groups\n", len(dups.Groups)-maxListedGroups)
			break
		}
		fmt.Fprintf(w, "  %s  x%-4d blocks %s", grp.Digest.Short(), len(grp.Indices), listIndices(grp.Indices, 8))
		if grp.PadOnly {
			cyan.Fprint(w, "  (pad only)")
		}
		fmt.Fprintln(w)
	}
	if n := dups.PadOnlyGroups(); n > 0 {
		cyan.Fprintf(w, "  %d of %d groups are pure padding\n", n, len(dups.Groups))
	}
	if dups.Spilled {
		cyan.Fprintln(w, "  (index kept on disk)")
	}
	if r.DumpPath != "" {
		fmt.Fprintf(w, "  wrote %s to %s\n", humanize.IBytes(uint64(r.DumpBytes)), r.DumpPath)
	}

	a := r.Alias
	fmt.Fprintln(w)
	bold.Fprintf(w, "Tail window: %s at %s (%d blocks)\n", humanize.IBytes(uint64(a.TailSize)), offset(a.TailStart), a.TailBlocks)
	for _, res := range a.Results {
		label := humanize.IBytes(uint64(res.Candidate))
		if res.Skipped {
			fmt.Fprintf(w, "  %-10s ", label)
			cyan.Fprintf(w, "skipped: %s\n", res.SkipReason)
			continue
		}
		fmt.Fprintf(w, "  %-10s %d/%d\n", label, res.Hits, res.Total)
	}

	fmt.Fprintln(w)
	bold.Fprint(w, "Signal: ")
	switch a.Tier {
	case models.TierStrong:
		red.Fprintf(w, "%s", a.Tier)
	case models.TierWeak:
		yellow.Fprintf(w, "%s", a.Tier)
	default:
		green.Fprintf(w, "%s", a.Tier)
	}
	if a.Best != nil {
		fmt.Fprintf(w, "  best candidate %s, %d/%d blocks (strong at %d)",
			humanize.IBytes(uint64(a.Best.Candidate)), a.Best.Hits, a.Best.Total, a.StrongHits)
	}
	fmt.Fprintln(w)
}

// listIndices renders up to limit indices.
func listIndices(indices []int64, limit int) string {
	parts := make([]string, 0, min(len(indices), limit)+1)
	for i, idx := range indices {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(idx))
	}
	return strings.Join(parts, ",")
}
