package core

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
	"github.com/didzislauva/sdcard-forensics/internal/store"
)

// DuplicateOptions configures a duplicate scan of the sample region.
type DuplicateOptions struct {
	Hasher hasher.ContentHasher
	// Pad marks groups whose block is pure padding. Such groups are the
	// usual false positive on partly empty media and are still reported.
	Pad pad.Set
	// SpillBlocks is the sample block count above which the digest index
	// moves to disk. Zero keeps it in memory.
	SpillBlocks int64
	// IndexDir forces an on-disk index in that directory.
	IndexDir string
	Logger   *slog.Logger
}

// DuplicateReport lists the repeated blocks of the sample region.
type DuplicateReport struct {
	Hasher     string                  `json:"hasher"`
	SampleSize int64                   `json:"sample_size"`
	Blocks     int                     `json:"blocks"`
	Spilled    bool                    `json:"spilled_to_disk"`
	Groups     []models.DuplicateGroup `json:"groups"`
}

// PadOnlyGroups counts groups made of padding blocks.
func (r *DuplicateReport) PadOnlyGroups() int {
	n := 0
	for _, g := range r.Groups {
		if g.PadOnly {
			n++
		}
	}
	return n
}

// digestIndex groups block indices by digest.
type digestIndex interface {
	Add(d models.Digest, index int64) error
	Groups() ([]models.DuplicateGroup, error)
	Close() error
}

type memoryIndex struct {
	seen map[models.Digest][]int64
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{seen: make(map[models.Digest][]int64)}
}

func (m *memoryIndex) Add(d models.Digest, index int64) error {
	m.seen[d] = append(m.seen[d], index)
	return nil
}

func (m *memoryIndex) Groups() ([]models.DuplicateGroup, error) {
	var groups []models.DuplicateGroup
	for d, indices := range m.seen {
		if len(indices) >= 2 {
			groups = append(groups, models.DuplicateGroup{Digest: d, Indices: indices})
		}
	}
	return groups, nil
}

func (m *memoryIndex) Close() error { return nil }

// FindDuplicates hashes the sample region block by block and reports every
// digest that occurs at two or more block indices. Groups are ordered by
// their first index.
func FindDuplicates(ctx context.Context, img *image.Image, geom *models.Geometry, opts DuplicateOptions) (*DuplicateReport, error) {
	if opts.Hasher == nil {
		return nil, fmt.Errorf("%w: no content hasher", ErrConfiguration)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	digests, err := hasher.HashRange(ctx, img, 0, geom.SampleSize, geom.BlockSize, opts.Hasher)
	if err != nil {
		return nil, fmt.Errorf("hash sample region: %w", err)
	}

	report := &DuplicateReport{
		Hasher:     opts.Hasher.Name(),
		SampleSize: geom.SampleSize,
		Blocks:     len(digests),
	}

	var idx digestIndex
	if opts.IndexDir != "" || (opts.SpillBlocks > 0 && int64(len(digests)) > opts.SpillBlocks) {
		disk, err := store.NewDigestIndex(opts.IndexDir)
		if err != nil {
			return nil, err
		}
		log.Debug("digest index spilled to disk", "path", disk.Path(), "blocks", len(digests))
		idx = disk
		report.Spilled = true
	} else {
		idx = newMemoryIndex()
	}
	defer idx.Close()

	for i, d := range digests {
		if err := idx.Add(d, int64(i)); err != nil {
			return nil, err
		}
	}
	groups, err := idx.Groups()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(groups, func(a, b models.DuplicateGroup) int {
		return cmp.Compare(a.Indices[0], b.Indices[0])
	})

	for i := range groups {
		blk := sampleBlock(geom, groups[i].Indices[0])
		p, err := img.Read(blk.Offset, blk.Length)
		if err != nil {
			return nil, err
		}
		groups[i].PadOnly = !opts.Pad.HasData(p)
	}
	report.Groups = groups
	return report, nil
}

// DumpDuplicates writes the first occurrence of every group's block to
// path, concatenated in group order.
func DumpDuplicates(ctx context.Context, img *image.Image, geom *models.Geometry, groups []models.DuplicateGroup, path string) (int64, error) {
	ranges := make([]byteRange, 0, len(groups))
	for _, g := range groups {
		blk := sampleBlock(geom, g.Indices[0])
		ranges = append(ranges, byteRange{lo: blk.Offset, hi: blk.End()})
	}
	return writeRanges(ctx, img, path, ranges)
}

// sampleBlock is block i cut at the end of the sample region, matching the
// range that was hashed.
func sampleBlock(geom *models.Geometry, i int64) models.Block {
	blk := geom.Block(i)
	blk.Length = min(blk.End(), geom.SampleSize) - blk.Offset
	return blk
}
