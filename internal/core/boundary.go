package core

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
)

// LocateOptions configures one boundary search.
type LocateOptions struct {
	BlockSize int64
	// ChunkSize is the coarse read unit of the windowed and pattern
	// strategies. It is rounded down to whole blocks, minimum one.
	ChunkSize int64
	Pad       pad.Set
	// Matcher finds the rightmost non-pad byte. Required by the pattern
	// strategy and by Exact.
	Matcher  pad.Matcher
	Strategy models.Strategy
	// StartBlock, when set, is the block the backward scan begins at
	// instead of the last block.
	StartBlock *int64
	Refine     bool
	Exact      bool
	Logger     *slog.Logger
}

func (o *LocateOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// locator holds the state of a single Locate call. It is never shared.
type locator struct {
	img   *image.Image
	opts  LocateOptions
	geom  models.Geometry
	state models.ScanState
	log   *slog.Logger
	buf   []byte
}

// Locate scans img backward for the last block holding non-pad data and,
// when requested, refines the hit to sector and byte precision.
//
// When nothing is found the returned Boundary is still non-nil, carries
// StatusNotFound, and the error wraps ErrNotFound.
func Locate(ctx context.Context, img *image.Image, opts LocateOptions) (*models.Boundary, error) {
	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: block size must be positive, got %d", ErrConfiguration, opts.BlockSize)
	}
	if img.Size() <= 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrConfiguration)
	}
	if opts.Pad.Len() == 0 {
		return nil, fmt.Errorf("%w: empty pad byte set", ErrConfiguration)
	}
	if (opts.Strategy == models.StrategyPattern || opts.Exact) && opts.Matcher == nil {
		return nil, fmt.Errorf("%w: %s needs a byte pattern matcher", ErrConfiguration, opts.Strategy)
	}

	geom := models.Geometry{ImageSize: img.Size(), BlockSize: opts.BlockSize}
	geom.TotalBlocks = (geom.ImageSize + geom.BlockSize - 1) / geom.BlockSize

	start := geom.TotalBlocks - 1
	if opts.StartBlock != nil {
		start = *opts.StartBlock
		if start < 0 || start >= geom.TotalBlocks {
			return nil, fmt.Errorf("%w: start block %d outside [0, %d)", ErrConfiguration, start, geom.TotalBlocks)
		}
	}

	l := &locator{
		img:   img,
		opts:  opts,
		geom:  geom,
		state: models.ScanState{SearchCursor: start, Status: models.StatusScanning},
		log:   opts.logger().With("strategy", opts.Strategy.String()),
	}

	var (
		block int64
		found bool
		err   error
	)
	switch opts.Strategy {
	case models.StrategyDirect:
		block, found, err = l.scanDirect(ctx, start)
	case models.StrategyWindowed:
		block, found, err = l.scanWindowed(ctx, start)
	case models.StrategyPattern:
		block, found, err = l.scanPattern(ctx, start)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %s", ErrConfiguration, opts.Strategy)
	}
	if err != nil {
		return nil, err
	}

	b := &models.Boundary{
		Strategy:       opts.Strategy,
		LastBlock:      -1,
		Sector:         models.NoSector,
		FirstPadSector: models.NoSector,
		ByteOffset:     -1,
	}

	if !found {
		l.state.Status = models.StatusNotFound
		b.State = l.state
		return b, fmt.Errorf("%w: blocks 0..%d of %s are all pad (%s)", ErrNotFound, start, img.Path(), opts.Pad)
	}

	blk := geom.Block(block)
	l.state.SearchCursor = block
	l.state.LowerBound = blk.Offset
	l.state.UpperBound = blk.End()
	l.state.Status = models.StatusFoundBlock
	b.LastBlock = block
	l.log.Debug("found last data block", "block", block, "offset", blk.Offset)

	if opts.Refine {
		if err := l.refine(ctx, b); err != nil {
			return nil, err
		}
	} else if opts.Exact {
		off, err := l.lastByteIn(blk.Offset, blk.End())
		if err != nil {
			return nil, err
		}
		b.ByteOffset = off
	}

	b.State = l.state
	return b, nil
}

// blocksBackward yields block indices from start down to 0.
func blocksBackward(start int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for i := start; i >= 0; i-- {
			if !yield(i) {
				return
			}
		}
	}
}

// span is an inclusive run of block indices.
type span struct {
	first, last int64
}

// chunksBackward yields runs of perChunk blocks ending at start and
// walking toward block 0. The final run may be shorter.
func chunksBackward(start, perChunk int64) iter.Seq[span] {
	return func(yield func(span) bool) {
		for last := start; last >= 0; last -= perChunk {
			first := max(last-perChunk+1, 0)
			if !yield(span{first: first, last: last}) {
				return
			}
		}
	}
}

func (l *locator) buffer(n int64) []byte {
	if int64(cap(l.buf)) < n {
		l.buf = make([]byte, n)
	}
	return l.buf[:n]
}

func (l *locator) blocksPerChunk() int64 {
	return max(l.opts.ChunkSize/l.opts.BlockSize, 1)
}

// readSpan reads the bytes of blocks s.first..s.last.
func (l *locator) readSpan(s span) (int64, []byte, error) {
	off := l.geom.Block(s.first).Offset
	end := l.geom.Block(s.last).End()
	p := l.buffer(end - off)
	if err := l.img.ReadAt(p, off); err != nil {
		return 0, nil, err
	}
	return off, p, nil
}

func (l *locator) scanDirect(ctx context.Context, start int64) (int64, bool, error) {
	for i := range blocksBackward(start) {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		l.state.SearchCursor = i
		blk := l.geom.Block(i)
		p := l.buffer(blk.Length)
		if err := l.img.ReadAt(p, blk.Offset); err != nil {
			return 0, false, err
		}
		if l.opts.Pad.HasData(p) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (l *locator) scanWindowed(ctx context.Context, start int64) (int64, bool, error) {
	for s := range chunksBackward(start, l.blocksPerChunk()) {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		l.state.SearchCursor = s.first
		off, p, err := l.readSpan(s)
		if err != nil {
			return 0, false, err
		}
		if !l.opts.Pad.HasData(p) {
			continue
		}
		l.log.Debug("chunk hit", "first_block", s.first, "last_block", s.last)
		for i := s.last; i >= s.first; i-- {
			blk := l.geom.Block(i)
			if l.opts.Pad.HasData(p[blk.Offset-off : blk.End()-off]) {
				return i, true, nil
			}
		}
	}
	return 0, false, nil
}

func (l *locator) scanPattern(ctx context.Context, start int64) (int64, bool, error) {
	for s := range chunksBackward(start, l.blocksPerChunk()) {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		l.state.SearchCursor = s.first
		off, p, err := l.readSpan(s)
		if err != nil {
			return 0, false, err
		}
		idx := l.opts.Matcher.LastData(p)
		if idx < 0 {
			continue
		}
		last := off + int64(idx)
		l.log.Debug("pattern hit", "byte_offset", last)
		return last / l.opts.BlockSize, true, nil
	}
	return 0, false, nil
}

// lastByteIn returns the offset of the rightmost non-pad byte in [lo, hi),
// or -1 if there is none.
func (l *locator) lastByteIn(lo, hi int64) (int64, error) {
	p := l.buffer(hi - lo)
	if err := l.img.ReadAt(p, lo); err != nil {
		return 0, err
	}
	idx := l.opts.Matcher.LastData(p)
	if idx < 0 {
		return -1, nil
	}
	return lo + int64(idx), nil
}
