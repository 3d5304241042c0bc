package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"golang.org/x/sync/errgroup"
)

// AliasOptions configures tail-versus-candidate comparison.
type AliasOptions struct {
	Hasher     hasher.ContentHasher
	Thresholds Thresholds
	// Workers bounds how many candidate windows are hashed at once. One
	// (the default) keeps the comparison strictly sequential.
	Workers int
	Logger  *slog.Logger
}

// AliasReport is the per-candidate match table and its classification.
type AliasReport struct {
	Hasher     string               `json:"hasher"`
	TailStart  int64                `json:"tail_start"`
	TailSize   int64                `json:"tail_size"`
	TailBlocks int                  `json:"tail_blocks"`
	Results    []models.MatchResult `json:"results"`
	Best       *models.MatchResult  `json:"best,omitempty"`
	Tier       models.Tier          `json:"tier"`
	StrongHits int                  `json:"strong_hits"`
}

// Err returns nil for a STRONG signal and ErrAmbiguousSignal otherwise.
// The value is informational; a weak or absent signal is not a failure.
func (r *AliasReport) Err() error {
	if r.Tier == models.TierStrong {
		return nil
	}
	if r.Best == nil {
		return fmt.Errorf("%w: no candidate could be compared", ErrAmbiguousSignal)
	}
	return fmt.Errorf("%w: best candidate %d matched %d/%d blocks (%s)",
		ErrAmbiguousSignal, r.Best.Candidate, r.Best.Hits, r.Best.Total, r.Tier)
}

// CompareAliases hashes the tail window and, for every candidate C, the
// equally sized window C bytes earlier, and counts positionally equal
// digests. Candidates whose window would start before byte 0 or overlap
// the tail window are skipped. The best result is the one with the most
// hits; ties go to the earliest listed candidate.
func CompareAliases(ctx context.Context, img *image.Image, geom *models.Geometry, opts AliasOptions) (*AliasReport, error) {
	if opts.Hasher == nil {
		return nil, fmt.Errorf("%w: no content hasher", ErrConfiguration)
	}
	if geom.TailSize <= 0 {
		return nil, fmt.Errorf("%w: tail window is empty", ErrConfiguration)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Thresholds.StrongFraction == 0 {
		opts.Thresholds = DefaultThresholds()
	}

	tailStart := geom.TailStart()
	tail, err := hasher.HashRange(ctx, img, tailStart, geom.TailSize, geom.BlockSize, opts.Hasher)
	if err != nil {
		return nil, fmt.Errorf("hash tail window: %w", err)
	}

	report := &AliasReport{
		Hasher:     opts.Hasher.Name(),
		TailStart:  tailStart,
		TailSize:   geom.TailSize,
		TailBlocks: len(tail),
		Results:    make([]models.MatchResult, len(geom.Candidates)),
		StrongHits: opts.Thresholds.StrongHits(len(tail)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	for i, c := range geom.Candidates {
		res := &report.Results[i]
		res.Candidate = c
		res.Total = len(tail)
		res.WindowStart = tailStart - c

		switch {
		case c < geom.TailSize:
			res.Skipped = true
			res.SkipReason = "window overlaps tail"
			continue
		case res.WindowStart < 0:
			res.Skipped = true
			res.SkipReason = "window starts before image"
			continue
		}

		g.Go(func() error {
			window, err := hasher.HashRange(gctx, img, res.WindowStart, geom.TailSize, geom.BlockSize, opts.Hasher)
			if err != nil {
				return fmt.Errorf("hash candidate %d window: %w", c, err)
			}
			if len(window) != len(tail) {
				return fmt.Errorf("candidate %d: window has %d blocks, tail has %d", c, len(window), len(tail))
			}
			for j := range tail {
				if window[j] == tail[j] {
					res.Hits++
				}
			}
			log.Debug("candidate compared", "candidate", c, "hits", res.Hits, "total", res.Total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range report.Results {
		r := &report.Results[i]
		if r.Skipped {
			continue
		}
		if report.Best == nil || r.Hits > report.Best.Hits {
			report.Best = r
		}
	}
	report.Tier = ClassifyMatch(report.Best, opts.Thresholds)
	return report, nil
}
