package core

import (
	"math"

	"github.com/didzislauva/sdcard-forensics/internal/models"
)

// Thresholds tunes alias classification. The cutoff is a heuristic, not a
// statistically derived bound.
type Thresholds struct {
	// StrongFraction of the tail blocks must match for a STRONG signal.
	StrongFraction float64
}

// DefaultThresholds returns the half-of-tail cutoff.
func DefaultThresholds() Thresholds {
	return Thresholds{StrongFraction: 0.5}
}

// StrongHits returns the minimum hit count for STRONG given total tail
// blocks. It is never below one.
func (t Thresholds) StrongHits(total int) int {
	f := t.StrongFraction
	if f <= 0 || f > 1 {
		f = DefaultThresholds().StrongFraction
	}
	return max(int(math.Ceil(float64(total)*f)), 1)
}

// ClassifyMatch turns the best match into a signal tier. A nil or skipped
// best result is TierNone.
func ClassifyMatch(best *models.MatchResult, t Thresholds) models.Tier {
	if best == nil || best.Skipped || best.Hits == 0 {
		return models.TierNone
	}
	if best.Hits >= t.StrongHits(best.Total) {
		return models.TierStrong
	}
	return models.TierWeak
}
