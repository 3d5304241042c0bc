package models

import (
	"encoding/hex"
	"fmt"
)

// Digest is a fixed-width content digest of one block.
type Digest [32]byte

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText renders the digest as hex in JSON reports.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Short returns the first 12 hex characters.
func (d Digest) Short() string {
	return d.String()[:12]
}

// DuplicateGroup is a digest that occurs at two or more block indices of
// the sample region. PadOnly marks groups whose block is entirely padding,
// a known false-positive source that is reported, not suppressed.
type DuplicateGroup struct {
	Digest  Digest  `json:"digest"`
	Indices []int64 `json:"indices"`
	PadOnly bool    `json:"pad_only"`
}

// MatchResult counts positionally equal digests between the tail window
// and the window Candidate bytes earlier.
type MatchResult struct {
	Candidate   int64  `json:"candidate"`
	Hits        int    `json:"hits"`
	Total       int    `json:"total"`
	Skipped     bool   `json:"skipped,omitempty"`
	SkipReason  string `json:"skip_reason,omitempty"`
	WindowStart int64  `json:"window_start"`
}

// Tier is the strength of an alias signal.
type Tier int

const (
	TierNone Tier = iota
	TierWeak
	TierStrong
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "NONE"
	case TierWeak:
		return "WEAK"
	case TierStrong:
		return "STRONG"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText renders the tier by name in JSON reports.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
