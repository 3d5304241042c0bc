package models

import "fmt"

// Strategy selects how the boundary locator walks the image.
type Strategy int

const (
	// StrategyDirect tests one block at a time from the end.
	StrategyDirect Strategy = iota
	// StrategyWindowed tests coarse chunks first and descends into a hit.
	StrategyWindowed
	// StrategyPattern locates the rightmost non-pad byte inside each chunk.
	StrategyPattern
)

// Strategies lists every strategy in declaration order.
var Strategies = []Strategy{StrategyDirect, StrategyWindowed, StrategyPattern}

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyWindowed:
		return "windowed"
	case StrategyPattern:
		return "pattern"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown scan strategy %q (want direct, windowed or pattern)", name)
}

// ScanStatus is the state of one boundary search.
type ScanStatus string

const (
	StatusScanning   ScanStatus = "scanning"
	StatusFoundBlock ScanStatus = "found_block"
	StatusRefining   ScanStatus = "refining"
	StatusRefined    ScanStatus = "refined"
	StatusNotFound   ScanStatus = "not_found"
)

// ScanState is owned by a single locator invocation. LowerBound and
// UpperBound bracket [lo, hi) once a block is found and only shrink after.
type ScanState struct {
	SearchCursor int64      `json:"search_cursor"`
	LowerBound   int64      `json:"lower_bound"`
	UpperBound   int64      `json:"upper_bound"`
	Status       ScanStatus `json:"status"`
}

// NoSector marks an absent sector index: refinement disabled, or the
// first pad sector would lie past end of image.
const NoSector int64 = -1

// Boundary is the outcome of a boundary search.
type Boundary struct {
	Strategy Strategy  `json:"strategy"`
	State    ScanState `json:"state"`

	// LastBlock is the index of the last block holding non-pad data.
	LastBlock int64 `json:"last_block"`
	// Sector is the last non-pad sector, NoSector if not refined.
	Sector int64 `json:"sector"`
	// FirstPadSector is Sector+1, or NoSector when that is past EOF.
	FirstPadSector int64 `json:"first_pad_sector"`
	// ByteOffset is the exact last non-pad byte, -1 if not requested.
	ByteOffset int64 `json:"byte_offset"`
}

// Found reports whether any non-pad block was located.
func (b *Boundary) Found() bool {
	return b.State.Status != StatusNotFound && b.State.Status != StatusScanning
}

// Refined reports whether sector-level refinement completed.
func (b *Boundary) Refined() bool {
	return b.State.Status == StatusRefined
}

// FirstPadIsEOF reports whether the boundary sector is the final sector.
func (b *Boundary) FirstPadIsEOF() bool {
	return b.Refined() && b.FirstPadSector == NoSector
}

// MarshalText renders the strategy by name in JSON reports.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a strategy name.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
