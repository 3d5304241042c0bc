package pad

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMatcherUnavailable is returned when a named matcher cannot serve the
// requested pad set.
var ErrMatcherUnavailable = errors.New("byte pattern matcher unavailable")

// Matcher locates the rightmost non-pad byte of a range. Every
// implementation returns the same offset for the same input.
type Matcher interface {
	// Name identifies the implementation in logs and reports.
	Name() string
	// LastData returns the offset of the rightmost non-pad byte in p, or
	// -1 if p is entirely padding.
	LastData(p []byte) int
}

// Matcher names in fallback order.
const (
	MatcherWord = "word"
	MatcherByte = "byte"
)

// SelectMatcher returns the named matcher for set. "auto" (or "") probes
// the implementations in fallback order and returns the first available.
func SelectMatcher(name string, set Set) (Matcher, error) {
	switch name {
	case "", "auto":
		if m, err := newWordMatcher(set); err == nil {
			return m, nil
		}
		return newByteMatcher(set), nil
	case MatcherWord:
		return newWordMatcher(set)
	case MatcherByte:
		return newByteMatcher(set), nil
	default:
		return nil, fmt.Errorf("unknown matcher %q: %w", name, ErrMatcherUnavailable)
	}
}

// byteMatcher walks backward one byte at a time and works for any set.
type byteMatcher struct {
	set Set
}

func newByteMatcher(set Set) *byteMatcher {
	return &byteMatcher{set: set}
}

func (m *byteMatcher) Name() string { return MatcherByte }

func (m *byteMatcher) LastData(p []byte) int {
	for i := len(p) - 1; i >= 0; i-- {
		if !m.set.member[p[i]] {
			return i
		}
	}
	return -1
}

// wordMatcher compares eight bytes at a time against a repeated pad value.
// It only serves single-value sets.
type wordMatcher struct {
	value byte
	word  uint64
}

func newWordMatcher(set Set) (*wordMatcher, error) {
	if set.Len() != 1 {
		return nil, fmt.Errorf("word matcher needs exactly one pad value, have %d: %w", set.Len(), ErrMatcherUnavailable)
	}
	v := set.values[0]
	return &wordMatcher{value: v, word: uint64(v) * 0x0101010101010101}, nil
}

func (m *wordMatcher) Name() string { return MatcherWord }

func (m *wordMatcher) LastData(p []byte) int {
	i := len(p)
	// Unaligned tail first so the rest is a whole number of words.
	for i%8 != 0 {
		i--
		if p[i] != m.value {
			return i
		}
	}
	for i > 0 {
		i -= 8
		if binary.LittleEndian.Uint64(p[i:i+8]) == m.word {
			continue
		}
		for j := i + 7; j >= i; j-- {
			if p[j] != m.value {
				return j
			}
		}
	}
	return -1
}
