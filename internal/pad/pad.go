// Package pad classifies byte ranges as padding (erased or zero-filled
// flash) or genuine data.
package pad

import (
	"fmt"
	"strconv"
	"strings"
)

// Set is a set of byte values treated as padding. A range is pad-only iff
// every byte in it belongs to the set.
type Set struct {
	member [256]bool
	values []byte
}

// NewSet builds a pad set from the given values. Duplicates are ignored.
func NewSet(values ...byte) Set {
	var s Set
	for _, v := range values {
		if s.member[v] {
			continue
		}
		s.member[v] = true
		s.values = append(s.values, v)
	}
	return s
}

// Erased is the NAND erased state.
var Erased = NewSet(0xFF)

// Parse parses a comma-separated list of hex byte values such as "ff" or
// "ff,00". A leading "0x" on each value is accepted.
func Parse(spec string) (Set, error) {
	var values []byte
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return Set{}, fmt.Errorf("invalid pad byte %q: %w", field, err)
		}
		values = append(values, byte(v))
	}
	if len(values) == 0 {
		return Set{}, fmt.Errorf("empty pad byte set %q", spec)
	}
	return NewSet(values...), nil
}

// Contains reports whether b is a pad value.
func (s *Set) Contains(b byte) bool {
	return s.member[b]
}

// Values returns the pad values in insertion order.
func (s Set) Values() []byte {
	return append([]byte(nil), s.values...)
}

// Len returns the number of distinct pad values.
func (s Set) Len() int {
	return len(s.values)
}

// String formats the set the way Parse accepts it.
func (s Set) String() string {
	parts := make([]string, len(s.values))
	for i, v := range s.values {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ",")
}

// HasData reports whether p contains at least one non-pad byte. It stops
// at the first one found.
func (s *Set) HasData(p []byte) bool {
	for _, b := range p {
		if !s.member[b] {
			return true
		}
	}
	return false
}

// Detect guesses the fill value from a range taken from the end of an
// image. Zero wins only with a clear majority; otherwise the erased state
// is assumed.
func Detect(p []byte) Set {
	if len(p) == 0 {
		return Erased
	}
	var ff, zero int
	for _, b := range p {
		switch b {
		case 0xFF:
			ff++
		case 0x00:
			zero++
		}
	}
	if ff > len(p)*80/100 {
		return Erased
	}
	if zero > len(p)*80/100 {
		return NewSet(0x00)
	}
	return Erased
}
