// Package fixture builds synthetic flash images with known boundaries and
// known aliasing, for validating the scanners.
package fixture

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"os"
)

// Mark is a single byte written at Offset.
type Mark struct {
	Offset int64
	Value  byte
}

// Copy duplicates Length bytes from Src to Dst after all other content is
// laid down.
type Copy struct {
	Src    int64
	Dst    int64
	Length int64
}

// Spec describes a synthetic image.
type Spec struct {
	Size int64
	// Pad fills every byte not otherwise written.
	Pad byte
	// DataEnd, when positive, fills [0, DataEnd) with pseudo-random data
	// and forces byte DataEnd-1 to be non-pad, so the last real byte is
	// exactly DataEnd-1.
	DataEnd int64
	Seed    uint64
	Marks   []Mark
	Copies  []Copy
}

// WrapCopy returns the Copy that plants the last tailSize bytes of an image
// exactly candidate bytes earlier, which is what a device wrapping at
// capacity candidate would show.
func WrapCopy(size, tailSize, candidate int64) Copy {
	return Copy{Src: size - tailSize, Dst: size - tailSize - candidate, Length: tailSize}
}

// Build renders spec into memory.
func Build(spec Spec) ([]byte, error) {
	if spec.Size <= 0 {
		return nil, fmt.Errorf("fixture size must be positive, got %d", spec.Size)
	}
	if spec.DataEnd > spec.Size {
		return nil, fmt.Errorf("data end %d beyond size %d", spec.DataEnd, spec.Size)
	}

	buf := make([]byte, spec.Size)
	for i := range buf {
		buf[i] = spec.Pad
	}

	if spec.DataEnd > 0 {
		var seed [32]byte
		binary.LittleEndian.PutUint64(seed[:], spec.Seed)
		rng := rand.NewChaCha8(seed)
		rng.Read(buf[:spec.DataEnd])
		if buf[spec.DataEnd-1] == spec.Pad {
			buf[spec.DataEnd-1] = spec.Pad ^ 0x5A
		}
	}

	for _, m := range spec.Marks {
		if m.Offset < 0 || m.Offset >= spec.Size {
			return nil, fmt.Errorf("mark offset %d outside image", m.Offset)
		}
		buf[m.Offset] = m.Value
	}

	for _, c := range spec.Copies {
		if c.Src < 0 || c.Dst < 0 || c.Src+c.Length > spec.Size || c.Dst+c.Length > spec.Size {
			return nil, fmt.Errorf("copy %d->%d (+%d) outside image", c.Src, c.Dst, c.Length)
		}
		copy(buf[c.Dst:c.Dst+c.Length], buf[c.Src:c.Src+c.Length])
	}
	return buf, nil
}

// Write renders spec to a new file at path and returns the offset of the
// last byte that differs from the pad value, or -1.
func Write(path string, spec Spec) (int64, error) {
	data, err := Build(spec)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, err
	}
	return LastDataByte(data, spec.Pad), nil
}

// LastDataByte returns the offset of the last byte of data that differs
// from pad, or -1. It is the ground truth the scanners are checked against.
func LastDataByte(data []byte, pad byte) int64 {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != pad {
			return int64(i)
		}
	}
	return -1
}
