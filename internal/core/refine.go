package core

import (
	"context"
	"fmt"

	"github.com/didzislauva/sdcard-forensics/internal/models"
)

// byteRange is the half-open interval [lo, hi).
type byteRange struct {
	lo, hi int64
}

func (r byteRange) width() int64 {
	return r.hi - r.lo
}

// quarter splits r into four segments of width ceil(w/4), the last one
// possibly shorter, and returns the rightmost segment for which has
// reports true. ok is false when no segment qualifies.
func quarter(r byteRange, has func(byteRange) (bool, error)) (next byteRange, ok bool, err error) {
	seg := (r.width() + 3) / 4
	for k := int64(3); k >= 0; k-- {
		lo := r.lo + k*seg
		if lo >= r.hi {
			continue
		}
		part := byteRange{lo: lo, hi: min(lo+seg, r.hi)}
		ok, err := has(part)
		if err != nil {
			return r, false, err
		}
		if ok {
			return part, true, nil
		}
	}
	return r, false, nil
}

func (l *locator) rangeHasData(r byteRange) (bool, error) {
	p := l.buffer(r.width())
	if err := l.img.ReadAt(p, r.lo); err != nil {
		return false, err
	}
	return l.opts.Pad.HasData(p), nil
}

// refine narrows the found block to the last non-pad sector. The bounds in
// l.state only ever shrink.
func (l *locator) refine(ctx context.Context, b *models.Boundary) error {
	l.state.Status = models.StatusRefining
	blockEnd := l.state.UpperBound
	r := byteRange{lo: l.state.LowerBound, hi: l.state.UpperBound}

	for r.width() >= models.SectorSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok, err := quarter(r, l.rangeHasData)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("refine %s: no data left in [%d, %d) of block %d; image changed during scan?",
				l.img.Path(), r.lo, r.hi, b.LastBlock)
		}
		r = next
		l.state.LowerBound, l.state.UpperBound = r.lo, r.hi
		l.log.Debug("refine step", "lower", r.lo, "upper", r.hi)
	}

	// Sectors are tested only up to the end of the found block so a sector
	// straddling into a later block cannot pull in data beyond the scan.
	sector := models.NoSector
	for s := (r.hi - 1) / models.SectorSize; s >= r.lo/models.SectorSize; s-- {
		lo := s * models.SectorSize
		hi := min(lo+models.SectorSize, blockEnd)
		has, err := l.rangeHasData(byteRange{lo: lo, hi: hi})
		if err != nil {
			return err
		}
		if has {
			sector = s
			break
		}
	}
	if sector == models.NoSector {
		return fmt.Errorf("refine %s: no data sector in [%d, %d); image changed during scan?", l.img.Path(), r.lo, r.hi)
	}

	secLo := sector * models.SectorSize
	secHi := min(secLo+models.SectorSize, blockEnd)
	l.state.LowerBound = max(l.state.LowerBound, secLo)
	l.state.UpperBound = min(l.state.UpperBound, secHi)

	b.Sector = sector
	b.FirstPadSector = sector + 1
	if b.FirstPadSector*models.SectorSize >= l.geom.ImageSize {
		b.FirstPadSector = models.NoSector
	}

	if l.opts.Exact {
		off, err := l.lastByteIn(secLo, secHi)
		if err != nil {
			return err
		}
		b.ByteOffset = off
	}

	l.state.Status = models.StatusRefined
	l.log.Debug("refined", "sector", sector, "first_pad_sector", b.FirstPadSector, "byte_offset", b.ByteOffset)
	return nil
}
