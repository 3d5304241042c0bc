package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/models"
)

// copyChunk is the read size used while copying ranges out of an image.
const copyChunk = 1 << 20

func requireRefined(b *models.Boundary) error {
	if b == nil || !b.Refined() {
		return fmt.Errorf("%w: extraction needs a refined boundary", ErrConfiguration)
	}
	return nil
}

func sectorRange(img *image.Image, sector int64) byteRange {
	lo := sector * models.SectorSize
	return byteRange{lo: lo, hi: min(lo+models.SectorSize, img.Size())}
}

// ExtractTrimmed copies the image up to and including the boundary sector.
func ExtractTrimmed(ctx context.Context, img *image.Image, b *models.Boundary, path string) (int64, error) {
	if err := requireRefined(b); err != nil {
		return 0, err
	}
	end := sectorRange(img, b.Sector).hi
	return writeRanges(ctx, img, path, []byteRange{{lo: 0, hi: end}})
}

// ExtractLastSector writes the last non-pad sector alone.
func ExtractLastSector(ctx context.Context, img *image.Image, b *models.Boundary, path string) (int64, error) {
	if err := requireRefined(b); err != nil {
		return 0, err
	}
	return writeRanges(ctx, img, path, []byteRange{sectorRange(img, b.Sector)})
}

// ExtractBoundaryPair writes the last non-pad sector followed by the first
// pad sector. At end of image only the last sector is written.
func ExtractBoundaryPair(ctx context.Context, img *image.Image, b *models.Boundary, path string, log *slog.Logger) (int64, error) {
	if err := requireRefined(b); err != nil {
		return 0, err
	}
	ranges := []byteRange{sectorRange(img, b.Sector)}
	if b.FirstPadSector == models.NoSector {
		if log != nil {
			log.Warn("boundary sector is the last sector; pair holds one sector", "sector", b.Sector, "path", path)
		}
	} else {
		ranges = append(ranges, sectorRange(img, b.FirstPadSector))
	}
	return writeRanges(ctx, img, path, ranges)
}

// writeRanges copies ranges of img into a new file at path. Data goes to a
// temporary file in the same directory that is renamed into place only
// after every byte is written, so an interrupted copy leaves nothing at
// path. The source image is never a valid destination.
func writeRanges(ctx context.Context, img *image.Image, path string, ranges []byteRange) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty output path", ErrConfiguration)
	}
	if img.SameFile(path) {
		return 0, fmt.Errorf("%w: output %s is the source image", ErrConfiguration, path)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sdscan-*")
	if err != nil {
		return 0, &image.IOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	var written int64
	buf := make([]byte, copyChunk)
	for _, r := range ranges {
		for pos := r.lo; pos < r.hi; {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			n := min(int64(len(buf)), r.hi-pos)
			if err := img.ReadAt(buf[:n], pos); err != nil {
				return 0, err
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				return 0, &image.IOError{Op: "write", Path: path, Offset: written, Length: n, Err: err}
			}
			pos += n
			written += n
		}
	}

	if err := tmp.Close(); err != nil {
		return 0, &image.IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, &image.IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return written, nil
}
