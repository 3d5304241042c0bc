package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/didzislauva/sdcard-forensics/internal/fixture"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locatedImage(t *testing.T, spec fixture.Spec) (*image.Image, []byte, *models.Boundary) {
	t.Helper()
	img, data := buildImage(t, spec)
	b, err := Locate(context.Background(), img, locateOpts(t, models.StrategyWindowed, pad.Erased))
	require.NoError(t, err)
	require.True(t, b.Refined())
	return img, data, b
}

func TestExtract_LastSectorAndTrimmed(t *testing.T) {
	img, data, b := locatedImage(t, fixture.Spec{Size: 1 << 20, Pad: 0xFF, DataEnd: 300000, Seed: 4})
	require.Equal(t, int64(299999/512), b.Sector)
	dir := t.TempDir()

	sectorPath := filepath.Join(dir, "last.bin")
	n, err := ExtractLastSector(context.Background(), img, b, sectorPath)
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)
	got, err := os.ReadFile(sectorPath)
	require.NoError(t, err)
	lo := b.Sector * 512
	assert.Equal(t, data[lo:lo+512], got)

	trimmedPath := filepath.Join(dir, "trimmed.img")
	n, err = ExtractTrimmed(context.Background(), img, b, trimmedPath)
	require.NoError(t, err)
	assert.Equal(t, (b.Sector+1)*512, n)
	got, err = os.ReadFile(trimmedPath)
	require.NoError(t, err)
	assert.Equal(t, data[:n], got)
}

func TestExtract_BoundaryPair(t *testing.T) {
	img, data, b := locatedImage(t, fixture.Spec{Size: 1 << 20, Pad: 0xFF, DataEnd: 4097, Seed: 8})
	require.Equal(t, int64(8), b.Sector)
	require.Equal(t, int64(9), b.FirstPadSector)

	path := filepath.Join(t.TempDir(), "pair.bin")
	n, err := ExtractBoundaryPair(context.Background(), img, b, path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data[4096:5120], got)
	for _, v := range got[512:] {
		require.Equal(t, byte(0xFF), v)
	}
}

func TestExtract_BoundaryPairAtEOF(t *testing.T) {
	img, data, b := locatedImage(t, fixture.Spec{Size: 8192, Pad: 0xFF, Marks: []fixture.Mark{{Offset: 8191, Value: 1}}})
	require.True(t, b.FirstPadIsEOF())

	path := filepath.Join(t.TempDir(), "pair.bin")
	n, err := ExtractBoundaryPair(context.Background(), img, b, path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data[7680:], got)
}

func TestExtract_RequiresRefinedBoundary(t *testing.T) {
	img, _ := buildImage(t, fixture.Spec{Size: 8192, Pad: 0xFF, DataEnd: 100})
	opts := locateOpts(t, models.StrategyDirect, pad.Erased)
	opts.Refine = false
	opts.Exact = false
	b, err := Locate(context.Background(), img, opts)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.bin")
	_, err = ExtractLastSector(context.Background(), img, b, path)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = ExtractTrimmed(context.Background(), img, nil, path)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NoFileExists(t, path)
}

func TestExtract_RefusesSourceImage(t *testing.T) {
	img, data, path := writeImage(t, fixture.Spec{Size: 8192, Pad: 0xFF, DataEnd: 1000, Seed: 3})
	b, err := Locate(context.Background(), img, locateOpts(t, models.StrategyPattern, pad.Erased))
	require.NoError(t, err)

	_, err = ExtractTrimmed(context.Background(), img, b, path)
	assert.ErrorIs(t, err, ErrConfiguration)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after, "source image untouched")
}

func TestExtract_CancelledLeavesNoFile(t *testing.T) {
	img, _, b := locatedImage(t, fixture.Spec{Size: 1 << 20, Pad: 0xFF, DataEnd: 900000, Seed: 6})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "trimmed.img")
	_, err := ExtractTrimmed(ctx, img, b, path)
	assert.True(t, IsCancelled(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no output and no temporary file left behind")
}
