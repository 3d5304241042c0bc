package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/didzislauva/sdcard-forensics/internal/fixture"
	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dupGeometry(size int64) *models.Geometry {
	return &models.Geometry{
		ImageSize:   size,
		BlockSize:   4096,
		TotalBlocks: (size + 4095) / 4096,
		SampleSize:  size,
		TailSize:    4096,
	}
}

func dupOptions(t *testing.T) DuplicateOptions {
	h, err := hasher.Select("auto")
	require.NoError(t, err)
	return DuplicateOptions{Hasher: h, Pad: pad.Erased}
}

func TestFindDuplicates_TwoIdenticalBlocks(t *testing.T) {
	size := int64(64 << 10)
	img, _ := buildImage(t, fixture.Spec{
		Size:    size,
		Pad:     0xFF,
		DataEnd: size,
		Seed:    11,
		Copies:  []fixture.Copy{{Src: 2 * 4096, Dst: 7 * 4096, Length: 4096}},
	})

	report, err := FindDuplicates(context.Background(), img, dupGeometry(size), dupOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 16, report.Blocks)
	assert.False(t, report.Spilled)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, []int64{2, 7}, report.Groups[0].Indices)
	assert.False(t, report.Groups[0].PadOnly)
	assert.Equal(t, hasher.BLAKE3, report.Hasher)
}

func TestFindDuplicates_SpilledIndexMatchesMemory(t *testing.T) {
	size := int64(128 << 10)
	img, _ := buildImage(t, fixture.Spec{
		Size:    size,
		Pad:     0xFF,
		DataEnd: 96 << 10,
		Seed:    5,
		Copies: []fixture.Copy{
			{Src: 0, Dst: 10 * 4096, Length: 4096},
			{Src: 3 * 4096, Dst: 5 * 4096, Length: 4096},
		},
	})
	geom := dupGeometry(size)

	mem, err := FindDuplicates(context.Background(), img, geom, dupOptions(t))
	require.NoError(t, err)

	dir := t.TempDir()
	opts := dupOptions(t)
	opts.IndexDir = dir
	disk, err := FindDuplicates(context.Background(), img, geom, opts)
	require.NoError(t, err)
	assert.True(t, disk.Spilled)

	opts = dupOptions(t)
	opts.SpillBlocks = 4
	spilled, err := FindDuplicates(context.Background(), img, geom, opts)
	require.NoError(t, err)
	assert.True(t, spilled.Spilled)

	assert.Equal(t, mem.Groups, disk.Groups)
	assert.Equal(t, mem.Groups, spilled.Groups)

	require.Len(t, mem.Groups, 3)
	assert.Equal(t, []int64{0, 10}, mem.Groups[0].Indices)
	assert.Equal(t, []int64{3, 5}, mem.Groups[1].Indices)
	assert.Equal(t, []int64{24, 25, 26, 27, 28, 29, 30, 31}, mem.Groups[2].Indices)
	assert.True(t, mem.Groups[2].PadOnly, "erased tail blocks are reported as pad-only duplicates")
	assert.Equal(t, 1, mem.PadOnlyGroups())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "on-disk index is removed after the scan")
}

func TestFindDuplicates_NoHasher(t *testing.T) {
	img, _ := buildImage(t, fixture.Spec{Size: 4096})
	_, err := FindDuplicates(context.Background(), img, dupGeometry(4096), DuplicateOptions{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDumpDuplicates(t *testing.T) {
	size := int64(64 << 10)
	img, data := buildImage(t, fixture.Spec{
		Size:    size,
		Pad:     0xFF,
		DataEnd: size,
		Seed:    2,
		Copies: []fixture.Copy{
			{Src: 1 * 4096, Dst: 9 * 4096, Length: 4096},
			{Src: 4 * 4096, Dst: 12 * 4096, Length: 4096},
		},
	})
	geom := dupGeometry(size)
	report, err := FindDuplicates(context.Background(), img, geom, dupOptions(t))
	require.NoError(t, err)
	require.Len(t, report.Groups, 2)

	out := filepath.Join(t.TempDir(), "dups.bin")
	n, err := DumpDuplicates(context.Background(), img, geom, report.Groups, out)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), n)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	want := append(append([]byte(nil), data[4096:8192]...), data[16384:20480]...)
	assert.Equal(t, want, got)
}
