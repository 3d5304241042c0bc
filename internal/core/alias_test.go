package core

import (
	"context"
	"testing"

	"github.com/didzislauva/sdcard-forensics/internal/fixture"
	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliasSize  = int64(4 << 20)
	aliasBlock = int64(4096)
	aliasTail  = int64(64 << 10)
)

func aliasGeometry(candidates ...int64) *models.Geometry {
	return &models.Geometry{
		ImageSize:   aliasSize,
		BlockSize:   aliasBlock,
		TotalBlocks: aliasSize / aliasBlock,
		SampleSize:  1 << 20,
		TailSize:    aliasTail,
		Candidates:  candidates,
	}
}

func aliasOptions(t *testing.T) AliasOptions {
	h, err := hasher.Select("auto")
	require.NoError(t, err)
	return AliasOptions{Hasher: h, Thresholds: DefaultThresholds(), Workers: 1}
}

func wrappedSpec(copies ...fixture.Copy) fixture.Spec {
	return fixture.Spec{Size: aliasSize, Pad: 0xFF, DataEnd: aliasSize, Seed: 99, Copies: copies}
}

func TestCompareAliases_FullWrapIsStrong(t *testing.T) {
	candidate := int64(1 << 20)
	img, _ := buildImage(t, wrappedSpec(fixture.WrapCopy(aliasSize, aliasTail, candidate)))
	geom := aliasGeometry(512<<10, candidate, 2<<20)

	report, err := CompareAliases(context.Background(), img, geom, aliasOptions(t))
	require.NoError(t, err)

	assert.Equal(t, 16, report.TailBlocks)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 0, report.Results[0].Hits)
	assert.Equal(t, 16, report.Results[1].Hits)
	assert.Equal(t, 16, report.Results[1].Total)
	assert.Equal(t, 0, report.Results[2].Hits)

	require.NotNil(t, report.Best)
	assert.Equal(t, candidate, report.Best.Candidate)
	assert.Equal(t, models.TierStrong, report.Tier)
	assert.NoError(t, report.Err())
}

func TestCompareAliases_SkipsInvalidWindows(t *testing.T) {
	img, _ := buildImage(t, wrappedSpec())
	geom := aliasGeometry(32<<10, 8<<20, 1<<20)

	report, err := CompareAliases(context.Background(), img, geom, aliasOptions(t))
	require.NoError(t, err)

	assert.True(t, report.Results[0].Skipped, "candidate smaller than the tail overlaps it")
	assert.Equal(t, "window overlaps tail", report.Results[0].SkipReason)
	assert.True(t, report.Results[1].Skipped, "candidate larger than the image")
	assert.Equal(t, "window starts before image", report.Results[1].SkipReason)
	assert.False(t, report.Results[2].Skipped)

	require.NotNil(t, report.Best)
	assert.Equal(t, int64(1<<20), report.Best.Candidate)
	assert.Equal(t, models.TierNone, report.Tier)
	assert.ErrorIs(t, report.Err(), ErrAmbiguousSignal)
}

func TestCompareAliases_TieGoesToFirstListed(t *testing.T) {
	img, _ := buildImage(t, wrappedSpec(
		fixture.WrapCopy(aliasSize, aliasTail, 1<<20),
		fixture.WrapCopy(aliasSize, aliasTail, 2<<20),
	))

	report, err := CompareAliases(context.Background(), img, aliasGeometry(2<<20, 1<<20), aliasOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 16, report.Results[0].Hits)
	assert.Equal(t, 16, report.Results[1].Hits)
	assert.Equal(t, int64(2<<20), report.Best.Candidate)
}

func TestCompareAliases_PartialWrapIsWeak(t *testing.T) {
	candidate := int64(1 << 20)
	tailStart := aliasSize - aliasTail
	img, _ := buildImage(t, wrappedSpec(fixture.Copy{
		Src:    tailStart,
		Dst:    tailStart - candidate,
		Length: 4 * aliasBlock,
	}))

	report, err := CompareAliases(context.Background(), img, aliasGeometry(candidate), aliasOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Best.Hits)
	assert.Equal(t, models.TierWeak, report.Tier)
	assert.ErrorIs(t, report.Err(), ErrAmbiguousSignal)
}

func TestCompareAliases_NoCandidates(t *testing.T) {
	img, _ := buildImage(t, wrappedSpec())

	report, err := CompareAliases(context.Background(), img, aliasGeometry(), aliasOptions(t))
	require.NoError(t, err)
	assert.Nil(t, report.Best)
	assert.Equal(t, models.TierNone, report.Tier)
	assert.ErrorIs(t, report.Err(), ErrAmbiguousSignal)
}

func TestCompareAliases_WorkersDoNotChangeResults(t *testing.T) {
	img, _ := buildImage(t, wrappedSpec(fixture.WrapCopy(aliasSize, aliasTail, 2<<20)))
	geom := aliasGeometry(256<<10, 512<<10, 1<<20, 2<<20, 3<<20)

	sequential, err := CompareAliases(context.Background(), img, geom, aliasOptions(t))
	require.NoError(t, err)

	opts := aliasOptions(t)
	opts.Workers = 4
	parallel, err := CompareAliases(context.Background(), img, geom, opts)
	require.NoError(t, err)

	assert.Equal(t, sequential.Results, parallel.Results)
	assert.Equal(t, sequential.Best.Candidate, parallel.Best.Candidate)

	again, err := CompareAliases(context.Background(), img, geom, aliasOptions(t))
	require.NoError(t, err)
	assert.Equal(t, sequential, again, "repeated runs give identical tables")
}

func TestCompareAliases_Errors(t *testing.T) {
	img, _ := buildImage(t, wrappedSpec())

	_, err := CompareAliases(context.Background(), img, aliasGeometry(1<<20), AliasOptions{})
	assert.ErrorIs(t, err, ErrConfiguration)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CompareAliases(ctx, img, aliasGeometry(1<<20), aliasOptions(t))
	assert.True(t, IsCancelled(err))
}
