package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/didzislauva/sdcard-forensics/internal/fixture"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
	"github.com/stretchr/testify/require"
)

// buildImage renders a fixture into an in-memory image.
func buildImage(t *testing.T, spec fixture.Spec) (*image.Image, []byte) {
	t.Helper()
	data, err := fixture.Build(spec)
	require.NoError(t, err)
	return image.FromBytes(t.Name(), data), data
}

// writeImage renders a fixture to a file and opens it.
func writeImage(t *testing.T, spec fixture.Spec) (*image.Image, []byte, string) {
	t.Helper()
	data, err := fixture.Build(spec)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "card.img")
	require.NoError(t, os.WriteFile(path, data, 0644))
	img, err := image.Open(path, image.BackendFile)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img, data, path
}

// lastNonPad is the ground truth for a pad set.
func lastNonPad(data []byte, set pad.Set) int64 {
	for i := len(data) - 1; i >= 0; i-- {
		if !set.Contains(data[i]) {
			return int64(i)
		}
	}
	return -1
}

func matcherFor(t *testing.T, set pad.Set) pad.Matcher {
	t.Helper()
	m, err := pad.SelectMatcher("auto", set)
	require.NoError(t, err)
	return m
}
