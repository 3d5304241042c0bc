package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ff", cfg.Defaults.Pad)
	assert.Len(t, cfg.Profiles, 10)
}

func TestBuiltinProfiles(t *testing.T) {
	cfg := Default()

	p, ok := cfg.Profile("1g")
	require.True(t, ok)
	sizes, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), sizes.NominalSize)
	assert.Equal(t, []int64{512 << 20}, sizes.Candidates)

	p, ok = cfg.Profile("16g")
	require.True(t, ok)
	sizes, err = p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, int64(256<<10), sizes.BlockSize)
	assert.Equal(t, []int64{512 << 20, 1 << 30, 2 << 30, 4 << 30, 8 << 30}, sizes.Candidates)

	_, ok = cfg.Profile("3g")
	assert.False(t, ok)
}

func TestLoad_NoPath(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "", cfg.Path())
}

func TestLoad_MergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `
[defaults]
pad = "ff,00"
strategy = "pattern"
workers = 4

[[profiles]]
name = "8g"
nominal_size = "8GiB"
block_size = "4KiB"
sample_size = "1MiB"
tail_size = "64KiB"
candidates = ["1GiB", "2GiB"]

[[profiles]]
name = "tiny"
nominal_size = "1MiB"
block_size = "4KiB"
sample_size = "64KiB"
tail_size = "8KiB"
candidates = ["128KiB"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "ff,00", cfg.Defaults.Pad)
	assert.Equal(t, "pattern", cfg.Defaults.Strategy)
	assert.Equal(t, 4, cfg.Defaults.Workers)
	assert.Equal(t, "4MiB", cfg.Defaults.ChunkSize, "unset values keep built-in defaults")

	p, ok := cfg.Profile("8g")
	require.True(t, ok)
	assert.Equal(t, "4KiB", p.BlockSize)

	_, ok = cfg.Profile("tiny")
	assert.True(t, ok)
	assert.Len(t, cfg.Profiles, 11)
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("[defaults]\nhasher = \"sha256\"\n"), 0644))
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sha256", cfg.Defaults.Hasher)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[defaults\n"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	badSize := filepath.Join(dir, "size.toml")
	require.NoError(t, os.WriteFile(badSize, []byte("[defaults]\nchunk_size = \"lots\"\n"), 0644))
	_, err = Load(badSize)
	assert.Error(t, err)
}

func TestSave_RoundTripAndNoOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	cfg := Default()
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Defaults, loaded.Defaults)
	assert.Equal(t, cfg.Profiles, loaded.Profiles)

	assert.Error(t, cfg.Save(path), "existing file must not be overwritten")
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("64KiB")
	require.NoError(t, err)
	assert.Equal(t, int64(65536), n)

	n, err = ParseSize("512")
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)

	_, err = ParseSize("big")
	assert.Error(t, err)
}
