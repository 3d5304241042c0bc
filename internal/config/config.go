// Package config manages sdscan configuration: scan defaults and the size
// profiles used to derive image geometry. Configuration lives in an
// optional TOML file; built-in values apply when no file is given.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

const (
	// EnvConfig names the environment variable holding a config path.
	EnvConfig = "SDSCAN_CONFIG"
	// DefaultFile is the file name written by "sdscan config init".
	DefaultFile = "sdscan.toml"
)

// Defaults holds scan tunables that are not tied to a size profile.
type Defaults struct {
	Pad              string  `toml:"pad"`
	Strategy         string  `toml:"strategy"`
	ChunkSize        string  `toml:"chunk_size"`
	Hasher           string  `toml:"hasher"`
	Matcher          string  `toml:"matcher"`
	Backend          string  `toml:"backend"`
	StrongFraction   float64 `toml:"strong_fraction"`
	IndexSpillBlocks int64   `toml:"index_spill_blocks"`
	Workers          int     `toml:"workers"`
}

// Profile is a named set of geometry tunables for a nominal device size.
// Sizes are human strings such as "64KiB" or "16GiB".
type Profile struct {
	Name        string   `toml:"name"`
	NominalSize string   `toml:"nominal_size"`
	BlockSize   string   `toml:"block_size"`
	SampleSize  string   `toml:"sample_size"`
	TailSize    string   `toml:"tail_size"`
	Candidates  []string `toml:"candidates"`
}

// Config represents the sdscan configuration
type Config struct {
	Defaults Defaults  `toml:"defaults"`
	Profiles []Profile `toml:"profiles"`
	path     string    // file the config was loaded from, if any
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			Pad:              "ff",
			Strategy:         "windowed",
			ChunkSize:        "4MiB",
			Hasher:           "auto",
			Matcher:          "auto",
			Backend:          "file",
			StrongFraction:   0.5,
			IndexSpillBlocks: 1 << 20,
			Workers:          1,
		},
		Profiles: builtinProfiles(),
	}
}

// Load reads the configuration at path, falling back to $SDSCAN_CONFIG.
// With neither set the built-in configuration is returned. Values in the
// file override built-ins; profiles are merged by name.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.merge(&file)
	cfg.path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(file *Config) {
	d := &c.Defaults
	f := file.Defaults
	if f.Pad != "" {
		d.Pad = f.Pad
	}
	if f.Strategy != "" {
		d.Strategy = f.Strategy
	}
	if f.ChunkSize != "" {
		d.ChunkSize = f.ChunkSize
	}
	if f.Hasher != "" {
		d.Hasher = f.Hasher
	}
	if f.Matcher != "" {
		d.Matcher = f.Matcher
	}
	if f.Backend != "" {
		d.Backend = f.Backend
	}
	if f.StrongFraction != 0 {
		d.StrongFraction = f.StrongFraction
	}
	if f.IndexSpillBlocks != 0 {
		d.IndexSpillBlocks = f.IndexSpillBlocks
	}
	if f.Workers != 0 {
		d.Workers = f.Workers
	}

	for _, p := range file.Profiles {
		replaced := false
		for i := range c.Profiles {
			if c.Profiles[i].Name == p.Name {
				c.Profiles[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			c.Profiles = append(c.Profiles, p)
		}
	}
}

// Validate checks that every size string parses and fractions are sane.
func (c *Config) Validate() error {
	if _, err := ParseSize(c.Defaults.ChunkSize); err != nil {
		return fmt.Errorf("defaults.chunk_size: %w", err)
	}
	if c.Defaults.StrongFraction <= 0 || c.Defaults.StrongFraction > 1 {
		return fmt.Errorf("defaults.strong_fraction must be in (0, 1], got %v", c.Defaults.StrongFraction)
	}
	if c.Defaults.Workers < 1 {
		return fmt.Errorf("defaults.workers must be at least 1, got %d", c.Defaults.Workers)
	}
	for _, p := range c.Profiles {
		if p.Name == "" {
			return errors.New("profile without a name")
		}
		if _, err := p.Resolve(); err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	return nil
}

// Path returns the file the configuration was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

// Profile looks up a profile by name.
func (c *Config) Profile(name string) (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// Save writes the configuration to path. An existing file is never
// overwritten.
func (c *Config) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	c.path = path
	return nil
}

// ParseSize parses a human size string ("4MiB", "512", "16GB") into bytes.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(n), nil
}

// ParseSizes parses a list of size strings.
func ParseSizes(list []string) ([]int64, error) {
	out := make([]int64, 0, len(list))
	for _, s := range list {
		n, err := ParseSize(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
