package config

import "fmt"

// Sizes is a profile with every size parsed to bytes.
type Sizes struct {
	Name        string
	NominalSize int64
	BlockSize   int64
	SampleSize  int64
	TailSize    int64
	Candidates  []int64
}

// Resolve parses the profile's size strings.
func (p *Profile) Resolve() (*Sizes, error) {
	s := &Sizes{Name: p.Name}
	fields := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"nominal_size", p.NominalSize, &s.NominalSize},
		{"block_size", p.BlockSize, &s.BlockSize},
		{"sample_size", p.SampleSize, &s.SampleSize},
		{"tail_size", p.TailSize, &s.TailSize},
	}
	for _, f := range fields {
		n, err := ParseSize(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = n
	}
	candidates, err := ParseSizes(p.Candidates)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	s.Candidates = candidates
	return s, nil
}

const (
	kib = int64(1) << 10
	mib = int64(1) << 20
	gib = int64(1) << 30
)

// builtinProfiles covers power-of-two card sizes from 1 GiB to 512 GiB.
// Candidates are every power-of-two capacity from 512 MiB to half the
// nominal size.
func builtinProfiles() []Profile {
	var profiles []Profile
	for n := int64(1); n <= 512; n *= 2 {
		nominal := n * gib

		var block, sample, tail int64
		switch {
		case n <= 1:
			block, sample, tail = 64*kib, 16*mib, 1*mib
		case n <= 4:
			block, sample, tail = 64*kib, 32*mib, 2*mib
		case n <= 16:
			block, sample, tail = 256*kib, 64*mib, 4*mib
		case n <= 64:
			block, sample, tail = 1*mib, 128*mib, 16*mib
		default:
			block, sample, tail = 1*mib, 256*mib, 32*mib
		}

		var candidates []string
		for c := 512 * mib; c <= nominal/2; c *= 2 {
			candidates = append(candidates, formatSize(c))
		}

		profiles = append(profiles, Profile{
			Name:        fmt.Sprintf("%dg", n),
			NominalSize: formatSize(nominal),
			BlockSize:   formatSize(block),
			SampleSize:  formatSize(sample),
			TailSize:    formatSize(tail),
			Candidates:  candidates,
		})
	}
	return profiles
}

// formatSize renders a power-of-two size exactly, e.g. "64KiB".
func formatSize(n int64) string {
	units := []struct {
		suffix string
		size   int64
	}{
		{"TiB", 1 << 40},
		{"GiB", gib},
		{"MiB", mib},
		{"KiB", kib},
	}
	for _, u := range units {
		if n >= u.size && n%u.size == 0 {
			return fmt.Sprintf("%d%s", n/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%d", n)
}
