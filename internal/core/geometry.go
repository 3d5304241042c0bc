package core

import (
	"fmt"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/didzislauva/sdcard-forensics/internal/models"
)

// GeometryRequest carries explicit overrides. Zero values (nil for
// Candidates) are filled from the selected profile.
type GeometryRequest struct {
	Profile    string
	BlockSize  int64
	SampleSize int64
	TailSize   int64
	Candidates []int64
}

func (r GeometryRequest) complete() bool {
	return r.BlockSize != 0 && r.SampleSize != 0 && r.TailSize != 0 && r.Candidates != nil
}

// ResolveGeometry derives the tunables for an image of the given size.
// Explicit overrides win over profile values. With no profile named, the
// profile whose nominal size is closest to the image size is used; ties go
// to the first listed.
func ResolveGeometry(size int64, profiles []config.Profile, req GeometryRequest) (*models.Geometry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrConfiguration)
	}

	var base *config.Sizes
	switch {
	case req.Profile != "":
		for i := range profiles {
			if profiles[i].Name == req.Profile {
				s, err := profiles[i].Resolve()
				if err != nil {
					return nil, fmt.Errorf("%w: profile %s: %v", ErrConfiguration, req.Profile, err)
				}
				base = s
				break
			}
		}
		if base == nil {
			return nil, fmt.Errorf("%w: unknown profile %q", ErrConfiguration, req.Profile)
		}
	case !req.complete():
		s, err := nearestProfile(size, profiles)
		if err != nil {
			return nil, err
		}
		base = s
	}

	g := &models.Geometry{ImageSize: size}
	if base != nil {
		g.Profile = base.Name
		g.BlockSize = base.BlockSize
		g.SampleSize = base.SampleSize
		g.TailSize = base.TailSize
		g.Candidates = base.Candidates
	}
	if req.BlockSize != 0 {
		g.BlockSize = req.BlockSize
	}
	if req.SampleSize != 0 {
		g.SampleSize = req.SampleSize
	}
	if req.TailSize != 0 {
		g.TailSize = req.TailSize
	}
	if req.Candidates != nil {
		g.Candidates = req.Candidates
	}
	g.Candidates = append([]int64(nil), g.Candidates...)

	if g.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: block size must be positive, got %d", ErrConfiguration, g.BlockSize)
	}
	if g.SampleSize <= 0 {
		return nil, fmt.Errorf("%w: sample size must be positive, got %d", ErrConfiguration, g.SampleSize)
	}
	if g.TailSize <= 0 {
		return nil, fmt.Errorf("%w: tail size must be positive, got %d", ErrConfiguration, g.TailSize)
	}
	for _, c := range g.Candidates {
		if c <= 0 {
			return nil, fmt.Errorf("%w: candidate offset must be positive, got %d", ErrConfiguration, c)
		}
	}

	g.SampleSize = min(g.SampleSize, size)
	g.TailSize = min(g.TailSize, size)
	g.TotalBlocks = (size + g.BlockSize - 1) / g.BlockSize
	return g, nil
}

func nearestProfile(size int64, profiles []config.Profile) (*config.Sizes, error) {
	var best *config.Sizes
	var bestDist int64
	for i := range profiles {
		s, err := profiles[i].Resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: profile %s: %v", ErrConfiguration, profiles[i].Name, err)
		}
		dist := s.NominalSize - size
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestDist = s, dist
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no size profiles available and geometry not fully specified", ErrConfiguration)
	}
	return best, nil
}
