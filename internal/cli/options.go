package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/didzislauva/sdcard-forensics/internal/config"
	"github.com/didzislauva/sdcard-forensics/internal/core"
	"github.com/didzislauva/sdcard-forensics/internal/image"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
)

// sizeFlag parses an optional human size flag. Empty means unset.
func sizeFlag(name, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := config.ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("%w: --%s: %v", core.ErrConfiguration, name, err)
	}
	return n, nil
}

// candidatesFlag parses --candidates. A nil result leaves the profile's
// list in place.
func candidatesFlag(values []string) ([]int64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out, err := config.ParseSizes(values)
	if err != nil {
		return nil, fmt.Errorf("%w: --candidates: %v", core.ErrConfiguration, err)
	}
	return out, nil
}

// orDefault returns value unless it is empty.
func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// resolvePad parses a pad spec. "auto" inspects the final block of the
// image. The returned label says how the set was chosen.
func resolvePad(img *image.Image, spec string, blockSize int64) (pad.Set, string, error) {
	if spec != "auto" {
		set, err := pad.Parse(spec)
		if err != nil {
			return pad.Set{}, "", fmt.Errorf("%w: %v", core.ErrConfiguration, err)
		}
		return set, "configured", nil
	}
	n := min(blockSize, img.Size())
	tail, err := img.Read(img.Size()-n, n)
	if err != nil {
		return pad.Set{}, "", err
	}
	return pad.Detect(tail), "auto-detected", nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
