package preset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when parsing a conversion mode other than direct or optimized.
var ErrUnknownMode = errors.New("unknown conversion mode")

// Mode says whether images are embedded as-is or re-encoded through a preset.
// The zero value is Direct.
type Mode struct {
	optimized bool
	preset    Name
}

// Direct embeds images at their original encoding and resolution.
func Direct() Mode {
	return Mode{}
}

// Optimized re-encodes every image through the named preset.
func Optimized(name Name) Mode {
	return Mode{optimized: true, preset: name}
}

// IsOptimized reports whether images are re-encoded.
func (m Mode) IsOptimized() bool {
	return m.optimized
}

// Preset returns the preset name for optimized modes.
func (m Mode) Preset() (Name, bool) {
	return m.preset, m.optimized
}

func (m Mode) String() string {
	if !m.optimized {
		return "direct"
	}
	return "optimized:" + string(m.preset)
}

// ParseMode builds a Mode from its wire form. presetName is ignored for direct mode and
// defaults to Balanced for optimized mode when empty.
func ParseMode(mode, presetName string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "direct":
		return Direct(), nil
	case "optimized", "optimised", "":
		if strings.TrimSpace(presetName) == "" {
			return Optimized(Balanced), nil
		}
		name, err := Parse(presetName)
		if err != nil {
			return Mode{}, err
		}
		return Optimized(name), nil
	default:
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
