// Package preset defines the static compression policies shared by the size estimator
// and the image compressor.
package preset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownPreset is returned when looking up a name that is not in the table.
var ErrUnknownPreset = errors.New("unknown compression preset")

// Name identifies a compression preset.
type Name string

const (
	High      Name = "high"
	Balanced  Name = "balanced"
	Small     Name = "small"
	VerySmall Name = "verySmall"
)

// Preset bounds the longest edge of an image and the lossy quality it is re-encoded at.
type Preset struct {
	Name         Name    `json:"name"`
	MaxDimension int     `json:"maxDimension"`
	Quality      float64 `json:"quality"`
	Label        string  `json:"label"`
	Description  string  `json:"description"`
	Warning      string  `json:"warning,omitempty"`
}

// Ordered from least to most aggressive.
var presets = [...]Preset{
	{
		Name:         High,
		MaxDimension: 2400,
		Quality:      0.85,
		Label:        "High quality",
		Description:  "Minimal compression, best for printing",
	},
	{
		Name:         Balanced,
		MaxDimension: 1920,
		Quality:      0.72,
		Label:        "Balanced",
		Description:  "Good quality with a much smaller file",
	},
	{
		Name:         Small,
		MaxDimension: 1280,
		Quality:      0.55,
		Label:        "Small",
		Description:  "Noticeable compression, fine for sharing",
	},
	{
		Name:         VerySmall,
		MaxDimension: 1024,
		Quality:      0.40,
		Label:        "Very small",
		Description:  "Maximum compression",
		Warning:      "Images may look blurry or blocky, especially photos with fine detail.",
	},
}

// All returns every preset, least aggressive first.
func All() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets[:])
	return out
}

// Lookup returns the preset with the given name.
func Lookup(name Name) (Preset, error) {
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, string(name))
}

// Parse resolves a preset name case-insensitively, so "verysmall" and "verySmall" match.
func Parse(s string) (Name, error) {
	s = strings.TrimSpace(s)
	for _, p := range presets {
		if strings.EqualFold(string(p.Name), s) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
}

// JPEGQuality maps the 0-1 quality fraction onto the encoder's 1-100 scale.
func (p Preset) JPEGQuality() int {
	return QualityPercent(p.Quality)
}

// TargetSize returns the pixel size after bounding the longest edge by MaxDimension.
// Images already within the bound are returned unchanged; nothing is upscaled.
func (p Preset) TargetSize(width, height int) (int, int) {
	return FitWithin(width, height, p.MaxDimension)
}

// FitWithin scales width x height uniformly so the longest edge is at most maxDim,
// rounding to whole pixels and never returning a zero edge.
func FitWithin(width, height, maxDim int) (int, int) {
	longest := max(width, height)
	if maxDim <= 0 || longest <= maxDim {
		return width, height
	}
	scale := float64(maxDim) / float64(longest)
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(w, 1), max(h, 1)
}

// QualityPercent converts a 0-1 quality fraction to an integer in [1, 100].
func QualityPercent(q float64) int {
	v := int(math.Round(q * 100))
	return min(max(v, 1), 100)
}
