// Package estimate predicts the size of a generated PDF from image byte sizes alone.
//
// Nothing here decodes image data; the estimate is a closed form over byte counts and
// page count so it can be recomputed on every settings change.
package estimate

import (
	"fmt"
	"math"

	"imgpdf/internal/preset"
)

const (
	documentOverhead = 50 * 1024
	pageOverhead     = 2 * 1024
)

// Empirical output/input ratios per preset. Kept as-is for output parity.
var compressionRatios = map[preset.Name]float64{
	preset.High:      0.75,
	preset.Balanced:  0.50,
	preset.Small:     0.35,
	preset.VerySmall: 0.20,
}

// Ratio returns the expected output/input ratio for a preset, or 1 for unknown names.
func Ratio(name preset.Name) float64 {
	if r, ok := compressionRatios[name]; ok {
		return r
	}
	return 1
}

// OutputSize predicts the PDF size in bytes for images with the given byte sizes.
// An empty list is exactly 0; no document overhead is added.
func OutputSize(sizes []int64, mode preset.Mode) int64 {
	if len(sizes) == 0 {
		return 0
	}

	var total float64
	for _, s := range sizes {
		total += float64(s)
	}
	if name, ok := mode.Preset(); ok {
		total *= Ratio(name)
	}

	overhead := float64(documentOverhead + len(sizes)*pageOverhead)
	return int64(math.Round(total + overhead))
}

// Savings is the whole-percent reduction of estimated relative to original.
// It is 0 when original is not positive or nothing is saved.
func Savings(original, estimated int64) int {
	if original <= 0 {
		return 0
	}
	pct := int(math.Round((1 - float64(estimated)/float64(original)) * 100))
	return max(pct, 0)
}

var units = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with a 1024 base and one decimal, e.g. "3.6 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v, i := float64(bytes), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
