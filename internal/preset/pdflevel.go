package preset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLevel is returned for PDF compression levels that do not exist.
var ErrUnknownLevel = errors.New("unknown pdf compression level")

// PDFLevel is how aggressively whole PDF pages are rasterised and re-encoded.
type PDFLevel struct {
	Name    string  `json:"name"`
	Quality float64 `json:"quality"`
	Scale   float64 `json:"scale"`
	Label   string  `json:"label"`
}

var pdfLevels = [...]PDFLevel{
	{Name: "balanced", Quality: 0.7, Scale: 1.5, Label: "Balanced - good quality, moderate reduction"},
	{Name: "aggressive", Quality: 0.4, Scale: 1.0, Label: "Aggressive - smaller file, lower quality"},
}

// DefaultPDFLevel is used when no level is requested.
const DefaultPDFLevel = "balanced"

// PDFLevels lists the available levels, mildest first.
func PDFLevels() []PDFLevel {
	out := make([]PDFLevel, len(pdfLevels))
	copy(out, pdfLevels[:])
	return out
}

// LookupPDFLevel finds a level by name. An empty name selects DefaultPDFLevel.
func LookupPDFLevel(name string) (PDFLevel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultPDFLevel
	}
	for _, l := range pdfLevels {
		if l.Name == name {
			return l, nil
		}
	}
	return PDFLevel{}, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}
