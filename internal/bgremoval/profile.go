// Package bgremoval removes image backgrounds with an externally supplied segmentation
// model. The model is loaded lazily through a Pipeline and applied as an alpha mask.
package bgremoval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProfile is returned for resolution profiles other than high, medium and low.
var ErrUnknownProfile = errors.New("unknown resolution profile")

// Profile caps the resolution an image is segmented at.
type Profile struct {
	Name         string `json:"name"`
	MaxDimension int    `json:"maxDimension"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Warning      string `json:"warning,omitempty"`
}

var profiles = [...]Profile{
	{
		Name:         "high",
		MaxDimension: 4096,
		Label:        "High",
		Description:  "Preserve original resolution (up to 4096px)",
		Warning:      "Processing may take significantly longer for large images.",
	},
	{Name: "medium", MaxDimension: 2048, Label: "Medium", Description: "Balanced resolution for web & documents"},
	{Name: "low", MaxDimension: 1024, Label: "Low", Description: "Small file size, faster processing"},
}

// DefaultProfile is used when no profile is requested.
const DefaultProfile = "medium"

// Profiles lists the resolution profiles, largest first.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles[:])
	return out
}

// LookupProfile finds a profile by name. An empty name selects DefaultProfile.
func LookupProfile(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultProfile
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// ResultFilename names a background-removed copy of source, e.g. cat-no-bg.png.
func ResultFilename(source string) string {
	base := source
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "image"
	}
	return base + "-no-bg.png"
}
