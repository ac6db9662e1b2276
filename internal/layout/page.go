package layout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownPageSize is returned when a page size name is not in the profile table.
	ErrUnknownPageSize = errors.New("unknown page size")
	// ErrUnknownOrientation is returned for orientations other than portrait and landscape.
	ErrUnknownOrientation = errors.New("unknown orientation")
	// ErrUnknownFitMode is returned when parsing a fit mode name that is not supported.
	ErrUnknownFitMode = errors.New("unknown fit mode")
)

// PageSize names a physical page profile.
type PageSize string

const (
	A4     PageSize = "a4"
	Letter PageSize = "letter"
)

// Dimensions is a width and height in millimeters.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape reports whether the page is wider than it is tall.
func (d Dimensions) Landscape() bool {
	return d.Width > d.Height
}

// Points returns the dimensions converted to PDF points.
func (d Dimensions) Points() (width, height float64) {
	return MmToPoints(d.Width), MmToPoints(d.Height)
}

var pageSizes = map[PageSize]Dimensions{
	A4:     {Width: 210, Height: 297},
	Letter: {Width: 215.9, Height: 279.4},
}

// PageSizes returns the supported page sizes in a stable order.
func PageSizes() []PageSize {
	return []PageSize{A4, Letter}
}

// Dimensions returns the portrait dimensions of the profile.
func (p PageSize) Dimensions() (Dimensions, error) {
	d, ok := pageSizes[p]
	if !ok {
		return Dimensions{}, fmt.Errorf("%w: %q", ErrUnknownPageSize, string(p))
	}
	return d, nil
}

// ParsePageSize accepts "a4" and "letter" in any case.
func ParsePageSize(s string) (PageSize, error) {
	p := PageSize(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := pageSizes[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPageSize, s)
	}
	return p, nil
}

// Orientation of the output pages.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ParseOrientation accepts "portrait" and "landscape" in any case.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case Portrait, Landscape:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrientation, s)
	}
}

// PageDimensions resolves a profile and orientation into the final page size.
// Landscape swaps the profile's width and height.
func PageDimensions(size PageSize, o Orientation) (Dimensions, error) {
	d, err := size.Dimensions()
	if err != nil {
		return Dimensions{}, err
	}
	switch o {
	case Portrait:
	case Landscape:
		d.Width, d.Height = d.Height, d.Width
	default:
		return Dimensions{}, fmt.Errorf("%w: %q", ErrUnknownOrientation, string(o))
	}
	return d, nil
}

// ContentArea is the page minus the margin on every side. It is not clamped: a margin of
// half the page or more yields a non-positive area.
func ContentArea(page Dimensions, marginMm float64) Dimensions {
	return Dimensions{
		Width:  page.Width - 2*marginMm,
		Height: page.Height - 2*marginMm,
	}
}
