package layout

import (
	"fmt"
	"math"
	"strings"
)

// FitMode controls how an image's aspect ratio maps into the content area.
type FitMode string

const (
	// Fit scales the image to lie entirely inside the content area.
	Fit FitMode = "fit"
	// Fill scales the image to cover the content area; the overflow is cropped by the page.
	Fill FitMode = "fill"
	// Original keeps the 96 DPI physical size, shrinking only when it does not fit.
	Original FitMode = "original"
)

// ParseFitMode accepts "fit", "fill" and "original" in any case.
func ParseFitMode(s string) (FitMode, error) {
	switch m := FitMode(strings.ToLower(strings.TrimSpace(s))); m {
	case Fit, Fill, Original:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFitMode, s)
	}
}

// Rect is a placement rectangle in millimeters relative to the page's top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Within reports whether r lies inside the page, allowing tol millimeters of slack.
func (r Rect) Within(page Dimensions, tol float64) bool {
	return r.X >= -tol && r.Y >= -tol &&
		r.X+r.Width <= page.Width+tol &&
		r.Y+r.Height <= page.Height+tol
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Place computes where an image of imgWidthPx x imgHeightPx pixels goes on the page.
//
// Aspect ratios are compared with a strict greater-than, so an image with exactly the
// content area's aspect ratio is bound by height in both Fit and Fill. Any mode other
// than the three known ones fills the content area exactly. Place does not guard
// against a non-positive content area.
func Place(imgWidthPx, imgHeightPx int, page Dimensions, marginMm float64, mode FitMode) Rect {
	area := ContentArea(page, marginMm)
	imgW, imgH := float64(imgWidthPx), float64(imgHeightPx)

	imgAspect := imgW / imgH
	areaAspect := area.Width / area.Height

	var width, height float64
	switch mode {
	case Fit:
		if imgAspect > areaAspect {
			width = area.Width
			height = width / imgAspect
		} else {
			height = area.Height
			width = height * imgAspect
		}
	case Fill:
		if imgAspect > areaAspect {
			height = area.Height
			width = height * imgAspect
		} else {
			width = area.Width
			height = width / imgAspect
		}
	case Original:
		width = PixelsToMm(imgW)
		height = PixelsToMm(imgH)
		if width > area.Width || height > area.Height {
			scale := math.Min(area.Width/width, area.Height/height)
			width *= scale
			height *= scale
		}
	default:
		return Rect{X: marginMm, Y: marginMm, Width: area.Width, Height: area.Height}
	}

	return Rect{
		X:      marginMm + (area.Width-width)/2,
		Y:      marginMm + (area.Height-height)/2,
		Width:  width,
		Height: height,
	}
}

// FullPage places a raster over the whole page with no margin.
func FullPage(page Dimensions) Rect {
	return Rect{Width: page.Width, Height: page.Height}
}
