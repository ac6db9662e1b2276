// Package layout holds the page geometry used when placing rasters on PDF pages.
//
// All placement math is done in millimeters with a top-left origin. Points are only
// produced at the boundary where a PDF writer needs them.
package layout

const (
	// PointsPerMm converts millimeters to PDF points (72 points per inch / 25.4 mm per inch).
	PointsPerMm = 2.83465

	// ReferenceDPI is the resolution assumed for images without usable DPI metadata.
	// It is fixed and never read from the source file.
	ReferenceDPI = 96.0

	// Tolerance is the slack, in millimeters, allowed when checking that a placement
	// stays on the page.
	Tolerance = 1e-6

	mmPerInch     = 25.4
	pointsPerInch = 72.0
)

// MmToPoints converts a length in millimeters to PDF points.
func MmToPoints(mm float64) float64 {
	return mm * PointsPerMm
}

// PixelsToMm converts a pixel length to millimeters at ReferenceDPI.
func PixelsToMm(px float64) float64 {
	return px * mmPerInch / ReferenceDPI
}

// PointsToMm converts a length in PDF points to millimeters.
func PointsToMm(pt float64) float64 {
	return pt * mmPerInch / pointsPerInch
}
