package converter

import (
	"context"
	"fmt"
	"image/color"

	"imgpdf/internal/estimate"
	"imgpdf/internal/layout"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

// CompressResult is a re-encoded PDF and its size change.
type CompressResult struct {
	Data           []byte
	OriginalSize   int64
	CompressedSize int64
	PageCount      int
}

// Savings is the whole-percent size reduction.
func (r CompressResult) Savings() int {
	return estimate.Savings(r.OriginalSize, r.CompressedSize)
}

// CompressedFilename names a compressed copy of source, e.g. report-compressed.pdf.
func CompressedFilename(source string) string {
	return baseName(source) + "-compressed.pdf"
}

// CompressPDF rasterises every page at level.Scale and rebuilds the document from JPEGs
// at level.Quality, keeping each page's original size as read by pdfcpu. Text and vector
// content become pixels. The result is then optimised; if that fails the unoptimised
// output is kept.
func (c *Converter) CompressPDF(ctx context.Context, pdf []byte, level preset.PDFLevel, reporter Reporter) (CompressResult, error) {
	reporter = orDiscard(reporter)
	if level.Scale <= 0 || level.Quality <= 0 || level.Quality > 1 {
		return CompressResult{}, fmt.Errorf("%w: pdf level %q", ErrInvalidSettings, level.Name)
	}

	src, err := c.renderer.Open(pdf)
	if err != nil {
		return CompressResult{}, err
	}
	defer src.Close()

	total := src.PageCount()
	if total == 0 {
		return CompressResult{}, fmt.Errorf("%w: document has no pages", ErrNoImages)
	}
	log := c.logger.With("pages", total, "level", level.Name)
	log.Info("Compressing PDF", "originalSize", len(pdf))

	// MuPDF reports page bounds in whole points; pdfcpu keeps the fractional media box.
	var sizes []layout.Dimensions
	if info, err := pdfdoc.Inspect(pdf); err != nil {
		log.Warn("Falling back to rounded page sizes", "error", err)
	} else if len(info.Pages) == total {
		sizes = info.Pages
	}

	fail := func(current int, err error) (CompressResult, error) {
		reporter.Step(Progress{Current: current, Total: total, Phase: PhaseError, Message: err.Error()})
		log.Error("PDF compression failed", "error", err)
		return CompressResult{}, err
	}

	var doc Document
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return fail(n-1, err)
		}
		reporter.Step(Progress{Current: n, Total: total, Phase: PhaseCompressing, Message: fmt.Sprintf("Compressing page %d...", n)})

		var page layout.Dimensions
		if sizes != nil {
			page = sizes[n-1]
		} else {
			wPt, hPt, err := src.PageSize(n)
			if err != nil {
				return fail(n, err)
			}
			page = layout.Dimensions{Width: layout.PointsToMm(wPt), Height: layout.PointsToMm(hPt)}
		}

		img, err := src.Render(ctx, n, level.Scale)
		if err != nil {
			return fail(n, fmt.Errorf("page %d: %w", n, err))
		}
		enc, err := raster.Encode(raster.Flatten(img, color.White), raster.JPEG, level.Quality)
		if err != nil {
			return fail(n, fmt.Errorf("page %d: %w", n, err))
		}

		if doc == nil {
			o := layout.Portrait
			if page.Landscape() {
				o = layout.Landscape
			}
			if doc, err = c.writer.NewDocument(page, o); err != nil {
				return fail(n, fmt.Errorf("could not create document: %w", err))
			}
		}
		if err := doc.AddPage(page); err != nil {
			return fail(n, fmt.Errorf("page %d: %w", n, err))
		}
		if err := doc.PlaceRaster(fmt.Sprintf("page%d", n), enc, layout.FullPage(page)); err != nil {
			return fail(n, fmt.Errorf("page %d: %w", n, err))
		}
	}

	data, err := doc.Finalize()
	if err != nil {
		return fail(total, fmt.Errorf("could not finalize document: %w", err))
	}
	if optimized, err := pdfdoc.Optimize(data); err != nil {
		log.Warn("Keeping unoptimized output", "error", err)
	} else if len(optimized) < len(data) {
		data = optimized
	}

	result := CompressResult{
		Data:           data,
		OriginalSize:   int64(len(pdf)),
		CompressedSize: int64(len(data)),
		PageCount:      total,
	}
	reporter.Step(Progress{Current: total, Total: total, Phase: PhaseComplete, Message: fmt.Sprintf("Compressed %s to %s", estimate.FormatFileSize(result.OriginalSize), estimate.FormatFileSize(result.CompressedSize))})
	log.Info("PDF compression completed", "compressedSize", result.CompressedSize, "savings", result.Savings())
	return result, nil
}
