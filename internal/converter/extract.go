package converter

import (
	"context"
	"fmt"
	"math"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"imgpdf/internal/raster"
)

// ExtractSettings control PDF page rasterisation.
type ExtractSettings struct {
	Format  raster.Format `json:"format"`
	Quality float64       `json:"quality"` // 0.1-1, JPEG only
	Scale   float64       `json:"scale"`   // 1-3, multiples of the page's point size
}

// NewDefaultExtractSettings returns PNG pages at twice the page's point size.
func NewDefaultExtractSettings() ExtractSettings {
	return ExtractSettings{Format: raster.PNG, Quality: 0.92, Scale: 2}
}

// Validate checks the format is writable and quality and scale are in range.
func (s ExtractSettings) Validate() error {
	if _, err := raster.ParseOutputFormat(string(s.Format)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if math.IsNaN(s.Quality) || s.Quality < 0.1 || s.Quality > 1 {
		return fmt.Errorf("%w: quality %v outside 0.1-1", ErrInvalidSettings, s.Quality)
	}
	if math.IsNaN(s.Scale) || s.Scale < 1 || s.Scale > 3 {
		return fmt.Errorf("%w: scale %v outside 1-3", ErrInvalidSettings, s.Scale)
	}
	return nil
}

// ExtractedPage is one rendered PDF page.
type ExtractedPage struct {
	ID         string
	PageNumber int
	Image      raster.Encoded
}

// Filename names the page after the source document, e.g. report-page-3.png.
func (p ExtractedPage) Filename(source string) string {
	return fmt.Sprintf("%s-page-%d.%s", baseName(source), p.PageNumber, p.Image.Format.Extension())
}

// PagesArchiveFilename names an archive of all pages of source, e.g. report-pages.zip.
func PagesArchiveFilename(source string) string {
	return baseName(source) + "-pages.zip"
}

// PDFToImages renders every page of pdf in order. Progress is reported in the
// processing phase before each page.
func (c *Converter) PDFToImages(ctx context.Context, pdf []byte, settings ExtractSettings, reporter Reporter) ([]ExtractedPage, error) {
	reporter = orDiscard(reporter)
	if settings.Format == "" {
		settings.Format = raster.PNG
	}
	format, err := raster.ParseOutputFormat(string(settings.Format))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	settings.Format = format
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	doc, err := c.renderer.Open(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	c.logger.Info("Extracting PDF pages", "pages", total, "format", format, "scale", settings.Scale)

	pages := make([]ExtractedPage, 0, total)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			reporter.Step(Progress{Current: n - 1, Total: total, Phase: PhaseError, Message: err.Error()})
			return nil, err
		}
		reporter.Step(Progress{Current: n, Total: total, Phase: PhaseProcessing, Message: fmt.Sprintf("Rendering page %d...", n)})

		img, err := doc.Render(ctx, n, settings.Scale)
		if err != nil {
			reporter.Step(Progress{Current: n, Total: total, Phase: PhaseError, Message: err.Error()})
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if format == raster.JPEG {
			img = raster.Flatten(img, color.White)
		}
		enc, err := raster.Encode(img, format, settings.Quality)
		if err != nil {
			reporter.Step(Progress{Current: n, Total: total, Phase: PhaseError, Message: err.Error()})
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, ExtractedPage{ID: uuid.NewString(), PageNumber: n, Image: enc})
	}

	reporter.Step(Progress{Current: total, Total: total, Phase: PhaseComplete, Message: fmt.Sprintf("Extracted %d pages", total)})
	return pages, nil
}

func baseName(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "document"
	}
	return base
}
