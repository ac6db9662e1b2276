// Package converter drives conversions between images and PDF documents: laying out
// images one per page, rasterising PDF pages back to images, and re-encoding PDFs to
// shrink them. Encoding, PDF writing and PDF rendering are injected capabilities with
// defaults backed by imaging, gofpdf and MuPDF.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"imgpdf/internal/estimate"
	"imgpdf/internal/layout"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

// Converter runs conversions. It holds only capability references, so one Converter
// may serve several independent runs at once; each run owns its own Document.
type Converter struct {
	compressor Compressor
	loader     Loader
	writer     DocumentWriter
	renderer   Renderer
	logger     *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithCompressor replaces the image compressor used in optimized mode.
func WithCompressor(c Compressor) Option {
	return func(conv *Converter) { conv.compressor = c }
}

// WithLoader replaces the image loader used in direct mode.
func WithLoader(l Loader) Option {
	return func(conv *Converter) { conv.loader = l }
}

// WithWriter replaces the PDF writer.
func WithWriter(w DocumentWriter) Option {
	return func(conv *Converter) { conv.writer = w }
}

// WithRenderer replaces the PDF page renderer.
func WithRenderer(r Renderer) Option {
	return func(conv *Converter) { conv.renderer = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(conv *Converter) { conv.logger = l }
}

// New returns a Converter with the default capabilities, overridden by opts.
func New(opts ...Option) *Converter {
	c := &Converter{
		compressor: Codec{},
		loader:     Codec{},
		writer:     gofpdfWriter{w: pdfdoc.NewWriter()},
		renderer:   fitzRenderer{r: pdfdoc.NewFitzRenderer()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// EstimateOutputSize predicts the PDF size for images under mode without decoding them.
func EstimateOutputSize(images []Image, mode preset.Mode) int64 {
	sizes := make([]int64, len(images))
	for i, img := range images {
		sizes[i] = img.Size()
	}
	return estimate.OutputSize(sizes, mode)
}

// ImagesToPDF lays out images one per page, in input order, and returns the finished
// document. In optimized mode every image is compressed first; in direct mode images
// are embedded in their original encoding where possible. Any failure aborts the run
// with an *ImageError and no document.
func (c *Converter) ImagesToPDF(ctx context.Context, images []Image, settings Settings, reporter Reporter) ([]byte, error) {
	reporter = orDiscard(reporter)
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	page, err := settings.Page()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	total := len(images)
	log := c.logger.With("images", total, "mode", settings.Mode.String())
	log.Info("Starting PDF conversion", "pageSize", settings.PageSize, "orientation", settings.Orientation, "fitMode", settings.FitMode, "marginMm", settings.MarginMm)

	fail := func(current int, err error) ([]byte, error) {
		msg := err.Error()
		var imgErr *ImageError
		if errors.As(err, &imgErr) {
			msg = fmt.Sprintf("Failed to process image: %s", imgErr.Name)
		}
		reporter.Step(Progress{Current: current, Total: total, Phase: PhaseError, Message: msg})
		log.Error("PDF conversion failed", "error", err)
		return nil, err
	}
	imageErr := func(phase Phase, i int, err error) *ImageError {
		return &ImageError{Phase: phase, Index: i, ImageID: images[i].ID, Name: images[i].Name, Err: err}
	}

	rasters := make([]raster.Encoded, total)
	if name, optimized := settings.Mode.Preset(); optimized {
		p, err := lookupPreset(settings.Mode)
		if err != nil {
			return fail(0, err)
		}
		for i, img := range images {
			if err := ctx.Err(); err != nil {
				return fail(i, err)
			}
			reporter.Step(Progress{Current: i + 1, Total: total, Phase: PhaseCompressing, Message: fmt.Sprintf("Compressing %s...", img.Name)})
			enc, err := c.compressor.Compress(ctx, img, p)
			if err != nil {
				return fail(i+1, imageErr(PhaseCompressing, i, err))
			}
			log.Debug("Compressed image", "filename", img.Name, "preset", name, "originalSize", img.Size(), "compressedSize", enc.Size(), "width", enc.Width, "height", enc.Height)
			rasters[i] = enc
		}
	} else {
		for i, img := range images {
			if err := ctx.Err(); err != nil {
				return fail(i, err)
			}
			reporter.Step(Progress{Current: i + 1, Total: total, Phase: PhaseLoading, Message: fmt.Sprintf("Loading %s...", img.Name)})
			enc, err := c.loader.Load(ctx, img)
			if err != nil {
				return fail(i+1, imageErr(PhaseLoading, i, err))
			}
			rasters[i] = enc
		}
	}

	doc, err := c.writer.NewDocument(page, settings.Orientation)
	if err != nil {
		return fail(0, fmt.Errorf("could not create document: %w", err))
	}

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return fail(i, err)
		}
		reporter.Step(Progress{Current: i + 1, Total: total, Phase: PhaseProcessing, Message: fmt.Sprintf("Processing %s...", img.Name)})

		enc := rasters[i]
		rect := layout.Place(enc.Width, enc.Height, page, settings.MarginMm, settings.FitMode)
		if err := doc.AddPage(page); err != nil {
			return fail(i+1, imageErr(PhaseProcessing, i, err))
		}
		if err := doc.PlaceRaster(img.Name, enc, rect); err != nil {
			return fail(i+1, imageErr(PhaseProcessing, i, err))
		}
		// The page holds its own copy now.
		rasters[i] = raster.Encoded{}
	}

	data, err := doc.Finalize()
	if err != nil {
		return fail(total, fmt.Errorf("could not finalize document: %w", err))
	}

	reporter.Step(Progress{Current: total, Total: total, Phase: PhaseComplete, Message: "PDF generated successfully!"})
	log.Info("PDF conversion completed", "pages", doc.PageCount(), "size", len(data), "size_human", estimate.FormatFileSize(int64(len(data))))
	return data, nil
}
