package converter

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"imgpdf/internal/layout"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

// Compressor re-encodes an image under a preset. The returned raster carries its real,
// possibly downscaled, pixel dimensions.
type Compressor interface {
	Compress(ctx context.Context, img Image, p preset.Preset) (raster.Encoded, error)
}

// Loader prepares an image for embedding without re-encoding when the writer accepts
// the original bytes.
type Loader interface {
	Load(ctx context.Context, img Image) (raster.Encoded, error)
}

// DocumentWriter creates output documents.
type DocumentWriter interface {
	NewDocument(page layout.Dimensions, o layout.Orientation) (Document, error)
}

// Document is one output PDF under construction. It is used by a single run only.
type Document interface {
	AddPage(page layout.Dimensions) error
	PlaceRaster(name string, img raster.Encoded, rect layout.Rect) error
	PageCount() int
	Finalize() ([]byte, error)
}

// Renderer opens PDFs for rasterisation.
type Renderer interface {
	Open(pdf []byte) (RenderedDocument, error)
}

// RenderedDocument is an opened PDF. Pages are numbered from 1 and sizes are in points.
type RenderedDocument interface {
	PageCount() int
	PageSize(page int) (width, height float64, err error)
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// Codec is the default Compressor and Loader.
type Codec struct{}

// Compress decodes img, bounds it to the preset's maximum dimension, flattens
// transparency onto white and encodes a JPEG at the preset quality.
func (Codec) Compress(ctx context.Context, img Image, p preset.Preset) (raster.Encoded, error) {
	if err := ctx.Err(); err != nil {
		return raster.Encoded{}, err
	}
	decoded, err := raster.Decode(img.Data)
	if err != nil {
		return raster.Encoded{}, err
	}
	resized := raster.Resize(decoded, p.MaxDimension)
	return raster.Encode(raster.Flatten(resized, color.White), raster.JPEG, p.Quality)
}

// Load fully decodes img so a corrupt body fails here, then passes JPEG and embeddable
// PNG data through untouched. WebP and PNGs the writer cannot embed are transcoded to PNG.
func (Codec) Load(ctx context.Context, img Image) (raster.Encoded, error) {
	if err := ctx.Err(); err != nil {
		return raster.Encoded{}, err
	}
	decoded, err := raster.Decode(img.Data)
	if err != nil {
		return raster.Encoded{}, err
	}
	switch {
	case img.Format == raster.JPEG, img.Format == raster.PNG && raster.EmbeddablePNG(img.Data):
		return raster.Encoded{Data: img.Data, Format: img.Format, Width: img.Width, Height: img.Height}, nil
	}
	return raster.Encode(decoded, raster.PNG, 1)
}

type gofpdfWriter struct {
	w *pdfdoc.Writer
}

func (g gofpdfWriter) NewDocument(page layout.Dimensions, o layout.Orientation) (Document, error) {
	doc, err := g.w.NewDocument(page, o)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type fitzRenderer struct {
	r *pdfdoc.FitzRenderer
}

func (f fitzRenderer) Open(pdf []byte) (RenderedDocument, error) {
	doc, err := f.r.Open(pdf)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func lookupPreset(mode preset.Mode) (preset.Preset, error) {
	name, _ := mode.Preset()
	p, err := preset.Lookup(name)
	if err != nil {
		return preset.Preset{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return p, nil
}
