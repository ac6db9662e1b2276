package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoder

	"imgpdf/internal/preset"
)

// ErrEmptyMask is returned when an alpha mask has no pixels.
var ErrEmptyMask = errors.New("empty alpha mask")

// bufferPool reuses encode buffers across images.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Encoded is an opaque encoded raster plus the pixel dimensions it decodes to.
type Encoded struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// Size is the encoded payload length in bytes.
func (e Encoded) Size() int64 {
	return int64(len(e.Data))
}

// DecodeConfig reads the pixel dimensions and format without decoding the pixels.
func DecodeConfig(data []byte) (width, height int, format Format, err error) {
	format, err = Sniff(data)
	if err != nil {
		return 0, 0, "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("could not decode %s header: %w", format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, "", fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Decode decodes data, applying EXIF orientation. 16-bit images are converted to 8-bit
// NRGBA since neither the PDF writer nor the JPEG encoder take them.
func Decode(data []byte) (image.Image, error) {
	if _, err := Sniff(data); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	switch img.(type) {
	case *image.Gray16, *image.NRGBA64, *image.RGBA64:
		img = imaging.Clone(img)
	}
	return img, nil
}

// Resize bounds the longest edge by maxDim, keeping the aspect ratio. Images already
// within the bound are returned as-is.
func Resize(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := preset.FitWithin(b.Dx(), b.Dy(), maxDim)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Flatten composites img over a solid background, dropping transparency.
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1.0)
}

// ApplyAlphaMask returns a copy of img whose alpha channel is taken from mask. The mask
// is stretched to the image size when they differ; its luminance becomes the alpha.
func ApplyAlphaMask(img image.Image, mask image.Image) (*image.NRGBA, error) {
	ib, mb := img.Bounds(), mask.Bounds()
	if mb.Empty() {
		return nil, ErrEmptyMask
	}

	var m *image.NRGBA
	if mb.Dx() != ib.Dx() || mb.Dy() != ib.Dy() {
		m = imaging.Resize(mask, ib.Dx(), ib.Dy(), imaging.Linear)
	} else {
		m = imaging.Clone(mask)
	}
	// Grayscale sources come back from imaging with R=G=B=Y.
	dst := imaging.Clone(img)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		dst.Pix[i+3] = m.Pix[i]
	}
	return dst, nil
}

// Encode writes img in the given format. quality is a 0-1 fraction used by JPEG only.
func Encode(img image.Image, format Format, quality float64) (Encoded, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	var err error
	switch format {
	case JPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(preset.QualityPercent(quality)))
	case PNG:
		err = imaging.Encode(buf, img, imaging.PNG)
	default:
		return Encoded{}, fmt.Errorf("%w: cannot encode %q", ErrUnsupportedFormat, string(format))
	}
	if err != nil {
		return Encoded{}, fmt.Errorf("could not encode %s: %w", format, err)
	}

	b := img.Bounds()
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return Encoded{Data: data, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}
