package pdfdoc

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// pointsPerInch is the PDF user-space resolution; rendering at scale 1 uses it as the DPI.
const pointsPerInch = 72.0

// FitzRenderer rasterises PDF pages with MuPDF.
type FitzRenderer struct{}

// NewFitzRenderer returns the default page renderer.
func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

// Open parses pdf. The returned document must be closed.
func (r *FitzRenderer) Open(pdf []byte) (*FitzDocument, error) {
	if !IsPDF(pdf) {
		return nil, ErrNotPDF
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &FitzDocument{doc: doc}, nil
}

// FitzDocument is an opened PDF. Pages are numbered from 1.
type FitzDocument struct {
	doc *fitz.Document
}

// PageCount returns the number of pages.
func (d *FitzDocument) PageCount() int {
	return d.doc.NumPage()
}

// PageSize returns the page's width and height in points.
func (d *FitzDocument) PageSize(page int) (width, height float64, err error) {
	if err := d.checkPage(page); err != nil {
		return 0, 0, err
	}
	b, err := d.doc.Bound(page - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bounds of page %d: %w", page, err)
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}

// Render rasterises a page at scale times its point size.
func (d *FitzDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid render scale %v", scale)
	}
	img, err := d.doc.ImageDPI(page-1, pointsPerInch*scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return img, nil
}

// Close releases the MuPDF document.
func (d *FitzDocument) Close() error {
	return d.doc.Close()
}

func (d *FitzDocument) checkPage(page int) error {
	if n := d.doc.NumPage(); page < 1 || page > n {
		return fmt.Errorf("page %d out of range 1-%d", page, n)
	}
	return nil
}
