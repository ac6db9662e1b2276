// Package pdfdoc holds the PDF backends: a gofpdf based writer for building image-only
// documents, a MuPDF (go-fitz) renderer for rasterising pages, and pdfcpu helpers for
// inspecting and optimising finished files.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jung-kurt/gofpdf"

	"imgpdf/internal/layout"
	"imgpdf/internal/raster"
)

// ErrFinalized is returned when a document is used after Finalize.
var ErrFinalized = errors.New("document already finalized")

// Writer creates gofpdf documents measured in millimetres.
type Writer struct{}

// NewWriter returns the default document writer.
func NewWriter() *Writer {
	return &Writer{}
}

// NewDocument starts an empty document whose default page is the given size. The
// orientation has already been applied to page; it is only logged.
func (w *Writer) NewDocument(page layout.Dimensions, o layout.Orientation) (*Document, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return nil, fmt.Errorf("invalid page size %.2fx%.2f mm", page.Width, page.Height)
	}
	slog.Debug("Creating PDF document", "width", page.Width, "height", page.Height, "orientation", o)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("imgpdf", true)
	if pdf.Err() {
		return nil, fmt.Errorf("could not create PDF: %w", pdf.Error())
	}
	return &Document{pdf: pdf}, nil
}

// Document is a single in-progress PDF. It is not safe for concurrent use.
type Document struct {
	pdf       *gofpdf.Fpdf
	images    int
	finalized bool
}

// AddPage appends a page of the given size in millimetres. The size is used as-is, so a
// landscape page is passed with Width > Height.
func (d *Document) AddPage(page layout.Dimensions) error {
	if d.finalized {
		return ErrFinalized
	}
	// "P" keeps gofpdf from swapping the dimensions we already oriented.
	d.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: page.Width, Ht: page.Height})
	if d.pdf.Err() {
		return fmt.Errorf("could not add page: %w", d.pdf.Error())
	}
	return nil
}

// PlaceRaster draws an encoded JPEG or PNG on the current page at rect (mm, top-left
// origin). Negative positions are allowed so fill placements can overflow the page.
func (d *Document) PlaceRaster(name string, img raster.Encoded, rect layout.Rect) error {
	if d.finalized {
		return ErrFinalized
	}
	if d.pdf.PageCount() == 0 {
		return errors.New("no page to place image on")
	}

	imageType, err := gofpdfImageType(img.Format)
	if err != nil {
		return err
	}

	d.images++
	// Names only need to be unique within this document; callers may reuse display names.
	imageName := fmt.Sprintf("img%d_%s", d.images, name)
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	d.pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(img.Data))
	if d.pdf.Err() {
		return fmt.Errorf("could not register image %s: %w", name, d.pdf.Error())
	}

	opts.AllowNegativePosition = true
	d.pdf.ImageOptions(imageName, rect.X, rect.Y, rect.Width, rect.Height, false, opts, 0, "")
	if d.pdf.Err() {
		return fmt.Errorf("could not place image %s: %w", name, d.pdf.Error())
	}
	slog.Debug("Placed image on page", "name", name, "page", d.pdf.PageCount(), "x", rect.X, "y", rect.Y, "width", rect.Width, "height", rect.Height)
	return nil
}

// PageCount is the number of pages added so far.
func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

// Finalize serialises the document. It may be called once.
func (d *Document) Finalize() ([]byte, error) {
	if d.finalized {
		return nil, ErrFinalized
	}
	d.finalized = true

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("could not write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func gofpdfImageType(f raster.Format) (string, error) {
	switch f {
	case raster.JPEG:
		return "JPG", nil
	case raster.PNG:
		return "PNG", nil
	default:
		return "", fmt.Errorf("%w: %q cannot be embedded", raster.ErrUnsupportedFormat, string(f))
	}
}
