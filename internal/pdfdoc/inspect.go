package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"imgpdf/internal/layout"
)

// ErrNotPDF is returned when data does not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

var pdfMagic = []byte("%PDF-")

func init() {
	// pdfcpu otherwise writes a config directory under the user's home on first use.
	api.DisableConfigDir()
}

// IsPDF reports whether data carries the PDF file signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Info summarises a PDF.
type Info struct {
	PageCount int                 `json:"pageCount"`
	Pages     []layout.Dimensions `json:"pages"` // millimetres
	Size      int64               `json:"size"`
}

// Inspect reads the page count and per-page dimensions.
func Inspect(pdf []byte) (Info, error) {
	if !IsPDF(pdf) {
		return Info{}, ErrNotPDF
	}
	conf := configuration()
	n, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return Info{}, fmt.Errorf("failed to count pages: %w", err)
	}
	dims, err := api.PageDims(bytes.NewReader(pdf), conf)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	info := Info{PageCount: n, Size: int64(len(pdf)), Pages: make([]layout.Dimensions, 0, len(dims))}
	for _, d := range dims {
		info.Pages = append(info.Pages, layout.Dimensions{
			Width:  layout.PointsToMm(d.Width),
			Height: layout.PointsToMm(d.Height),
		})
	}
	return info, nil
}

// Validate checks pdf against the PDF specification in relaxed mode.
func Validate(pdf []byte) error {
	if !IsPDF(pdf) {
		return ErrNotPDF
	}
	if err := api.Validate(bytes.NewReader(pdf), configuration()); err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	return nil
}

// Optimize rewrites pdf with duplicate resources merged and unused objects dropped.
func Optimize(pdf []byte) ([]byte, error) {
	if !IsPDF(pdf) {
		return nil, ErrNotPDF
	}
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(pdf), &out, configuration()); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return out.Bytes(), nil
}
