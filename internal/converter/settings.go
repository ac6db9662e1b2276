package converter

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"imgpdf/internal/layout"
	"imgpdf/internal/preset"
)

// Settings control how images are laid out and encoded into a PDF.
type Settings struct {
	PageSize    layout.PageSize
	Orientation layout.Orientation
	FitMode     layout.FitMode
	MarginMm    float64
	Mode        preset.Mode
}

// NewDefaultSettings returns A4 portrait pages, images fitted inside a 10 mm margin and
// optimized with the balanced preset.
func NewDefaultSettings() Settings {
	return Settings{
		PageSize:    layout.A4,
		Orientation: layout.Portrait,
		FitMode:     layout.Fit,
		MarginMm:    10,
		Mode:        preset.Optimized(preset.Balanced),
	}
}

// Page resolves the page size and orientation into millimetre dimensions.
func (s Settings) Page() (layout.Dimensions, error) {
	return layout.PageDimensions(s.PageSize, s.Orientation)
}

// Validate rejects settings that cannot produce a layout, including margins that leave
// no content area.
func (s Settings) Validate() error {
	page, err := s.Page()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if _, err := layout.ParseFitMode(string(s.FitMode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if math.IsNaN(s.MarginMm) || math.IsInf(s.MarginMm, 0) {
		return fmt.Errorf("%w: margin %v is not a finite number", ErrInvalidSettings, s.MarginMm)
	}
	if s.MarginMm < 0 {
		return fmt.Errorf("%w: negative margin %v", ErrInvalidSettings, s.MarginMm)
	}
	if area := layout.ContentArea(page, s.MarginMm); area.Width <= 0 || area.Height <= 0 {
		return fmt.Errorf("%w: margin %v mm leaves no content area on a %.1fx%.1f mm page", ErrInvalidSettings, s.MarginMm, page.Width, page.Height)
	}
	if name, ok := s.Mode.Preset(); ok {
		if _, err := preset.Lookup(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
	}
	return nil
}

// RawSettings is the string form of Settings used by config files, flags and request
// bodies. Empty fields take the NewDefaultSettings value.
type RawSettings struct {
	PageSize       string   `yaml:"page_size" json:"pageSize"`
	Orientation    string   `yaml:"orientation" json:"orientation"`
	FitMode        string   `yaml:"fit_mode" json:"fitMode"`
	MarginMm       *float64 `yaml:"margin_mm" json:"marginMm"`
	ConversionMode string   `yaml:"conversion_mode" json:"conversionMode"`
	Preset         string   `yaml:"preset" json:"preset"`
}

// Resolve parses and validates the raw values.
func (r RawSettings) Resolve() (Settings, error) {
	s := NewDefaultSettings()
	var err error
	if r.PageSize != "" {
		if s.PageSize, err = layout.ParsePageSize(r.PageSize); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
	}
	if r.Orientation != "" {
		if s.Orientation, err = layout.ParseOrientation(r.Orientation); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
	}
	if r.FitMode != "" {
		if s.FitMode, err = layout.ParseFitMode(r.FitMode); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
	}
	if r.MarginMm != nil {
		s.MarginMm = *r.MarginMm
	}
	if s.Mode, err = preset.ParseMode(r.ConversionMode, r.Preset); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Merge returns r with every empty field filled from defaults.
func (r RawSettings) Merge(defaults RawSettings) RawSettings {
	if r.PageSize == "" {
		r.PageSize = defaults.PageSize
	}
	if r.Orientation == "" {
		r.Orientation = defaults.Orientation
	}
	if r.FitMode == "" {
		r.FitMode = defaults.FitMode
	}
	if r.MarginMm == nil {
		r.MarginMm = defaults.MarginMm
	}
	if r.ConversionMode == "" {
		r.ConversionMode = defaults.ConversionMode
		if r.Preset == "" {
			r.Preset = defaults.Preset
		}
	}
	return r
}

// DefaultOutputFilename names an images-to-PDF result by date, e.g. images-2024-03-01.pdf.
func DefaultOutputFilename(now time.Time) string {
	return fmt.Sprintf("images-%s.pdf", now.Format(time.DateOnly))
}

// Limits bound what a single run accepts. Zero fields are unlimited.
type Limits struct {
	MaxFileSize  int64 `yaml:"max_file_size" json:"maxFileSize"`
	MaxFiles     int   `yaml:"max_files" json:"maxFiles"`
	MaxTotalSize int64 `yaml:"max_total_size" json:"maxTotalSize"`
}

// DefaultLimits allows 20 files of up to 10 MB each and 100 MB in total.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  10 << 20,
		MaxFiles:     20,
		MaxTotalSize: 100 << 20,
	}
}

// Check verifies count, per-file and total sizes of images.
func (l Limits) Check(images []Image) error {
	if l.MaxFiles > 0 && len(images) > l.MaxFiles {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(images), l.MaxFiles)
	}
	var total int64
	for _, img := range images {
		if err := l.checkFile(img.Name, img.Size()); err != nil {
			return err
		}
		total += img.Size()
	}
	if l.MaxTotalSize > 0 && total > l.MaxTotalSize {
		return fmt.Errorf("%w: %d bytes > %d", ErrTotalTooLarge, total, l.MaxTotalSize)
	}
	return nil
}

func (l Limits) checkFile(name string, size int64) error {
	if l.MaxFileSize > 0 && size > l.MaxFileSize {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, l.MaxFileSize)
	}
	return nil
}

// DefaultWorkers is the number of concurrent source fetches used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}
