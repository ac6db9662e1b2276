package bgremoval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"imgpdf/internal/raster"
)

// Result is a background-removed image.
type Result struct {
	ID           string
	Name         string
	Image        raster.Encoded // always PNG
	OriginalSize int64
}

// Filename is the suggested download name for the result.
func (r Result) Filename() string {
	return ResultFilename(r.Name)
}

// RemoveBackground downsizes data to the profile's limit, segments it and returns a PNG
// whose alpha channel is the mask.
func RemoveBackground(ctx context.Context, p *Pipeline, name string, data []byte, profile Profile) (Result, error) {
	img, err := raster.Decode(data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	img = raster.Resize(img, profile.MaxDimension)

	seg, err := p.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("could not load segmentation model: %w", err)
	}

	mask, err := seg.Segment(ctx, img)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	if mask == nil {
		return Result{}, fmt.Errorf("%s: %w", name, ErrNoMask)
	}

	cut, err := raster.ApplyAlphaMask(img, mask)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	enc, err := raster.Encode(cut, raster.PNG, 1)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}

	slog.Debug("Removed background", "filename", name, "profile", profile.Name, "width", enc.Width, "height", enc.Height, "size", enc.Size())
	return Result{ID: uuid.NewString(), Name: name, Image: enc, OriginalSize: int64(len(data))}, nil
}
