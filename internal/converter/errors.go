package converter

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImages is returned when a conversion is started without any images.
	ErrNoImages = errors.New("no images to convert")

	// ErrInvalidSettings is returned when settings cannot produce a page layout.
	ErrInvalidSettings = errors.New("invalid conversion settings")

	// ErrUnsupportedContentType is returned when an image URL points to an unsupported content type.
	ErrUnsupportedContentType = errors.New("unsupported content type from URL")

	// ErrTooManyFiles is returned when more images are supplied than Limits.MaxFiles.
	ErrTooManyFiles = errors.New("too many files")

	// ErrFileTooLarge is returned when a single input exceeds Limits.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrTotalTooLarge is returned when all inputs together exceed Limits.MaxTotalSize.
	ErrTotalTooLarge = errors.New("total upload size too large")
)

// ImageError reports which image stopped a run and in which phase.
type ImageError struct {
	Phase   Phase
	Index   int // zero-based position in the input list
	ImageID string
	Name    string
	Err     error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s failed for image %q (#%d): %v", e.Phase, e.Name, e.Index+1, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
