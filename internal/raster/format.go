// Package raster wraps decoding, resizing, alpha compositing and encoding of raster
// images. Callers outside this package only rely on an Encoded payload and its pixel
// dimensions; the in-memory representation stays private to the operations here.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for data or format names outside JPEG, PNG and WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format of an encoded raster.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// MIMEType returns the media type for the format.
func (f Format) MIMEType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the conventional file extension without a dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// Sniff identifies the format from the file signature rather than a name or MIME type.
func Sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG, nil
	case bytes.HasPrefix(data, pngMagic):
		return PNG, nil
	case len(data) >= 12 && bytes.Equal(data[0:4], riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return WebP, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ParseOutputFormat resolves a format that images can be written in. WebP is readable
// but has no encoder available, so it is rejected here.
func ParseOutputFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return "", fmt.Errorf("%w: webp output is not available", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// EmbeddablePNG reports whether a PNG can be copied into a PDF without transcoding:
// 8-bit or lower channels and no Adam7 interlacing.
func EmbeddablePNG(data []byte) bool {
	// signature(8) + length(4) + "IHDR"(4) + width(4) + height(4) + depth, colour,
	// compression, filter, interlace.
	if len(data) < 29 || !bytes.HasPrefix(data, pngMagic) || string(data[12:16]) != "IHDR" {
		return false
	}
	bitDepth, interlace := data[24], data[28]
	return bitDepth <= 8 && interlace == 0
}
