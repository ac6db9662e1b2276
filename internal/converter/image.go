package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgpdf/internal/raster"
)

// Image is one input image, held fully in memory. It is not modified after NewImage.
type Image struct {
	ID     string
	Name   string
	Data   []byte
	Width  int
	Height int
	Format raster.Format
}

// Size is the encoded byte length of the image.
func (img Image) Size() int64 {
	return int64(len(img.Data))
}

// NewImage validates data by its file signature and reads its pixel dimensions.
func NewImage(name string, data []byte) (Image, error) {
	w, h, format, err := raster.DecodeConfig(data)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", name, err)
	}
	return Image{
		ID:     uuid.NewString(),
		Name:   name,
		Data:   data,
		Width:  w,
		Height: h,
		Format: format,
	}, nil
}

// ImageSource represents a single image to be read.
// It can be an uploaded file (via io.ReadCloser) or a URL (string).
type ImageSource struct {
	OriginalFilename string        // Original filename from upload or derived from URL
	Reader           io.ReadCloser // Reader for the image data
	URL              string        // URL if the image is to be fetched
	ContentType      string        // Declared content type, checked against the file signature
	Index            int           // Original index for ordering
}

// ReadImage consumes and closes source.Reader, enforcing limits.MaxFileSize while reading.
func ReadImage(source ImageSource, limits Limits) (Image, error) {
	if source.Reader == nil {
		return Image{}, errors.New("image reader is nil")
	}
	defer source.Reader.Close()

	r := io.Reader(source.Reader)
	if limits.MaxFileSize > 0 {
		r = io.LimitReader(r, limits.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("could not read image data for %s: %w", source.OriginalFilename, err)
	}
	if err := limits.checkFile(source.OriginalFilename, int64(len(data))); err != nil {
		return Image{}, err
	}

	img, err := NewImage(source.OriginalFilename, data)
	if err != nil {
		return Image{}, err
	}
	if source.ContentType != "" && !strings.EqualFold(source.ContentType, img.Format.MIMEType()) {
		slog.Debug("Declared content type differs from file signature", "filename", source.OriginalFilename, "declared", source.ContentType, "detected", img.Format)
	}
	return img, nil
}

// LoadSources reads every source with up to workers concurrent fetches, fetching URL-only
// sources first. Images are returned in Index order. The first failing source (by Index)
// is reported as an *ImageError and all readers are closed either way.
func LoadSources(ctx context.Context, sources []ImageSource, workers int, limits Limits) ([]Image, error) {
	slog.Debug("Loading image sources", "numSources", len(sources), "numWorkers", workers)
	if len(sources) == 0 {
		return nil, ErrNoImages
	}
	if limits.MaxFiles > 0 && len(sources) > limits.MaxFiles {
		closeSources(sources)
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(sources), limits.MaxFiles)
	}
	if workers <= 0 {
		workers = 1
	}

	type result struct {
		img Image
		err error
	}
	results := make([]result, len(sources))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, src ImageSource) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				if src.Reader != nil {
					src.Reader.Close()
				}
				results[i].err = ctx.Err()
				return
			}

			if src.Reader == nil && src.URL != "" {
				fetched, err := FetchImage(ctx, src.URL, src.Index, limits)
				if err != nil {
					results[i].err = err
					return
				}
				if src.OriginalFilename != "" {
					fetched.OriginalFilename = src.OriginalFilename
				}
				src = fetched
			}
			results[i].img, results[i].err = ReadImage(src, limits)
		}(i, source)
	}
	wg.Wait()

	// Inputs keep their caller-supplied order, which need not match slice order.
	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sources[order[a]].Index < sources[order[b]].Index
	})

	images := make([]Image, 0, len(sources))
	for _, i := range order {
		if err := results[i].err; err != nil {
			name := sources[i].OriginalFilename
			if name == "" {
				name = sources[i].URL
			}
			return nil, &ImageError{Phase: PhaseLoading, Index: sources[i].Index, Name: name, Err: err}
		}
		images = append(images, results[i].img)
	}
	if err := limits.Check(images); err != nil {
		return nil, err
	}
	return images, nil
}

func closeSources(sources []ImageSource) {
	for _, src := range sources {
		if src.Reader != nil {
			src.Reader.Close()
		}
	}
}

// GetContentTypeFromFilename determines content type from file extension.
// It is a fallback for uploads that carry no usable Content-Type.
func GetContentTypeFromFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "" // Unknown
	}
}

// fetchClient bounds how long a single remote image may take.
var fetchClient = &http.Client{Timeout: 60 * time.Second}

// FetchImage starts downloading imageURL and returns a source reading the response body,
// named after the last path segment. Non-200 responses and non-image content types are
// rejected, as is a declared Content-Length above limits.MaxFileSize; ReadImage still
// enforces the limit on the bytes actually read. The caller closes the Reader.
func FetchImage(ctx context.Context, imageURL string, index int, limits Limits) (ImageSource, error) {
	log := slog.With("url", imageURL, "index", index)
	log.Debug("Fetching image")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return ImageSource{}, fmt.Errorf("invalid image URL %s: %w", imageURL, err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp")

	resp, err := fetchClient.Do(req)
	if err != nil {
		log.Warn("Image download failed", "error", err)
		return ImageSource{}, fmt.Errorf("failed to fetch %s: %w", imageURL, err)
	}

	reject := func(err error) (ImageSource, error) {
		resp.Body.Close()
		log.Warn("Rejected remote image", "status", resp.StatusCode, "error", err)
		return ImageSource{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return reject(fmt.Errorf("failed to fetch %s: status %s", imageURL, resp.Status))
	}
	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, _ := mime.ParseMediaType(contentType); !strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		return reject(fmt.Errorf("%w: %q from %s", ErrUnsupportedContentType, contentType, imageURL))
	}

	name := path.Base(imageURL)
	if u, err := url.ParseRequestURI(imageURL); err == nil {
		name = path.Base(u.Path)
	}
	if err := limits.checkFile(name, resp.ContentLength); err != nil {
		return reject(err)
	}

	return ImageSource{
		OriginalFilename: name,
		Reader:           resp.Body,
		URL:              imageURL,
		ContentType:      contentType,
		Index:            index,
	}, nil
}
