package bgremoval

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
)

// ErrNoMask is returned when the segmenter produces no mask.
var ErrNoMask = errors.New("segmentation returned no mask")

// Segmenter produces a foreground mask for an image. The mask's luminance is used as
// alpha: white keeps a pixel, black removes it. Masks of a different size are stretched.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// LoadFunc loads a segmentation model. It may be slow and may fail.
type LoadFunc func(ctx context.Context) (Segmenter, error)

// Pipeline owns a lazily loaded Segmenter. A successful load is cached until Release;
// a failed load is not, so the next Acquire retries.
type Pipeline struct {
	load LoadFunc

	mu  sync.Mutex
	seg Segmenter
}

// NewPipeline returns a Pipeline that loads its model with load on first use.
func NewPipeline(load LoadFunc) *Pipeline {
	return &Pipeline{load: load}
}

// Acquire returns the loaded Segmenter, loading it if needed. Concurrent callers wait
// for a single load.
func (p *Pipeline) Acquire(ctx context.Context) (Segmenter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seg != nil {
		return p.seg, nil
	}
	slog.Info("Loading segmentation model")
	seg, err := p.load(ctx)
	if err != nil {
		slog.Warn("Segmentation model failed to load", "error", err)
		return nil, err
	}
	p.seg = seg
	return seg, nil
}

// Release drops the cached Segmenter, closing it if it is an io.Closer.
func (p *Pipeline) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seg := p.seg
	p.seg = nil
	if c, ok := seg.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Loaded reports whether a Segmenter is currently cached.
func (p *Pipeline) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seg != nil
}
