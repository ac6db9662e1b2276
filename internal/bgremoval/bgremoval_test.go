package bgremoval

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os/exec"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpdf/internal/raster"
)

// halfMask keeps the left half of the image.
type halfMask struct {
	closed bool
}

func (h *halfMask) Segment(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Min.X+b.Dx()/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask, nil
}

func (h *halfMask) Close() error {
	h.closed = true
	return nil
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProfiles(t *testing.T) {
	ps := Profiles()
	require.Len(t, ps, 3)
	assert.Equal(t, 4096, ps[0].MaxDimension)
	assert.NotEmpty(t, ps[0].Warning)
	assert.Equal(t, 1024, ps[2].MaxDimension)

	p, err := LookupProfile("")
	require.NoError(t, err)
	assert.Equal(t, 2048, p.MaxDimension)

	_, err = LookupProfile("ultra")
	assert.ErrorIs(t, err, ErrUnknownProfile)

	assert.Equal(t, "cat-no-bg.png", ResultFilename("photos/cat.jpeg"))
	assert.Equal(t, ".hidden-no-bg.png", ResultFilename(".hidden"))
}

func TestPipeline_CachesSuccessNotFailure(t *testing.T) {
	var loads int
	seg := &halfMask{}
	p := NewPipeline(func(context.Context) (Segmenter, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("model download failed")
		}
		return seg, nil
	})

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, p.Loaded())

	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, seg, got)

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "a successful load is reused")

	require.NoError(t, p.Release())
	assert.True(t, seg.closed)
	assert.False(t, p.Loaded())

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, loads, "release forces a reload")
}

func TestPipeline_ConcurrentAcquireLoadsOnce(t *testing.T) {
	var mu sync.Mutex
	loads := 0
	p := NewPipeline(func(context.Context) (Segmenter, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return &halfMask{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Acquire(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, loads)
}

func TestRemoveBackground(t *testing.T) {
	p := NewPipeline(func(context.Context) (Segmenter, error) { return &halfMask{}, nil })
	profile, err := LookupProfile("low")
	require.NoError(t, err)

	res, err := RemoveBackground(context.Background(), p, "wide.png", pngData(t, 2048, 512), profile)
	require.NoError(t, err)
	assert.Equal(t, raster.PNG, res.Image.Format)
	assert.Equal(t, 1024, res.Image.Width, "downsized to the profile limit")
	assert.Equal(t, 256, res.Image.Height)
	assert.Equal(t, "wide-no-bg.png", res.Filename())
	assert.NotEmpty(t, res.ID)

	out, err := raster.Decode(res.Image.Data)
	require.NoError(t, err)
	_, _, _, leftA := out.At(10, 10).RGBA()
	_, _, _, rightA := out.At(1000, 10).RGBA()
	assert.Equal(t, uint32(0xFFFF), leftA)
	assert.Equal(t, uint32(0), rightA)
}

func TestRemoveBackground_Errors(t *testing.T) {
	ok := NewPipeline(func(context.Context) (Segmenter, error) { return &halfMask{}, nil })
	profile, _ := LookupProfile("medium")

	_, err := RemoveBackground(context.Background(), ok, "notes.txt", []byte("hello"), profile)
	assert.ErrorIs(t, err, raster.ErrUnsupportedFormat)

	failing := NewPipeline(func(context.Context) (Segmenter, error) { return nil, errors.New("no model") })
	_, err = RemoveBackground(context.Background(), failing, "a.png", pngData(t, 4, 4), profile)
	assert.ErrorContains(t, err, "no model")

	_, err = NewCommandLoader("")(context.Background())
	assert.Error(t, err)
	_, err = NewCommandLoader("definitely-not-a-real-segmenter")(context.Background())
	assert.Error(t, err)
}

func TestCommandSegmenter_RoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	// cat echoes the input back, so the mask is the image itself: fully white, fully kept.
	p := NewPipeline(NewCommandLoader("cat"))
	profile, _ := LookupProfile("low")

	res, err := RemoveBackground(context.Background(), p, "white.png", pngData(t, 16, 8), profile)
	require.NoError(t, err)

	out, err := raster.Decode(res.Image.Data)
	require.NoError(t, err)
	_, _, _, a := out.At(15, 7).RGBA()
	assert.Equal(t, uint32(0xFFFF), a)
}
