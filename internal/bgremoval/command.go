package bgremoval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"imgpdf/internal/raster"
)

// CommandSegmenter runs a locally installed model runner. The image is written to the
// command's stdin as PNG and a grayscale mask PNG is read from its stdout.
type CommandSegmenter struct {
	Path string
	Args []string
}

// NewCommandLoader returns a LoadFunc that resolves path on first use. Resolution
// failures are returned from Acquire and retried on the next call.
func NewCommandLoader(path string, args ...string) LoadFunc {
	return func(ctx context.Context) (Segmenter, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if path == "" {
			return nil, errors.New("no segmentation command configured")
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, fmt.Errorf("segmentation command %q: %w", path, err)
		}
		return &CommandSegmenter{Path: resolved, Args: args}, nil
	}
}

// Segment implements Segmenter.
func (c *CommandSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	in, err := raster.Encode(img, raster.PNG, 1)
	if err != nil {
		return nil, fmt.Errorf("could not encode segmentation input: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(in.Data)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("segmentation command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("segmentation command failed: %w", err)
	}
	if out.Len() == 0 {
		return nil, ErrNoMask
	}
	mask, _, err := image.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("could not decode mask: %w", err)
	}
	return mask, nil
}
