package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpdf/internal/converter"
	"imgpdf/internal/pdfdoc"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func chdir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// run executes the command tree with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCollectImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "c.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))
	extra := filepath.Join(t.TempDir(), "z.jpeg")
	require.NoError(t, os.WriteFile(extra, []byte("x"), 0o644))

	paths, err := collectImageFiles([]string{extra, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		extra,
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "c.webp"),
	}, paths)

	_, err = collectImageFiles([]string{t.TempDir()})
	assert.ErrorIs(t, err, ErrNoSupportedFiles)

	_, err = collectImageFiles([]string{filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteOutput_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.pdf")
	require.NoError(t, writeOutput(path, []byte("%PDF-")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
}

func TestProgressReporter(t *testing.T) {
	var out bytes.Buffer
	u := newUI(&out, &out)
	r := newProgressReporter(&out, u)

	for _, phase := range []converter.Phase{converter.PhaseCompressing, converter.PhaseProcessing} {
		for i := 1; i <= 2; i++ {
			r.Step(converter.Progress{Current: i, Total: 2, Phase: phase})
		}
	}
	r.Step(converter.Progress{Current: 2, Total: 2, Phase: converter.PhaseComplete, Message: "PDF generated successfully!"})

	assert.Contains(t, out.String(), "compressing")
	assert.Contains(t, out.String(), "processing")
	assert.Contains(t, out.String(), "PDF generated successfully!")
	assert.Nil(t, r.bar)

	out.Reset()
	r.Step(converter.Progress{Current: 1, Total: 3, Phase: converter.PhaseLoading})
	r.Step(converter.Progress{Current: 1, Total: 3, Phase: converter.PhaseError, Message: "Failed to process image: a.png"})
	assert.Contains(t, out.String(), "Failed to process image: a.png")
	assert.Nil(t, r.bar)
}

func TestCommands_EndToEnd(t *testing.T) {
	chdir(t)
	require.NoError(t, os.Mkdir("in", 0o755))
	writePNG(t, filepath.Join("in", "1.png"), 60, 30)
	writePNG(t, filepath.Join("in", "2.png"), 30, 60)

	out, err := run(t, "topdf", "in", "-o", "album.pdf", "--mode", "direct", "--page-size", "letter", "--margin", "0")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Successfully created 'album.pdf'")

	pdf, err := os.ReadFile("album.pdf")
	require.NoError(t, err)
	info, err := pdfdoc.Inspect(pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
	assert.InDelta(t, 215.9, info.Pages[0].Width, 0.5)

	out, err = run(t, "toimages", "album.pdf", "-d", "pages", "--scale", "1", "--format", "jpeg")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join("pages", "album-page-1.jpg"))
	assert.FileExists(t, filepath.Join("pages", "album-page-2.jpg"))

	out, err = run(t, "compress", "album.pdf", "--level", "aggressive")
	require.NoError(t, err, out)
	assert.FileExists(t, "album-compressed.pdf")

	out, err = run(t, "info", "album.pdf")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Pages: 2")

	out, err = run(t, "estimate", "in", "--preset", "small")
	require.NoError(t, err, out)
	assert.Contains(t, out, "optimized:small*")
	assert.Contains(t, out, "direct")
}

func TestCommands_Errors(t *testing.T) {
	chdir(t)

	_, err := run(t, "topdf", ".")
	assert.ErrorIs(t, err, ErrNoSupportedFiles)

	writePNG(t, "a.png", 4, 4)
	_, err = run(t, "topdf", "a.png", "--preset", "tiny")
	assert.ErrorIs(t, err, converter.ErrInvalidSettings)

	_, err = run(t, "compress", "a.png")
	assert.ErrorIs(t, err, pdfdoc.ErrNotPDF)

	_, err = run(t, "rmbg", "a.png")
	assert.ErrorContains(t, err, "could not load segmentation model")

	_, err = run(t, "--config", "missing.yaml", "presets")
	assert.ErrorContains(t, err, "read config file")
}

func TestPresetsJSON(t *testing.T) {
	chdir(t)
	out, err := run(t, "presets", "--json")
	require.NoError(t, err)

	var c Catalog
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Len(t, c.Presets, 4)
	assert.Len(t, c.PDFLevels, 2)
	assert.Len(t, c.Profiles, 3)
}

func TestUI_NoColor(t *testing.T) {
	var out, errOut bytes.Buffer
	u := newUI(&out, &errOut)
	u.Success("done %d", 3)
	u.Error("failed")
	assert.Contains(t, out.String(), "done 3")
	assert.Contains(t, errOut.String(), "failed")
}
