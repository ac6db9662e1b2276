package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/config"
	"imgpdf/internal/converter"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type upload struct {
	field string
	name  string
	data  []byte
}

// newFileUploadRequest creates a multipart/form-data request with files and form values.
func newFileUploadRequest(t *testing.T, url string, params map[string]string, files []upload) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for key, val := range params {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("Failed to write field %s: %v", key, err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("Failed to create form file for %s: %v", f.name, err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("Failed to copy file content for %s: %v", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func testServer(t *testing.T, opts ...converter.Option) (*Server, http.Handler) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	opts = append([]converter.Option{converter.WithLogger(quietLogger)}, opts...)
	s := NewServer(cfg, converter.New(opts...), nil, quietLogger)
	return s, s.Routes()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Could not parse JSON response: %v. Body: %s", err, rr.Body.String())
	}
	return resp
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) APIErrorResponse {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("handler returned wrong status code: got %v want %v. Body: %s", rr.Code, status, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if !strings.Contains(resp.Error, message) {
		t.Errorf("handler returned unexpected error message: got '%s' want substring '%s'", resp.Error, message)
	}
	return resp
}

// samplePDF builds a small PDF with one page per size through the real converter.
func samplePDF(t *testing.T, sizes ...[2]int) []byte {
	t.Helper()
	images := make([]converter.Image, 0, len(sizes))
	for i, sz := range sizes {
		img, err := converter.NewImage(fmt.Sprintf("p%d.png", i), pngBytes(t, sz[0], sz[1]))
		if err != nil {
			t.Fatalf("NewImage: %v", err)
		}
		images = append(images, img)
	}
	settings := converter.NewDefaultSettings()
	settings.Mode = preset.Direct()
	pdf, err := converter.New(converter.WithLogger(quietLogger)).ImagesToPDF(context.Background(), images, settings, nil)
	if err != nil {
		t.Fatalf("ImagesToPDF: %v", err)
	}
	return pdf
}

func TestHandleHealth(t *testing.T) {
	_, h := testServer(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"healthy"`) {
		t.Errorf("Unexpected body: %s", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestHandleConvert_MethodNotAllowed(t *testing.T) {
	_, h := testServer(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/convert", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
}

func TestHandleConvert_NoImages(t *testing.T) {
	_, h := testServer(t)
	rr := serve(h, newFileUploadRequest(t, "/convert", nil, nil))
	expectError(t, rr, http.StatusBadRequest, "No images provided")
}

func TestHandleConvert_InvalidSettingsJSON(t *testing.T) {
	_, h := testServer(t)
	params := map[string]string{"settings": "{'pageSize': a4}"}
	files := []upload{{"images", "a.png", pngBytes(t, 4, 4)}}
	rr := serve(h, newFileUploadRequest(t, "/convert", params, files))
	expectError(t, rr, http.StatusBadRequest, "Invalid 'settings' JSON")
}

func TestHandleConvert_InvalidSettings(t *testing.T) {
	_, h := testServer(t)
	for _, settings := range []string{
		`{"pageSize":"a3"}`,
		`{"preset":"tiny"}`,
		`{"marginMm":200}`,
		`{"conversionMode":"lossless"}`,
	} {
		files := []upload{{"images", "a.png", pngBytes(t, 4, 4)}}
		rr := serve(h, newFileUploadRequest(t, "/convert", map[string]string{"settings": settings}, files))
		expectError(t, rr, http.StatusBadRequest, "Invalid settings")
	}
}

func TestHandleConvert_InvalidImageURLsJSON(t *testing.T) {
	_, h := testServer(t)
	params := map[string]string{"image_urls": "['http://example.com/image.jpg', invalid_url]"}
	rr := serve(h, newFileUploadRequest(t, "/convert", params, nil))
	expectError(t, rr, http.StatusBadRequest, "Invalid 'image_urls' JSON")
}

func TestHandleConvert_FetchImageFailures(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "notfound.jpg") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "this is not an image")
	}))
	defer mockServer.Close()

	_, h := testServer(t)
	urlsJSON := fmt.Sprintf(`["%s/badtype.jpg", "%s/notfound.jpg"]`, mockServer.URL, mockServer.URL)
	rr := serve(h, newFileUploadRequest(t, "/convert", map[string]string{"image_urls": urlsJSON}, nil))

	resp := expectError(t, rr, http.StatusUnprocessableEntity, "Failed to load images")
	details, ok := resp.Details.(map[string]any)
	if !ok {
		t.Fatalf("Expected structured details, got %T %v", resp.Details, resp.Details)
	}
	if details["phase"] != string(converter.PhaseLoading) {
		t.Errorf("Expected loading phase, got %v", details["phase"])
	}
	if details["index"] != float64(0) {
		t.Errorf("Expected the first URL to be reported, got index %v", details["index"])
	}
	if name, _ := details["name"].(string); !strings.HasSuffix(name, "badtype.jpg") {
		t.Errorf("Expected details to name badtype.jpg, got %q", name)
	}
}

func TestHandleConvert_DummyFileAsImage(t *testing.T) {
	_, h := testServer(t)
	files := []upload{{"images", "dummy.txt", []byte("This is a dummy file for API testing.")}}
	rr := serve(h, newFileUploadRequest(t, "/convert", nil, files))
	expectError(t, rr, http.StatusUnsupportedMediaType, "Failed to load images")
}

func TestHandleConvert_TooManyFiles(t *testing.T) {
	s, h := testServer(t)
	s.cfg.Limits.MaxFiles = 1
	files := []upload{
		{"images", "a.png", pngBytes(t, 4, 4)},
		{"images", "b.png", pngBytes(t, 4, 4)},
	}
	rr := serve(h, newFileUploadRequest(t, "/convert", nil, files))
	expectError(t, rr, http.StatusRequestEntityTooLarge, "Failed to load images")
}

func TestHandleConvert_Success(t *testing.T) {
	_, h := testServer(t)
	params := map[string]string{
		"settings": `{"pageSize":"letter","conversionMode":"direct","marginMm":0}`,
		"filename": "album",
	}
	files := []upload{
		{"images", "tall.png", pngBytes(t, 40, 80)},
		{"images", "wide.png", pngBytes(t, 80, 40)},
	}
	rr := serve(h, newFileUploadRequest(t, "/convert", params, files))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="album.pdf"` {
		t.Errorf("Unexpected Content-Disposition: %q", cd)
	}

	info, err := pdfdoc.Inspect(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("Response is not a readable PDF: %v", err)
	}
	if info.PageCount != 2 {
		t.Errorf("Expected 2 pages, got %d", info.PageCount)
	}
	if math.Abs(info.Pages[0].Width-215.9) > 0.5 {
		t.Errorf("Expected letter width, got %.1f mm", info.Pages[0].Width)
	}
}

// blockingCompressor waits for cancellation so the handler is caught mid-conversion.
type blockingCompressor struct {
	started chan struct{}
}

func (b *blockingCompressor) Compress(ctx context.Context, _ converter.Image, _ preset.Preset) (raster.Encoded, error) {
	close(b.started)
	select {
	case <-ctx.Done():
		return raster.Encoded{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return raster.Encoded{}, errors.New("mock compressor timeout")
	}
}

func TestHandleConvert_ContextCancellationDuringProcessing(t *testing.T) {
	comp := &blockingCompressor{started: make(chan struct{})}
	_, h := testServer(t, converter.WithCompressor(comp))

	files := []upload{{"images", "a.png", pngBytes(t, 4, 4)}}
	req := newFileUploadRequest(t, "/convert", nil, files)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	go func() {
		<-comp.started
		cancel()
	}()
	rr := serve(h, req)

	resp := expectError(t, rr, http.StatusGatewayTimeout, "Failed to convert images to PDF")
	details, _ := resp.Details.(map[string]any)
	if details["phase"] != string(converter.PhaseCompressing) {
		t.Errorf("Expected the compressing phase to be reported, got %v", resp.Details)
	}
}

func TestHandleEstimate(t *testing.T) {
	_, h := testServer(t)
	body := `{"sizes":[1048576,1048576],"conversionMode":"optimized","preset":"balanced"}`
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/estimate", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var resp EstimateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Could not parse response: %v", err)
	}
	// 2 MiB * 0.5 + 50 KiB + 2 * 2 KiB
	if resp.EstimatedSize != 1103872 {
		t.Errorf("Expected estimated size 1103872, got %d", resp.EstimatedSize)
	}
	if resp.OriginalSize != 2097152 {
		t.Errorf("Expected original size 2097152, got %d", resp.OriginalSize)
	}
	if resp.Savings != 47 {
		t.Errorf("Expected savings 47, got %d", resp.Savings)
	}
	if resp.FormattedOriginalSize != "2.0 MB" {
		t.Errorf("Expected formatted size 2.0 MB, got %q", resp.FormattedOriginalSize)
	}

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/estimate", strings.NewReader(`{"sizes":[],"conversionMode":"direct"}`)))
	if !strings.Contains(rr.Body.String(), `"estimatedSize":0`) {
		t.Errorf("Expected empty input to estimate 0, got %s", rr.Body.String())
	}

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/estimate", strings.NewReader(`{"sizes":[1],"preset":"tiny"}`)))
	expectError(t, rr, http.StatusBadRequest, "Invalid conversion mode")
}

func TestHandlePresets(t *testing.T) {
	_, h := testServer(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/presets", nil))
	var resp struct {
		Presets   []preset.Preset     `json:"presets"`
		PDFLevels []preset.PDFLevel   `json:"pdfLevels"`
		Profiles  []bgremoval.Profile `json:"backgroundProfiles"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Could not parse response: %v", err)
	}
	if len(resp.Presets) != 4 || len(resp.PDFLevels) != 2 || len(resp.Profiles) != 3 {
		t.Errorf("Unexpected catalog sizes: %d presets, %d levels, %d profiles", len(resp.Presets), len(resp.PDFLevels), len(resp.Profiles))
	}
	if resp.Presets[0].Name != preset.High {
		t.Errorf("Expected presets ordered from high, got %s", resp.Presets[0].Name)
	}
}

func TestHandlePDFInfo(t *testing.T) {
	_, h := testServer(t)
	pdf := samplePDF(t, [2]int{10, 10})

	req := httptest.NewRequest(http.MethodPost, "/pdf/info", bytes.NewReader(pdf))
	req.Header.Set("Content-Type", "application/pdf")
	rr := serve(h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var info pdfdoc.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("Could not parse response: %v", err)
	}
	if info.PageCount != 1 || info.Size != int64(len(pdf)) {
		t.Errorf("Unexpected info: %+v", info)
	}

	req = httptest.NewRequest(http.MethodPost, "/pdf/info", strings.NewReader("hello"))
	expectError(t, serve(h, req), http.StatusUnsupportedMediaType, "Failed to inspect PDF")
}

func TestHandlePDFImages(t *testing.T) {
	_, h := testServer(t)
	pdf := samplePDF(t, [2]int{10, 10}, [2]int{20, 10})

	files := []upload{{"file", "scan.pdf", pdf}}
	rr := serve(h, newFileUploadRequest(t, "/pdf/images?format=jpeg&quality=0.5&scale=1", nil, files))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="scan-pages.zip"` {
		t.Errorf("Unexpected Content-Disposition: %q", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("Response is not a zip archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(zr.File))
	}
	for i, f := range zr.File {
		want := fmt.Sprintf("scan-page-%d.jpg", i+1)
		if f.Name != want {
			t.Errorf("Expected entry %q, got %q", want, f.Name)
		}
	}

	rr = serve(h, newFileUploadRequest(t, "/pdf/images?scale=9", nil, files))
	expectError(t, rr, http.StatusBadRequest, "Failed to extract PDF pages")

	rr = serve(h, newFileUploadRequest(t, "/pdf/images?quality=NaN&scale=NaN", nil, files))
	expectError(t, rr, http.StatusBadRequest, "Failed to extract PDF pages")

	rr = serve(h, newFileUploadRequest(t, "/pdf/images?scale=big", nil, files))
	expectError(t, rr, http.StatusBadRequest, "Invalid scale")
}

func TestHandlePDFCompress(t *testing.T) {
	_, h := testServer(t)
	pdf := samplePDF(t, [2]int{30, 30})

	files := []upload{{"file", "report.pdf", pdf}}
	rr := serve(h, newFileUploadRequest(t, "/pdf/compress?level=aggressive", nil, files))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="report-compressed.pdf"` {
		t.Errorf("Unexpected Content-Disposition: %q", cd)
	}
	if rr.Header().Get("X-Page-Count") != "1" {
		t.Errorf("Expected X-Page-Count 1, got %q", rr.Header().Get("X-Page-Count"))
	}
	if rr.Header().Get("X-Original-Size") != fmt.Sprint(len(pdf)) {
		t.Errorf("Unexpected X-Original-Size %q", rr.Header().Get("X-Original-Size"))
	}
	if !pdfdoc.IsPDF(rr.Body.Bytes()) {
		t.Error("Expected a PDF body")
	}

	rr = serve(h, newFileUploadRequest(t, "/pdf/compress?level=extreme", nil, files))
	expectError(t, rr, http.StatusBadRequest, "Invalid compression level")
}

// keepLeft keeps the left half of every image.
type keepLeft struct{}

func (keepLeft) Segment(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Min.X+b.Dx()/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask, nil
}

func TestHandleRemoveBackground(t *testing.T) {
	s, h := testServer(t)
	files := []upload{{"image", "cat.png", pngBytes(t, 40, 20)}}

	rr := serve(h, newFileUploadRequest(t, "/background", nil, files))
	expectError(t, rr, http.StatusServiceUnavailable, "not configured")

	s.pipeline = bgremoval.NewPipeline(func(context.Context) (bgremoval.Segmenter, error) { return keepLeft{}, nil })
	rr = serve(h, newFileUploadRequest(t, "/background", map[string]string{"resolution": "low"}, files))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="cat-no-bg.png"` {
		t.Errorf("Unexpected Content-Disposition: %q", cd)
	}
	out, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("Response is not a PNG: %v", err)
	}
	if _, _, _, a := out.At(35, 10).RGBA(); a != 0 {
		t.Errorf("Expected the right half to be transparent, alpha %d", a)
	}

	rr = serve(h, newFileUploadRequest(t, "/background", map[string]string{"resolution": "ultra"}, files))
	expectError(t, rr, http.StatusBadRequest, "Invalid resolution")

	s.pipeline = bgremoval.NewPipeline(func(context.Context) (bgremoval.Segmenter, error) { return nil, errors.New("model missing") })
	rr = serve(h, newFileUploadRequest(t, "/background", nil, files))
	expectError(t, rr, http.StatusInternalServerError, "Failed to remove background")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.Canceled, http.StatusGatewayTimeout},
		{fmt.Errorf("wrap: %w", converter.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{pdfdoc.ErrNotPDF, http.StatusUnsupportedMediaType},
		{&converter.ImageError{Err: raster.ErrUnsupportedFormat}, http.StatusUnsupportedMediaType},
		{converter.ErrUnsupportedContentType, http.StatusUnprocessableEntity},
		{preset.ErrUnknownLevel, http.StatusBadRequest},
		{bgremoval.ErrUnknownProfile, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
