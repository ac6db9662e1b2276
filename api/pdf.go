package api

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/converter"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"presets":            preset.All(),
		"pdfLevels":          preset.PDFLevels(),
		"backgroundProfiles": bgremoval.Profiles(),
	})
}

// readUpload returns the uploaded bytes and their name. It accepts either a multipart
// form with the document in field, or the raw document as the request body with the
// name in the "filename" query parameter.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	maxSize := s.cfg.Limits.MaxFileSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+defaultMaxMemory)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := readLimited(r.Body, maxSize)
		if err != nil {
			return nil, "", err
		}
		return data, r.URL.Query().Get("filename"), nil
	}

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing form file %q: %w", field, err)
	}
	defer file.Close()

	data, err := readLimited(file, maxSize)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", header.Filename, err)
	}
	return data, header.Filename, nil
}

func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", converter.ErrFileTooLarge, maxSize)
	}
	return data, nil
}

func (s *Server) handlePDFInfo(w http.ResponseWriter, r *http.Request) {
	pdf, _, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, "Failed to read PDF", err)
		return
	}
	info, err := pdfdoc.Inspect(pdf)
	if err != nil {
		s.writeError(w, "Failed to inspect PDF", err)
		return
	}
	writeJSON(w, info)
}

// handlePDFImages renders every page and returns them as a zip archive. Query
// parameters format, quality and scale override the configured extract settings.
func (s *Server) handlePDFImages(w http.ResponseWriter, r *http.Request) {
	settings, err := s.cfg.ExtractSettings()
	if err != nil {
		s.writeError(w, "Invalid extract settings", err)
		return
	}
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		settings.Format = raster.Format(strings.ToLower(v))
	}
	for key, dst := range map[string]*float64{"quality": &settings.Quality, "scale": &settings.Scale} {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeJSONError(w, fmt.Sprintf("Invalid %s", key), err.Error(), http.StatusBadRequest)
				return
			}
			*dst = f
		}
	}

	pdf, name, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, "Failed to read PDF", err)
		return
	}
	pages, err := s.conv.PDFToImages(r.Context(), pdf, settings, s.progressLogger(r))
	if err != nil {
		s.writeError(w, "Failed to extract PDF pages", err)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, page := range pages {
		f, err := zw.Create(page.Filename(name))
		if err != nil {
			s.writeError(w, "Failed to build archive", err)
			return
		}
		if _, err := f.Write(page.Image.Data); err != nil {
			s.writeError(w, "Failed to build archive", err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.writeError(w, "Failed to build archive", err)
		return
	}

	w.Header().Set("X-Page-Count", strconv.Itoa(len(pages)))
	s.writeFile(w, "application/zip", converter.PagesArchiveFilename(name), buf.Bytes())
}

func (s *Server) handlePDFCompress(w http.ResponseWriter, r *http.Request) {
	levelName := r.URL.Query().Get("level")
	if levelName == "" {
		levelName = s.cfg.Compress.Level
	}
	level, err := preset.LookupPDFLevel(levelName)
	if err != nil {
		s.writeError(w, "Invalid compression level", err)
		return
	}

	pdf, name, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, "Failed to read PDF", err)
		return
	}
	res, err := s.conv.CompressPDF(r.Context(), pdf, level, s.progressLogger(r))
	if err != nil {
		s.writeError(w, "Failed to compress PDF", err)
		return
	}

	h := w.Header()
	h.Set("X-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
	h.Set("X-Compressed-Size", strconv.FormatInt(res.CompressedSize, 10))
	h.Set("X-Savings-Percent", strconv.Itoa(res.Savings()))
	h.Set("X-Page-Count", strconv.Itoa(res.PageCount))
	s.writeFile(w, "application/pdf", converter.CompressedFilename(name), res.Data)
}

// handleRemoveBackground cuts out the foreground of one image and returns a PNG. The
// resolution profile comes from the "resolution" form field or query parameter.
func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeJSONError(w, "Background removal is not configured", nil, http.StatusServiceUnavailable)
		return
	}

	data, name, err := s.readUpload(w, r, "image")
	if err != nil {
		s.writeError(w, "Failed to read image", err)
		return
	}
	resolution := r.FormValue("resolution")
	if resolution == "" {
		resolution = s.cfg.BackgroundRemoval.Resolution
	}
	profile, err := bgremoval.LookupProfile(resolution)
	if err != nil {
		s.writeError(w, "Invalid resolution", err)
		return
	}

	res, err := bgremoval.RemoveBackground(r.Context(), s.pipeline, name, data, profile)
	if err != nil {
		s.writeError(w, "Failed to remove background", err)
		return
	}
	w.Header().Set("X-Image-Width", strconv.Itoa(res.Image.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(res.Image.Height))
	s.writeFile(w, res.Image.Format.MIMEType(), res.Filename(), res.Image.Data)
}
