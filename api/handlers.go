package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imgpdf/internal/converter"
	"imgpdf/internal/estimate"
	"imgpdf/internal/preset"
)

// handleConvert turns uploaded images and image URLs into one PDF.
//
// Form fields: "images" (files, in order), "image_urls" (JSON array, appended after the
// files), "settings" (JSON RawSettings, empty fields use the configured defaults) and
// "filename".
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.cfg.Limits
	if limits.MaxTotalSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxTotalSize+defaultMaxMemory)
	}

	// Ensure body is closed
	defer func() {
		io.Copy(io.Discard, r.Body) // Drain any remaining parts of the body
		r.Body.Close()
	}()

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.writeError(w, "Request too large", err)
			return
		}
		s.logger.Warn("Failed to parse multipart form", "error", err)
		writeJSONError(w, "Failed to parse request data", err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var raw converter.RawSettings
	if settingsStr := r.FormValue("settings"); settingsStr != "" {
		if err := json.Unmarshal([]byte(settingsStr), &raw); err != nil {
			s.logger.Warn("Failed to parse 'settings' JSON", "error", err)
			writeJSONError(w, "Invalid 'settings' JSON", err.Error(), http.StatusBadRequest)
			return
		}
	}
	settings, err := raw.Merge(s.cfg.Defaults).Resolve()
	if err != nil {
		s.writeError(w, "Invalid settings", err)
		return
	}

	var urls []string
	if imageURLsStr := r.FormValue("image_urls"); imageURLsStr != "" {
		if err := json.Unmarshal([]byte(imageURLsStr), &urls); err != nil {
			s.logger.Warn("Failed to parse 'image_urls' JSON", "error", err)
			writeJSONError(w, "Invalid 'image_urls' JSON", err.Error(), http.StatusBadRequest)
			return
		}
	}

	uploadedFiles := r.MultipartForm.File["images"]
	if len(uploadedFiles) == 0 && len(urls) == 0 {
		writeJSONError(w, "No images provided", "Please upload files or provide image URLs.", http.StatusBadRequest)
		return
	}

	sources := make([]converter.ImageSource, 0, len(uploadedFiles)+len(urls))
	for _, fileHeader := range uploadedFiles {
		file, err := fileHeader.Open()
		if err != nil {
			for _, src := range sources {
				src.Reader.Close()
			}
			writeJSONError(w, fmt.Sprintf("Failed to open uploaded file: %s", fileHeader.Filename), err.Error(), http.StatusInternalServerError)
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = converter.GetContentTypeFromFilename(fileHeader.Filename)
		}
		sources = append(sources, converter.ImageSource{
			OriginalFilename: fileHeader.Filename,
			Reader:           file,
			ContentType:      contentType,
			Index:            len(sources),
		})
	}
	for _, u := range urls {
		sources = append(sources, converter.ImageSource{URL: u, Index: len(sources)})
	}

	images, err := converter.LoadSources(ctx, sources, s.cfg.Workers, limits)
	if err != nil {
		s.writeError(w, "Failed to load images", err)
		return
	}

	s.logger.Info("Starting PDF conversion", "images", len(images), "mode", settings.Mode.String(), "pageSize", settings.PageSize)
	pdf, err := s.conv.ImagesToPDF(ctx, images, settings, s.progressLogger(r))
	if err != nil {
		s.writeError(w, "Failed to convert images to PDF", err)
		return
	}

	outputFilename := r.FormValue("filename")
	if outputFilename == "" {
		outputFilename = converter.DefaultOutputFilename(time.Now())
	}
	if !strings.HasSuffix(strings.ToLower(outputFilename), ".pdf") {
		outputFilename += ".pdf"
	}

	s.logger.Info("Successfully generated PDF", "filename", outputFilename, "size", len(pdf))
	s.writeFile(w, "application/pdf", outputFilename, pdf)
}

// progressLogger logs each progress report at debug level, tagged with the request ID.
func (s *Server) progressLogger(r *http.Request) converter.Reporter {
	log := s.logger.With("requestId", requestID(r))
	return converter.ReporterFunc(func(p converter.Progress) {
		log.Debug("Progress", "phase", p.Phase, "current", p.Current, "total", p.Total, "message", p.Message)
	})
}

// EstimateRequest is the body of POST /estimate.
type EstimateRequest struct {
	Sizes          []int64 `json:"sizes"`
	ConversionMode string  `json:"conversionMode"`
	Preset         string  `json:"preset"`
}

// EstimateResponse is the result of POST /estimate.
type EstimateResponse struct {
	OriginalSize           int64  `json:"originalSize"`
	EstimatedSize          int64  `json:"estimatedSize"`
	Savings                int    `json:"savings"`
	FormattedOriginalSize  string `json:"formattedOriginalSize"`
	FormattedEstimatedSize string `json:"formattedEstimatedSize"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := preset.ParseMode(req.ConversionMode, req.Preset)
	if err != nil {
		s.writeError(w, "Invalid conversion mode", err)
		return
	}

	var original int64
	for _, size := range req.Sizes {
		if size < 0 {
			writeJSONError(w, "Invalid request body", "sizes must not be negative", http.StatusBadRequest)
			return
		}
		original += size
	}
	estimated := estimate.OutputSize(req.Sizes, mode)
	writeJSON(w, EstimateResponse{
		OriginalSize:           original,
		EstimatedSize:          estimated,
		Savings:                estimate.Savings(original, estimated),
		FormattedOriginalSize:  estimate.FormatFileSize(original),
		FormattedEstimatedSize: estimate.FormatFileSize(estimated),
	})
}

// contentDisposition builds an attachment header with a minimally sanitised filename.
func contentDisposition(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\"", "")
	return fmt.Sprintf(`attachment; filename="%s"`, filename)
}
