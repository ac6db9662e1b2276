// Package api exposes the converter over a local HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/config"
	"imgpdf/internal/converter"
	"imgpdf/internal/layout"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

const defaultMaxMemory = 32 << 20 // 32 MB for multipart form parsing

// Server serves conversion requests.
type Server struct {
	cfg      *config.Config
	conv     *converter.Converter
	pipeline *bgremoval.Pipeline
	logger   *slog.Logger
}

// NewServer creates a Server. A nil logger uses slog.Default.
func NewServer(cfg *config.Config, conv *converter.Converter, pipeline *bgremoval.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, conv: conv, pipeline: pipeline, logger: logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/presets", s.handlePresets)
	r.Post("/estimate", s.handleEstimate)
	r.Post("/convert", s.handleConvert)

	r.Route("/pdf", func(r chi.Router) {
		r.Post("/info", s.handlePDFInfo)
		r.Post("/images", s.handlePDFImages)
		r.Post("/compress", s.handlePDFCompress)
	})

	r.Post("/background", s.handleRemoveBackground)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Graceful shutdown failed", "error", err)
		return srv.Close()
	}
	if s.pipeline != nil {
		if err := s.pipeline.Release(); err != nil {
			s.logger.Warn("Failed to release segmentation model", "error", err)
		}
	}
	s.logger.Info("Server stopped")
	return nil
}

type APIErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSONError(w http.ResponseWriter, message string, details interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errResponse := APIErrorResponse{
		Error:   message,
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		slog.Error("Failed to write JSON error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// writeFile sends a binary download.
func (s *Server) writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		// This error usually means the client closed the connection.
		s.logger.Error("Failed to write response", "filename", filename, "error", err)
	}
}

// writeError maps a conversion error to a status code and JSON body.
func (s *Server) writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(message, "error", err)
	} else {
		s.logger.Warn(message, "error", err)
	}

	var details any = err.Error()
	var imgErr *converter.ImageError
	if errors.As(err, &imgErr) {
		details = map[string]any{
			"phase":   imgErr.Phase,
			"index":   imgErr.Index,
			"name":    imgErr.Name,
			"message": imgErr.Err.Error(),
		}
	}
	writeJSONError(w, message, details, status)
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &maxBytes),
		errors.Is(err, converter.ErrTooManyFiles),
		errors.Is(err, converter.ErrFileTooLarge),
		errors.Is(err, converter.ErrTotalTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, raster.ErrUnsupportedFormat),
		errors.Is(err, pdfdoc.ErrNotPDF):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, converter.ErrUnsupportedContentType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, converter.ErrNoImages),
		errors.Is(err, converter.ErrInvalidSettings),
		errors.Is(err, preset.ErrUnknownPreset),
		errors.Is(err, preset.ErrUnknownMode),
		errors.Is(err, preset.ErrUnknownLevel),
		errors.Is(err, layout.ErrUnknownPageSize),
		errors.Is(err, layout.ErrUnknownOrientation),
		errors.Is(err, layout.ErrUnknownFitMode),
		errors.Is(err, bgremoval.ErrUnknownProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":            "healthy",
		"segmentationModel": s.pipeline != nil && s.pipeline.Loaded(),
		"time":              time.Now().UTC().Format(time.RFC3339),
	})
}
