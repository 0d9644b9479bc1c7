package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// rootHandler dispatches on method. POST on any path processes the body as
// an image, GET and PUT are not found, everything else is not implemented.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		setRoute(w, routeProcess)
		s.processHandler(w, r)
	case http.MethodGet:
		if s.websocketPath != "" && r.URL.Path == s.websocketPath {
			setRoute(w, routeWebSocket)
			s.websocketHandler(w, r)
			return
		}
		setRoute(w, routeNotFound)
		http.NotFound(w, r)
	case http.MethodPut:
		setRoute(w, routeNotFound)
		http.NotFound(w, r)
	default:
		setRoute(w, routeNotImplemented)
		s.writeErrorResponse(w, fmt.Sprintf("method %s not implemented", r.Method), http.StatusNotImplemented)
	}
}

// processHandler reads the raw image body and answers with the entry array.
// Limits are checked once the body is read so the byte quota is charged
// what was actually uploaded, chunked or not.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		s.writeErrorResponse(w, "empty request body", http.StatusBadRequest)
		return
	}
	if err := s.checkRateLimit(getClientIP(r), int64(len(data))); err != nil {
		s.handleRateLimitError(w, err)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	entries, err := s.process(r.Context(), "http", data)
	if err != nil {
		status := statusFor(err)
		slog.Warn("Image processing failed",
			"request_id", pipeline.RequestID(r.Context()), "status", status, "error", err)
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("Failed to encode entries", "error", err)
	}
}

// process runs one image through the pipeline on a pooled slot.
func (s *Server) process(ctx context.Context, source string, data []byte) ([]pipeline.Entry, error) {
	if s.processor == nil {
		return nil, errors.New("pipeline not initialized")
	}

	release, err := s.acquire(ctx)
	if err != nil {
		imageRequestsTotal.WithLabelValues(source, "rejected").Inc()
		return nil, err
	}
	defer release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	entries, err := s.processor.ProcessImage(ctx, data)
	imageProcessingDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		imageRequestsTotal.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	imageRequestsTotal.WithLabelValues(source, "success").Inc()
	entriesReturned.Observe(float64(len(entries)))
	if entries == nil {
		entries = []pipeline.Entry{}
	}
	return entries, nil
}

// acquire waits for a processing slot. It gives up after the queue timeout
// or when ctx ends.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	release := func() { <-s.slots }

	select {
	case s.slots <- struct{}{}:
		return release, nil
	default:
	}

	workerPoolWaiting.Inc()
	defer workerPoolWaiting.Dec()

	var timeout <-chan time.Time
	if s.queueTimeout > 0 {
		timer := time.NewTimer(s.queueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.slots <- struct{}{}:
		return release, nil
	case <-timeout:
		workerPoolRejected.Inc()
		return nil, errPoolSaturated
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// statusFor maps a processing error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ocr.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, errPoolSaturated):
		return http.StatusServiceUnavailable
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) && stageErr.Stage == pipeline.StageTranslate {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse()); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		// Log error, but can't send another response
		slog.Error("Failed to write error response", "error", err)
	}
}
