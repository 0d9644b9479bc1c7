package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

const requestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture status code and the
// route label chosen by the dispatcher.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	route      string
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// setRoute records the metrics label for the current request.
func setRoute(w http.ResponseWriter, route string) {
	if rw, ok := w.(*responseWriter); ok {
		rw.route = route
	}
}

// instrumentMiddleware assigns a request ID and records request metrics.
func (s *Server) instrumentMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(pipeline.WithRequestID(r.Context(), requestID))

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, route: routeNotFound}

		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(r.Method, rw.route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, rw.route).Observe(duration.Seconds())

		slog.Debug("Request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

// checkRateLimit admits one upload of dataSize bytes from clientID. It is a
// no-op when rate limiting is off.
func (s *Server) checkRateLimit(clientID string, dataSize int64) error {
	if s.rateLimiter == nil {
		return nil
	}

	err := s.rateLimiter.CheckRateLimit(clientID, dataSize)
	var e *RateLimitError
	var e1 *QuotaExceededError
	switch {
	case errors.As(err, &e):
		rateLimitHits.WithLabelValues(e.Type).Inc()
	case errors.As(err, &e1):
		rateLimitHits.WithLabelValues(e1.Type).Inc()
	}
	return err
}

// handleRateLimitError handles rate limit and quota errors.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var e *RateLimitError
	var e1 *QuotaExceededError
	switch {
	case errors.As(err, &e):
		w.Header().Set("X-RateLimit-Type", e.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(e.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", e.RetryAfter.Seconds()))
		s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       e.Error(),
			"type":        e.Type,
			"limit":       e.Limit,
			"retry_after": e.RetryAfter.Seconds(),
		})
	case errors.As(err, &e1):
		w.Header().Set("X-Quota-Type", e1.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(e1.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(e1.Used, 10))
		w.Header().Set("X-Quota-Resets", e1.Resets.Format(http.TimeFormat))
		s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":  e1.Error(),
			"type":   e1.Type,
			"limit":  e1.Limit,
			"used":   e1.Used,
			"resets": e1.Resets.Format(time.RFC3339),
		})
	default:
		s.writeErrorResponse(w, "rate limiting check failed", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
