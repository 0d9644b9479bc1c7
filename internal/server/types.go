package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
	"github.com/MeKo-Tech/subtext/internal/version"
)

// Processor turns one image into translated entries.
type Processor interface {
	ProcessImage(ctx context.Context, image []byte) ([]pipeline.Entry, error)
	Close() error
}

// DefaultMaxUploadMB applies when Config.MaxUploadMB is not positive.
const DefaultMaxUploadMB = 20

// errPoolSaturated is returned when no processing slot frees up within the
// queue timeout.
var errPoolSaturated = errors.New("server busy: no processing slot available")

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor     Processor
	maxUploadMB   int64
	timeout       time.Duration
	queueTimeout  time.Duration
	slots         chan struct{}
	websocketPath string
	rateLimiter   *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	AdminPort       int
	MaxUploadMB     int64
	TimeoutSec      int
	QueueTimeoutSec int
	Workers         int
	WebSocketPath   string
	RateLimit       RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero disables a single limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// HealthResponse is served by the admin listener.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a server around an already constructed processor.
func NewServer(config Config, processor Processor) *Server {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	maxUploadMB := config.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = DefaultMaxUploadMB
	}

	s := &Server{
		processor:     processor,
		maxUploadMB:   maxUploadMB,
		timeout:       time.Duration(config.TimeoutSec) * time.Second,
		queueTimeout:  time.Duration(config.QueueTimeoutSec) * time.Second,
		slots:         make(chan struct{}, workers),
		websocketPath: config.WebSocketPath,
	}

	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}

	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.processor != nil {
		return s.processor.Close()
	}
	return nil
}

// Handler returns the main listener's handler. Every path is served by the
// same method dispatch, without ServeMux path cleaning.
func (s *Server) Handler() http.Handler {
	return s.instrumentMiddleware(s.rootHandler)
}

// SetupRoutes mounts the main handler on an existing mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.instrumentMiddleware(s.rootHandler))
}

// AdminHandler serves health and Prometheus metrics on the admin listener.
func (s *Server) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func healthResponse() HealthResponse {
	return HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Start runs background maintenance until ctx ends.
func (s *Server) Start(ctx context.Context) {
	if s.rateLimiter != nil {
		go s.rateLimiter.PruneEvery(ctx, 10*time.Minute, 24*time.Hour)
	}
}
