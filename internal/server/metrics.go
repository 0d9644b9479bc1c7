package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route labels. The main listener accepts any path, so metrics are keyed by
// what the request did rather than by URL.
const (
	routeProcess        = "process"
	routeWebSocket      = "websocket"
	routeNotFound       = "not_found"
	routeNotImplemented = "not_implemented"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtext_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subtext_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Image processing metrics
	imageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtext_image_requests_total",
			Help: "Total number of processed images",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	imageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subtext_image_processing_duration_seconds",
			Help:    "End-to-end image processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"source"},
	)

	entriesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subtext_entries_returned",
			Help:    "Number of entries returned per image",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	workerPoolWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subtext_worker_pool_waiting",
			Help: "Number of requests waiting for a processing slot",
		},
	)

	workerPoolRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtext_worker_pool_rejected_total",
			Help: "Requests rejected because no processing slot freed up in time",
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtext_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subtext_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subtext_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtext_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
