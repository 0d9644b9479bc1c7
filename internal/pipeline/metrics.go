package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtext_detections_total",
			Help: "OCR detections by outcome",
		},
		[]string{"outcome"}, // outcome: accepted, low_confidence, empty_text
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subtext_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // stage: ocr, translate, merge, report
	)

	entriesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtext_entries_merged_total",
			Help: "Entries absorbed by the overlap merge",
		},
	)

	reportFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtext_report_failures_total",
			Help: "Report sink failures",
		},
	)
)
