package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notely_pages_processed_total",
			Help: "Total number of pages processed by status",
		},
		[]string{"status"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notely_batches_total",
			Help: "Total number of batches by outcome",
		},
		[]string{"status"},
	)

	pageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notely_page_processing_duration_seconds",
			Help:    "Time spent recognizing a single page",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notely_queue_depth",
			Help: "Number of batches waiting in the queue",
		},
	)
)

// Batch outcome labels.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusEmpty    = "empty"
	statusCanceled = "canceled"
)
