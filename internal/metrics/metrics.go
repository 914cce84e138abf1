package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosphere_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_db_connections_open",
			Help: "Number of open catalog database connections",
		},
	)

	PhotosCataloged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_photos_cataloged",
			Help: "Number of photos currently in the catalog",
		},
	)
)

// Import pipeline metrics
var (
	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_import_files_total",
			Help: "Total number of files processed by the import pipeline",
		},
		[]string{"result"}, // "imported", "failed", "unsupported"
	)

	ImportBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_import_batch_duration_seconds",
			Help:    "Duration of import batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	ExtractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_metadata_extract_duration_seconds",
			Help:    "Duration of per-file metadata extraction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_requests_total",
			Help: "Total number of thumbnail requests",
		},
		[]string{"outcome"}, // "cache_hit", "scheduled", "coalesced"
	)

	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"}, // "success", "error"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ThumbnailBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_thumbnail_batch_size",
			Help:    "Number of completions delivered per batched flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	ThumbnailsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_thumbnails_in_flight",
			Help: "Number of thumbnail generations currently in flight",
		},
	)

	ThumbnailGCRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_gc_removed_total",
			Help: "Total number of orphaned thumbnail cache entries removed",
		},
	)
)
