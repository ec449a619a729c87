package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediashare_uploads_total",
		Help: "Stored uploads by type category.",
	}, []string{"type"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediashare_upload_bytes_total",
		Help: "Bytes written to the blob store by uploads.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediashare_downloads_total",
		Help: "Download attempts by outcome.",
	}, []string{"status"})

	// best-effort steps that failed without failing the request
	bestEffortFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediashare_best_effort_failures_total",
		Help: "Best-effort steps that failed and were skipped.",
	}, []string{"step"})

	consistencyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediashare_consistency_errors_total",
		Help: "Deletes that removed a blob but not its record.",
	})

	purgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediashare_expired_purged_total",
		Help: "Expired files removed by the cleanup job.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediashare_record_cache_hits_total",
		Help: "Share id lookups served from the record cache.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediashare_record_cache_misses_total",
		Help: "Share id lookups that went to the store.",
	})
)
