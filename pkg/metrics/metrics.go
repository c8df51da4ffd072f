// Package metrics provides Prometheus metrics for the fundraising service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DuplicateChecksTotal tracks duplicate detection runs by confidence band of
	// the best match ("none" when nothing cleared the low threshold).
	DuplicateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundraising",
			Subsystem: "dedupe",
			Name:      "checks_total",
			Help:      "Total number of duplicate detection runs by best-match confidence",
		},
		[]string{"tenant_id", "confidence"},
	)

	// DuplicateCheckDuration tracks how long a detection run takes.
	DuplicateCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundraising",
			Subsystem: "dedupe",
			Name:      "check_duration_seconds",
			Help:      "Duration of duplicate detection runs in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"tenant_id"},
	)

	// SegmentEvaluationsTotal tracks segment evaluation runs by operation.
	SegmentEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundraising",
			Subsystem: "segments",
			Name:      "evaluations_total",
			Help:      "Total number of segment evaluation runs by operation",
		},
		[]string{"tenant_id", "operation"},
	)

	// SegmentEvaluationDuration tracks segment evaluation duration.
	SegmentEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundraising",
			Subsystem: "segments",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of segment evaluation runs in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tenant_id"},
	)

	// SegmentCountCacheHits tracks cache lookups for segment counts.
	SegmentCountCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundraising",
			Subsystem: "segments",
			Name:      "count_cache_total",
			Help:      "Segment count cache lookups by result",
		},
		[]string{"result"},
	)

	// ImportRowsTotal tracks import row outcomes.
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundraising",
			Subsystem: "imports",
			Name:      "rows_total",
			Help:      "Total number of import rows by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	// ImportDuration tracks end-to-end import duration.
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundraising",
			Subsystem: "imports",
			Name:      "duration_seconds",
			Help:      "Duration of CSV imports in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tenant_id"},
	)

	// KafkaMessagesPublished tracks Kafka messages published.
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundraising",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundraising",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordDuplicateCheck records a duplicate detection run.
func RecordDuplicateCheck(tenantID, confidence string, durationSeconds float64) {
	DuplicateChecksTotal.WithLabelValues(tenantID, confidence).Inc()
	DuplicateCheckDuration.WithLabelValues(tenantID).Observe(durationSeconds)
}

// RecordSegmentEvaluation records a segment evaluation run.
func RecordSegmentEvaluation(tenantID, operation string, durationSeconds float64) {
	SegmentEvaluationsTotal.WithLabelValues(tenantID, operation).Inc()
	SegmentEvaluationDuration.WithLabelValues(tenantID).Observe(durationSeconds)
}

// RecordCountCacheLookup records a segment count cache lookup ("hit" or "miss").
func RecordCountCacheLookup(result string) {
	SegmentCountCacheHits.WithLabelValues(result).Inc()
}

// RecordImportRow records a single import row outcome (created, skipped_duplicate, failed).
func RecordImportRow(tenantID, outcome string) {
	ImportRowsTotal.WithLabelValues(tenantID, outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish operation.
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
