// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ChecklistsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklists_generated_total",
			Help: "Total checklists produced, labeled by rule set source",
		},
		[]string{"source"},
	)

	ChecklistValidationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_validation_outcomes_total",
			Help: "Enriched checklist validation results by outcome (parsed, repaired, failed)",
		},
		[]string{"outcome"},
	)

	ChecklistDriftDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checklist_drift_dropped_total",
			Help: "Enriched items dropped because they were not in the resolved base set",
		},
	)

	ChecklistDriftSynthesized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checklist_drift_synthesized_total",
			Help: "Base items synthesized because the enriched payload omitted them",
		},
	)

	VerificationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_verdicts_total",
			Help: "Document verification verdicts by status",
		},
		[]string{"status"},
	)

	CollaboratorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collaborator_request_duration_seconds",
			Help:    "Latency of collaborator service calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Rule catalog cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
