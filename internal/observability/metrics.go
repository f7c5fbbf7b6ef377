package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	quizAttemptsTotal    *prometheus.CounterVec
	projectReviewsTotal  *prometheus.CounterVec
	enrollmentConflicts  *prometheus.CounterVec
	eventsPublishedTotal *prometheus.CounterVec
	catalogCacheLookups  *prometheus.CounterVec
	artifactUploads      *prometheus.CounterVec
	artifactLatency      prometheus.Histogram
	streamConnections    prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_http_requests_total",
			Help: "Total number of skill course API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skills_http_latency_seconds",
			Help:    "Latency distribution for skill course API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_http_errors_total",
			Help: "Total number of error responses returned by skill course endpoints.",
		}, []string{"method", "route", "status"})

		quizAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_quiz_attempts_total",
			Help: "Quiz submissions graded, by round and outcome.",
		}, []string{"round", "outcome"})

		projectReviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_project_reviews_total",
			Help: "Project review verdicts committed, by status.",
		}, []string{"status"})

		enrollmentConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_enrollment_conflicts_total",
			Help: "Optimistic version conflicts on enrollment commits.",
		}, []string{"operation"})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_events_published_total",
			Help: "Progression events recorded, by type.",
		}, []string{"type"})

		catalogCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_catalog_cache_lookups_total",
			Help: "Catalog cache lookups, by result.",
		}, []string{"result"})

		artifactUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skills_artifact_uploads_total",
			Help: "Project artifact uploads, by outcome.",
		}, []string{"outcome"})

		artifactLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skills_artifact_upload_seconds",
			Help:    "Duration of project artifact uploads.",
			Buckets: prometheus.DefBuckets,
		})

		streamConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skills_progress_stream_connections",
			Help: "Open progress stream websocket connections.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			quizAttemptsTotal,
			projectReviewsTotal,
			enrollmentConflicts,
			eventsPublishedTotal,
			catalogCacheLookups,
			artifactUploads,
			artifactLatency,
			streamConnections,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// QuizAttempts exposes the quiz attempt counter.
func QuizAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return quizAttemptsTotal
}

// ProjectReviews exposes the review verdict counter.
func ProjectReviews() *prometheus.CounterVec {
	RegisterMetrics()
	return projectReviewsTotal
}

// EnrollmentConflicts exposes the optimistic conflict counter.
func EnrollmentConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentConflicts
}

// EventsPublished exposes the progression event counter.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// CatalogCacheLookups exposes the catalog cache hit/miss counter.
func CatalogCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return catalogCacheLookups
}

// ArtifactUploads exposes the artifact upload outcome counter.
func ArtifactUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return artifactUploads
}

// ArtifactLatency exposes the artifact upload duration histogram.
func ArtifactLatency() prometheus.Histogram {
	RegisterMetrics()
	return artifactLatency
}

// StreamConnections exposes the open progress stream gauge.
func StreamConnections() prometheus.Gauge {
	RegisterMetrics()
	return streamConnections
}
