package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the pharmacovigilance service.
// Metrics are organized by subsystem: scans, results, reviews, articles,
// PubMed requests, and notifications. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// ScansStarted counts rule evaluation passes initiated, labeled by trigger
	// (manual, scheduled).
	ScansStarted *prometheus.CounterVec

	// ScansCompleted counts rule evaluation passes that finished successfully,
	// labeled by trigger.
	ScansCompleted *prometheus.CounterVec

	// ScansFailed counts rule evaluation passes that ended in failure, labeled
	// by trigger.
	ScansFailed *prometheus.CounterVec

	// ScansConflicted counts evaluation requests rejected because the rule was
	// already being evaluated.
	ScansConflicted prometheus.Counter

	// ScanDuration observes the end-to-end duration of evaluation passes in seconds.
	ScanDuration prometheus.Histogram

	// ArticlesScanned observes the number of articles examined per evaluation pass.
	ArticlesScanned prometheus.Histogram

	// MatchesPerScan observes the number of matched articles per evaluation pass.
	MatchesPerScan prometheus.Histogram

	// ResultsCreated counts new search results recorded.
	ResultsCreated prometheus.Counter

	// ResultsRefreshed counts existing search results updated by re-evaluation.
	ResultsRefreshed prometheus.Counter

	// ReviewTransitions counts reviewer actions, labeled by resulting status.
	ReviewTransitions *prometheus.CounterVec

	// ArticlesSynced counts articles ingested from upstream sources, labeled by source.
	ArticlesSynced *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to upstream article sources,
	// labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to upstream article
	// sources, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to upstream article
	// sources in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from upstream sources,
	// labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// NotificationsSent counts digest notifications delivered, labeled by channel.
	NotificationsSent *prometheus.CounterVec

	// NotificationsFailed counts digest notifications that failed to deliver,
	// labeled by channel.
	NotificationsFailed *prometheus.CounterVec

	// EventsPublished counts domain events published to the broker, labeled by
	// event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts domain events that could not be published, labeled by
	// event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Scans
		ScansStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Total number of rule evaluation passes started by trigger",
		}, []string{"trigger"}),
		ScansCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_completed_total",
			Help:      "Total number of rule evaluation passes completed successfully by trigger",
		}, []string{"trigger"}),
		ScansFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_failed_total",
			Help:      "Total number of rule evaluation passes that failed by trigger",
		}, []string{"trigger"}),
		ScansConflicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_conflicted_total",
			Help:      "Total number of evaluation requests rejected because the rule was already running",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of rule evaluation passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ArticlesScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_scanned_per_scan",
			Help:      "Number of articles examined per evaluation pass",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),
		MatchesPerScan: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matches_per_scan",
			Help:      "Number of matched articles per evaluation pass",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),

		// Results
		ResultsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_created_total",
			Help:      "Total number of new search results recorded",
		}),
		ResultsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_refreshed_total",
			Help:      "Total number of existing search results refreshed by re-evaluation",
		}),

		// Reviews
		ReviewTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_transitions_total",
			Help:      "Total number of reviewer actions by resulting status",
		}, []string{"status"}),

		// Articles
		ArticlesSynced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_synced_total",
			Help:      "Total number of articles ingested by source",
		}, []string{"source"}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to upstream article sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to upstream article sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to upstream article sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from upstream sources",
		}, []string{"source"}),

		// Notifications
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of digest notifications delivered by channel",
		}, []string{"channel"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of digest notifications that failed by channel",
		}, []string{"channel"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of domain events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of domain events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordScanStarted records that an evaluation pass has started.
func (m *Metrics) RecordScanStarted(trigger string) {
	m.ScansStarted.WithLabelValues(trigger).Inc()
}

// RecordScanCompleted records that an evaluation pass has completed.
func (m *Metrics) RecordScanCompleted(trigger string, articlesScanned, matches int, durationSeconds float64) {
	m.ScansCompleted.WithLabelValues(trigger).Inc()
	m.ScanDuration.Observe(durationSeconds)
	m.ArticlesScanned.Observe(float64(articlesScanned))
	m.MatchesPerScan.Observe(float64(matches))
}

// RecordScanFailed records that an evaluation pass has failed.
func (m *Metrics) RecordScanFailed(trigger string, durationSeconds float64) {
	m.ScansFailed.WithLabelValues(trigger).Inc()
	m.ScanDuration.Observe(durationSeconds)
}

// RecordScanConflicted records a rejected evaluation request.
func (m *Metrics) RecordScanConflicted() {
	m.ScansConflicted.Inc()
}

// RecordResultsRecorded records created and refreshed results in a single call.
func (m *Metrics) RecordResultsRecorded(created, refreshed int) {
	m.ResultsCreated.Add(float64(created))
	m.ResultsRefreshed.Add(float64(refreshed))
}

// RecordReviewTransition records a reviewer action.
func (m *Metrics) RecordReviewTransition(status string) {
	m.ReviewTransitions.WithLabelValues(status).Inc()
}

// RecordArticlesSynced records articles ingested from a source.
func (m *Metrics) RecordArticlesSynced(source string, count int) {
	m.ArticlesSynced.WithLabelValues(source).Add(float64(count))
}

// RecordSourceRequest records a request to an upstream source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an upstream source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordNotificationSent records a delivered notification.
func (m *Metrics) RecordNotificationSent(channel string) {
	m.NotificationsSent.WithLabelValues(channel).Inc()
}

// RecordNotificationFailed records a failed notification.
func (m *Metrics) RecordNotificationFailed(channel string) {
	m.NotificationsFailed.WithLabelValues(channel).Inc()
}

// RecordEventPublished records a published domain event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a domain event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
