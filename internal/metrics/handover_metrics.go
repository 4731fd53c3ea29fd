// Package metrics defines handover and delivery metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Handover counters
var (
	RunsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Total number of worker runs started",
	}, []string{"source"})

	HandoversTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handovers_total",
		Help:      "Total number of handovers from a superseded run",
	}, []string{"source"})

	StopRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stop_requests_total",
		Help:      "Pending stop requests by outcome",
	}, []string{"source", "outcome"})

	RunAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_attempts_total",
		Help:      "Cycle runner attempts by outcome",
	}, []string{"source", "outcome"})

	ActiveRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_runs",
		Help:      "Number of runs executing in this process",
	})
)

// Delivery counters
var (
	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Total number of alerts composed by band",
	}, []string{"source", "band"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of chat messages by outcome",
	}, []string{"outcome"})

	PublishedBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "published_batches_total",
		Help:      "Total number of downstream batches by sink and outcome",
	}, []string{"sink", "outcome"})

	TranslationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translations_total",
		Help:      "Total number of team name lookups by result",
	}, []string{"result"})
)

// RecordRunStarted records a run start and whether it superseded another run.
func RecordRunStarted(source string, handover bool) {
	RunsStartedTotal.WithLabelValues(source).Inc()
	if handover {
		HandoversTotal.WithLabelValues(source).Inc()
	}
}

// RecordStopRequest records the outcome of a pending stop request.
func RecordStopRequest(source, outcome string) {
	StopRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRunAttempt records the outcome of one cycle runner attempt.
func RecordRunAttempt(source, outcome string) {
	RunAttemptsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordAlert records a composed alert.
func RecordAlert(source, band string) {
	AlertsTotal.WithLabelValues(source, band).Inc()
}

// RecordNotification records a chat delivery outcome.
func RecordNotification(outcome string) {
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordPublish records a downstream publish outcome.
func RecordPublish(sink, outcome string) {
	PublishedBatchesTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordTranslation records a translation lookup result.
func RecordTranslation(result string) {
	TranslationsTotal.WithLabelValues(result).Inc()
}
