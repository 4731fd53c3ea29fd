// Package metrics provides centralized Prometheus metrics registry for the odds watcher.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "odds_watch"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	CyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Total number of completed cycles",
	}, []string{"source"})
	RecordsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_emitted_total",
		Help:      "Total number of new or changed records emitted",
	}, []string{"source"})
	GamesEndedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_ended_total",
		Help:      "Total number of games evicted as ended",
	}, []string{"source"})
	ExtractionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_failures_total",
		Help:      "Total number of failed extractions",
	}, []string{"source", "kind"})
	UnchangedPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unchanged_pages_total",
		Help:      "Total number of cycles skipped because the page did not change",
	}, []string{"source"})
	SessionRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_restarts_total",
		Help:      "Total number of browser session restarts",
	}, []string{"source", "reason"})
	SideEffectFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "side_effect_failures_total",
		Help:      "Total number of storage, notify and publish failures",
	}, []string{"source", "operation"})
)

// Gauge metrics
var (
	TrackedQuietGames = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_quiet_games",
		Help:      "Number of games currently missing but not yet ended",
	}, []string{"source"})
	LiveGames = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_games",
		Help:      "Number of games in the latest snapshot",
	}, []string{"source"})
	SessionConnectionErrors = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_connection_errors",
		Help:      "Consecutive connection errors counted by the session breaker",
	}, []string{"source"})
)

// Histogram metrics
var (
	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one extraction to publish cycle in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register cycle metrics
		registry.MustRegister(CyclesTotal)
		registry.MustRegister(RecordsEmittedTotal)
		registry.MustRegister(GamesEndedTotal)
		registry.MustRegister(ExtractionFailuresTotal)
		registry.MustRegister(UnchangedPagesTotal)
		registry.MustRegister(SessionRestartsTotal)
		registry.MustRegister(SideEffectFailuresTotal)
		registry.MustRegister(TrackedQuietGames)
		registry.MustRegister(LiveGames)
		registry.MustRegister(SessionConnectionErrors)
		registry.MustRegister(CycleDuration)

		// Register handover and delivery metrics
		registry.MustRegister(RunsStartedTotal)
		registry.MustRegister(HandoversTotal)
		registry.MustRegister(StopRequestsTotal)
		registry.MustRegister(RunAttemptsTotal)
		registry.MustRegister(ActiveRuns)
		registry.MustRegister(AlertsTotal)
		registry.MustRegister(NotificationsTotal)
		registry.MustRegister(PublishedBatchesTotal)
		registry.MustRegister(TranslationsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordCycle records a completed cycle.
func RecordCycle(source string, durationSeconds float64, games, emitted, ended, quiet int) {
	CyclesTotal.WithLabelValues(source).Inc()
	CycleDuration.WithLabelValues(source).Observe(durationSeconds)
	LiveGames.WithLabelValues(source).Set(float64(games))
	TrackedQuietGames.WithLabelValues(source).Set(float64(quiet))
	if emitted > 0 {
		RecordsEmittedTotal.WithLabelValues(source).Add(float64(emitted))
	}
	if ended > 0 {
		GamesEndedTotal.WithLabelValues(source).Add(float64(ended))
	}
}

// RecordExtractionFailure records a failed extraction.
func RecordExtractionFailure(source, kind string) {
	ExtractionFailuresTotal.WithLabelValues(source, kind).Inc()
}

// RecordUnchangedPage records a cycle skipped by the page change gate.
func RecordUnchangedPage(source string) {
	UnchangedPagesTotal.WithLabelValues(source).Inc()
}

// RecordSessionRestart records a browser session restart.
func RecordSessionRestart(source, reason string) {
	SessionRestartsTotal.WithLabelValues(source, reason).Inc()
}

// RecordSideEffectFailure records a failed storage, notify or publish call.
func RecordSideEffectFailure(source, operation string) {
	SideEffectFailuresTotal.WithLabelValues(source, operation).Inc()
}

// UpdateConnectionErrors updates the session breaker gauge.
func UpdateConnectionErrors(source string, count int) {
	SessionConnectionErrors.WithLabelValues(source).Set(float64(count))
}
