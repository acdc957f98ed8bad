package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	ingestTotal    *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	fragmentsTotal prometheus.Gauge

	searchTotal    prometheus.Counter
	searchDuration prometheus.Histogram

	activeSessions prometheus.Gauge
	turnsTotal     *prometheus.CounterVec

	collaboratorErrors *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			ingestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docuchat_ingest_total",
					Help: "Total document ingestions by outcome.",
				},
				[]string{"status"},
			),
			ingestDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "docuchat_ingest_duration_seconds",
					Help:    "Document ingestion duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			fragmentsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "docuchat_fragments_total",
					Help: "Current fragment count in the vector store.",
				},
			),
			searchTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "docuchat_search_total",
					Help: "Total similarity searches.",
				},
			),
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "docuchat_search_duration_seconds",
					Help:    "Similarity search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "docuchat_active_sessions",
					Help: "Current in-memory session count.",
				},
			),
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docuchat_chat_turns_total",
					Help: "Total chat turns by orchestrator variant.",
				},
				[]string{"variant"},
			),
			collaboratorErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docuchat_collaborator_errors_total",
					Help: "Total errors from external collaborators.",
				},
				[]string{"collaborator"},
			),
		}

		prometheus.MustRegister(
			m.ingestTotal,
			m.ingestDuration,
			m.fragmentsTotal,
			m.searchTotal,
			m.searchDuration,
			m.activeSessions,
			m.turnsTotal,
			m.collaboratorErrors,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered forces metric registration. Safe to call from
// every constructor; registration happens once.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func Handler() http.Handler {
	getMetrics()
	return promhttp.Handler()
}

// RecordIngest records a completed ingestion with its terminal status.
func RecordIngest(status string, d time.Duration) {
	m := getMetrics()
	m.ingestTotal.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(d.Seconds())
}

// SetFragmentCount updates the stored fragment gauge.
func SetFragmentCount(n int) {
	getMetrics().fragmentsTotal.Set(float64(n))
}

// RecordSearch records a similarity search.
func RecordSearch(d time.Duration) {
	m := getMetrics()
	m.searchTotal.Inc()
	m.searchDuration.Observe(d.Seconds())
}

// SetActiveSessions updates the session gauge.
func SetActiveSessions(n int) {
	getMetrics().activeSessions.Set(float64(n))
}

// RecordChatTurn records a completed chat turn for a variant.
func RecordChatTurn(variant string) {
	getMetrics().turnsTotal.WithLabelValues(variant).Inc()
}

// RecordCollaboratorError records a failure from an external collaborator.
func RecordCollaboratorError(collaborator string) {
	getMetrics().collaboratorErrors.WithLabelValues(collaborator).Inc()
}
