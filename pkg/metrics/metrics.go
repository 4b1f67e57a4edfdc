// Package metrics defines the Prometheus collectors drivesync exports and an
// HTTP server for scraping them alongside the health endpoints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
)

type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	LastSuccess         *prometheus.GaugeVec
	EntryOutcomesTotal  *prometheus.CounterVec
	ManifestEntries     prometheus.Gauge
	SinkUploadsTotal    *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivesync_cycles_total",
				Help: "Completed stage cycles by stage and status.",
			},
			[]string{"stage", "status"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivesync_cycle_duration_seconds",
				Help:    "Stage cycle duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "drivesync_last_success_timestamp_seconds",
				Help: "Unix time of the last cycle per stage that was not failed.",
			},
			[]string{"stage"},
		),
		EntryOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivesync_entry_outcomes_total",
				Help: "Reconciled manifest entries by outcome.",
			},
			[]string{"outcome"},
		),
		ManifestEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivesync_manifest_entries",
				Help: "Entries in the most recently written manifest.",
			},
		),
		SinkUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivesync_sink_uploads_total",
				Help: "Sink uploads by artifact kind (manifest, record) and result (ok, error).",
			},
			[]string{"artifact", "result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "drivesync_circuit_breaker_state",
				Help: "Sink circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.LastSuccess,
		m.EntryOutcomesTotal,
		m.ManifestEntries,
		m.SinkUploadsTotal,
		m.CircuitBreakerState,
	)
	return m
}

// ObserveReport records a finished cycle.
func (m *Metrics) ObserveReport(r *report.Report) {
	m.CyclesTotal.WithLabelValues(r.Stage, string(r.Status)).Inc()
	m.CycleDuration.WithLabelValues(r.Stage).Observe(r.Duration().Seconds())
	if r.Status != report.StatusFailed {
		m.LastSuccess.WithLabelValues(r.Stage).Set(float64(r.FinishedAt.Unix()))
	}
	for _, e := range r.Entries {
		m.EntryOutcomesTotal.WithLabelValues(string(e.Outcome)).Inc()
	}
}

// ObserveUpload counts one sink upload attempt.
func (m *Metrics) ObserveUpload(artifact string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SinkUploadsTotal.WithLabelValues(artifact, result).Inc()
}

// ObserveManifest records the size of a freshly written manifest.
func (m *Metrics) ObserveManifest(entries int) {
	m.ManifestEntries.Set(float64(entries))
}

// Handler returns the scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
