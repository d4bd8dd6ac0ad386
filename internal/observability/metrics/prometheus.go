// Package metrics provides Prometheus metrics for the prescription service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	GenerationsTotal   prometheus.Counter
	GenerationsFailed  prometheus.Counter
	ParseFallbacks     prometheus.Counter
	SavesTotal         prometheus.Counter
	SavesFailed        prometheus.Counter
	RemoteSaveFailures prometheus.Counter
	LocalSaveFailures  prometheus.Counter
	LearningEmitted    prometheus.Counter
	LearningFailed     prometheus.Counter
	EventsPublished    prometheus.Counter
	SaveDuration       prometheus.Histogram
	IndexEntries       prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		GenerationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_generations_total",
			Help: "Total AI draft generations completed",
		}),
		GenerationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_generations_failed_total",
			Help: "Total AI draft generations that failed upstream",
		}),
		ParseFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_parse_fallbacks_total",
			Help: "Generations that fell back to the canned draft",
		}),
		SavesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_saves_total",
			Help: "Total prescription saves accepted",
		}),
		SavesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_saves_failed_total",
			Help: "Saves that failed on every sink",
		}),
		RemoteSaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_remote_save_failures_total",
			Help: "Remote registry writes that failed",
		}),
		LocalSaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_local_save_failures_total",
			Help: "Local store writes that failed",
		}),
		LearningEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learning_feedback_emitted_total",
			Help: "Learning feedback records emitted",
		}),
		LearningFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learning_feedback_failed_total",
			Help: "Learning feedback emissions that failed",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_events_published_total",
			Help: "Events published to the stream",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prescription_save_duration_seconds",
			Help:    "End to end save duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		IndexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "prescription_index_entries",
			Help: "Entries currently held in the summary index",
		}),
	}

	prometheus.MustRegister(
		m.GenerationsTotal,
		m.GenerationsFailed,
		m.ParseFallbacks,
		m.SavesTotal,
		m.SavesFailed,
		m.RemoteSaveFailures,
		m.LocalSaveFailures,
		m.LearningEmitted,
		m.LearningFailed,
		m.EventsPublished,
		m.SaveDuration,
		m.IndexEntries,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
