// Package metrics provides Prometheus metrics collection for the donor
// prediction engine. It defines and manages the prediction, training,
// monitoring, and data-plumbing metrics exposed on the metrics endpoint.
//
// Metrics are created through promauto so registration happens at
// construction; NewWithRegistry allows isolated registries in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction engine.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total single-model predictions generated
	PredictionFailures prometheus.Counter   // Total prediction attempts that errored
	EnsemblesTotal     prometheus.Counter   // Total ensemble predictions generated
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	ConfidenceScores   prometheus.Histogram // Distribution of prediction confidence
	CacheHits          prometheus.Counter   // Prediction cache hits (fresh entries)
	CacheStale         prometheus.Counter   // Cache entries past validity, regenerated

	// Training metrics
	TrainingRuns     prometheus.Counter   // Total completed training runs
	TrainingFailures prometheus.Counter   // Total failed training runs
	TrainingDuration prometheus.Histogram // Training run duration in seconds
	QueueDepth       prometheus.Gauge     // Jobs waiting in the training queue

	// Registry metrics
	ActiveModels   prometheus.Gauge // Models currently in active status
	RetrainingDue  prometheus.Gauge // Models flagged needs_retraining
	OldestModelAge prometheus.Gauge // Age in seconds of the oldest active model

	// Monitoring metrics
	MonitorPasses    prometheus.Counter // Completed monitoring passes
	MonitorErrors    prometheus.Counter // Per-model evaluation errors (skipped)
	AlertsRaised     prometheus.Counter // Alerts emitted by monitoring
	LastDriftScore   prometheus.Gauge   // Drift score of the most recent evaluation
	DegradationRatio prometheus.Gauge   // Degradation of the most recent evaluation

	// Data plumbing metrics
	DonationEvents   prometheus.Counter // Donation events consumed from the stream
	StreamReconnects prometheus.Counter // Stream reconnection attempts
	DatastoreErrors  prometheus.Counter // Donor datastore request failures
	OutcomesRecorded prometheus.Counter // Observed outcomes recorded

	// System metrics
	ErrorsTotal prometheus.Counter // Total errors across all components
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry (useful for
// testing without touching global state).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of single-model predictions generated",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of prediction attempts that errored",
		}),
		EnsemblesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ensembles_total",
			Help: "Total number of ensemble predictions generated",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ConfidenceScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_confidence",
			Help:    "Distribution of generated prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Prediction cache hits served without regeneration",
		}),
		CacheStale: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_stale_total",
			Help: "Cache entries found past validity and regenerated",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of failed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_queue_depth",
			Help: "Jobs currently waiting in the training queue",
		}),
		ActiveModels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registry_active_models",
			Help: "Number of models currently in active status",
		}),
		RetrainingDue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registry_models_needing_retraining",
			Help: "Number of models flagged needs_retraining",
		}),
		OldestModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registry_oldest_model_age_seconds",
			Help: "Age in seconds of the oldest active model",
		}),
		MonitorPasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_passes_total",
			Help: "Total number of completed monitoring passes",
		}),
		MonitorErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_model_errors_total",
			Help: "Per-model evaluation errors logged and skipped",
		}),
		AlertsRaised: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_total",
			Help: "Total number of alerts emitted by monitoring",
		}),
		LastDriftScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_last_drift_score",
			Help: "Drift score of the most recent model evaluation",
		}),
		DegradationRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_last_degradation_ratio",
			Help: "Performance degradation ratio of the most recent evaluation",
		}),
		DonationEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "donation_events_total",
			Help: "Donation events consumed from the datastore stream",
		}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_reconnects_total",
			Help: "Total number of stream reconnection attempts",
		}),
		DatastoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "datastore_errors_total",
			Help: "Donor datastore request failures",
		}),
		OutcomesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "outcomes_recorded_total",
			Help: "Observed prediction outcomes recorded",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// UpdateRegistryCounts refreshes the registry gauges from a status census.
func (m *Metrics) UpdateRegistryCounts(active, needsRetraining int, oldestAgeSeconds float64) {
	m.ActiveModels.Set(float64(active))
	m.RetrainingDue.Set(float64(needsRetraining))
	m.OldestModelAge.Set(oldestAgeSeconds)
}
