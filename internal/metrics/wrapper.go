package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper exposes the engine metrics through the narrow sink
// interfaces the prediction, training, monitoring and stream packages
// declare for themselves.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) Predictions() MetricsCounter {
	return &CounterWrapper{w.m.PredictionsTotal}
}

func (w *MetricsWrapper) QueueDepth() MetricsGauge {
	return &GaugeWrapper{w.m.QueueDepth}
}

func (w *MetricsWrapper) PredictionLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.PredictionLatency}
}

// Prediction sinks

func (w *MetricsWrapper) PredictionsInc()          { w.m.PredictionsTotal.Inc() }
func (w *MetricsWrapper) PredictionFailuresInc()   { w.m.PredictionFailures.Inc() }
func (w *MetricsWrapper) EnsemblesInc()            { w.m.EnsemblesTotal.Inc() }
func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}
func (w *MetricsWrapper) ConfidenceObserve(c float64) { w.m.ConfidenceScores.Observe(c) }
func (w *MetricsWrapper) CacheHitsInc()               { w.m.CacheHits.Inc() }
func (w *MetricsWrapper) CacheStaleInc()              { w.m.CacheStale.Inc() }

// Training sinks

func (w *MetricsWrapper) TrainingRunsInc()     { w.m.TrainingRuns.Inc() }
func (w *MetricsWrapper) TrainingFailuresInc() { w.m.TrainingFailures.Inc() }
func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}
func (w *MetricsWrapper) QueueDepthSet(depth float64) { w.m.QueueDepth.Set(depth) }

// Monitoring sinks

func (w *MetricsWrapper) MonitorPassesInc()       { w.m.MonitorPasses.Inc() }
func (w *MetricsWrapper) MonitorErrorsInc()       { w.m.MonitorErrors.Inc() }
func (w *MetricsWrapper) AlertsRaisedInc()        { w.m.AlertsRaised.Inc() }
func (w *MetricsWrapper) DriftScoreSet(s float64) { w.m.LastDriftScore.Set(s) }
func (w *MetricsWrapper) DegradationSet(d float64) {
	w.m.DegradationRatio.Set(d)
}
func (w *MetricsWrapper) RegistryCounts(active, needsRetraining int, oldestAgeSeconds float64) {
	w.m.UpdateRegistryCounts(active, needsRetraining, oldestAgeSeconds)
}

// Data plumbing sinks

func (w *MetricsWrapper) DonationEventsInc()   { w.m.DonationEvents.Inc() }
func (w *MetricsWrapper) StreamReconnectsInc() { w.m.StreamReconnects.Inc() }
func (w *MetricsWrapper) DatastoreErrorsInc()  { w.m.DatastoreErrors.Inc() }
func (w *MetricsWrapper) OutcomesRecordedInc() { w.m.OutcomesRecorded.Inc() }
func (w *MetricsWrapper) ErrorsInc()           { w.m.ErrorsTotal.Inc() }

// Raw accessors for components that take the prometheus types directly.

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() { cw.c.Inc() }

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) { gw.g.Set(v) }
func (gw *GaugeWrapper) Add(v float64) { gw.g.Add(v) }

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) { hw.h.Observe(v) }
