// Package monitor evaluates live model quality on a schedule: it flags
// stale models for retraining, compares recent outcomes against each
// model's validation benchmark and scores feature drift against the
// training baselines.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/features"
	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/registry"
	"donorsense/internal/storage"
	"donorsense/internal/training"
)

const (
	// outcomeLookback bounds how far back live outcomes count toward the
	// degradation check.
	outcomeLookback = 30 * 24 * time.Hour

	// minOutcomesForDegradation is the smallest outcome sample worth
	// scoring; below it the model is assumed to hold its validation
	// metric.
	minOutcomesForDegradation = 10
)

// PassSummary records the outcome of one monitoring sweep.
type PassSummary struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Evaluated   int       `json:"evaluated"`
	Failed      int       `json:"failed"`
}

// Evaluator inspects one model at a time and writes its findings to the
// datastore. The scheduler drives it across the whole registry.
type Evaluator struct {
	reg    *registry.Registry
	store  *storage.Store
	window *features.Window
	mw     *metrics.MetricsWrapper

	mu       sync.Mutex
	lastPass *PassSummary
}

func NewEvaluator(reg *registry.Registry, store *storage.Store, window *features.Window, mw *metrics.MetricsWrapper) *Evaluator {
	return &Evaluator{reg: reg, store: store, window: window, mw: mw}
}

// RunPass evaluates every non-retired model. A failure on one model is
// logged and skipped; it never aborts the rest of the pass.
func (e *Evaluator) RunPass(ctx context.Context) {
	now := time.Now().UTC()
	evaluated, failed := 0, 0
	for _, m := range e.reg.All() {
		if ctx.Err() != nil {
			log.Warn().Msg("Monitoring pass interrupted by shutdown")
			break
		}
		if m.Status == model.StatusRetired {
			continue
		}
		if _, err := e.Evaluate(m, now); err != nil {
			failed++
			if e.mw != nil {
				e.mw.MonitorErrorsInc()
			}
			log.Error().Err(err).Str("model", m.ID).Msg("Model evaluation failed, skipping")
			continue
		}
		evaluated++
	}
	if e.mw != nil {
		e.mw.MonitorPassesInc()
	}

	e.mu.Lock()
	e.lastPass = &PassSummary{
		StartedAt:   now,
		CompletedAt: time.Now().UTC(),
		Evaluated:   evaluated,
		Failed:      failed,
	}
	e.mu.Unlock()

	log.Info().Int("evaluated", evaluated).Int("failed", failed).Msg("Monitoring pass complete")
}

// LastPass returns a copy of the most recent pass summary, or nil when no
// pass has run yet.
func (e *Evaluator) LastPass() *PassSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastPass == nil {
		return nil
	}
	out := *e.lastPass
	return &out
}

// Evaluate builds, persists and returns the performance report for one
// model, raising alerts and flipping the status to needs_retraining where
// the thresholds say so.
func (e *Evaluator) Evaluate(m *model.PredictionModel, now time.Time) (*model.ModelPerformanceReport, error) {
	if m == nil {
		return nil, model.Validationf("model", "is required")
	}

	outcomes, err := e.store.OutcomesInRange(m.ID, now.Add(-outcomeLookback), now)
	if err != nil {
		return nil, fmt.Errorf("load outcomes for %s: %w", m.ID, err)
	}

	benchmark := m.ValidationMetric()
	overall := copyMetrics(m.Performance)
	current := benchmark
	degradation := 0.0
	if len(outcomes) >= minOutcomesForDegradation {
		pred := make([]float64, len(outcomes))
		actual := make([]float64, len(outcomes))
		for i, o := range outcomes {
			pred[i] = o.Predicted
			actual[i] = o.Actual
		}
		overall = training.Scores(m.Type, pred, actual)
		current = training.PrimaryScore(m.Type, overall)
		if benchmark > 0 && current < benchmark {
			degradation = (benchmark - current) / benchmark
		}
	}

	drift := e.driftScore(m)
	age := m.Age(now)

	var alerts []model.Alert
	var recs []model.Recommendation

	if age > common.RetrainAfter {
		priority := model.SeverityMedium
		if age > common.RetrainUrgentAfter {
			priority = model.SeverityHigh
		}
		recs = append(recs, model.Recommendation{
			Type:                model.RecommendRetraining,
			Priority:            priority,
			Description:         fmt.Sprintf("Model is %d days old (last trained %s); retrain on current donor data", int(age.Hours()/24), m.LastTrainedAt.Format("2006-01-02")),
			ExpectedImprovement: capped(0.05+degradation, 0.30),
		})
		if m.Status == model.StatusActive {
			if err := e.reg.SetStatus(m.ID, model.StatusNeedsRetraining); err != nil {
				return nil, fmt.Errorf("flag %s for retraining: %w", m.ID, err)
			}
		}
	}

	metricName := "r2"
	if m.Type.IsProbability() {
		metricName = "accuracy"
	}
	if degradation > common.DegradationMedium {
		severity := model.SeverityMedium
		action := degradation > common.DegradationAction
		if degradation > common.DegradationHigh {
			severity = model.SeverityHigh
			action = true
		}
		alerts = append(alerts, newAlert(m.ID, model.AlertPerformanceDegradation, severity,
			fmt.Sprintf("Live %s dropped %.1f%% below the validation benchmark (%.3f -> %.3f)",
				metricName, degradation*100, benchmark, current), action, now))
		recs = append(recs, model.Recommendation{
			Type:                model.RecommendHyperparamTune,
			Priority:            severity,
			Description:         "Recent outcomes score below the validation benchmark; revisit hyperparameters before the next training run",
			ExpectedImprovement: capped(degradation/2, 0.15),
		})
	}

	if drift > common.DriftMedium {
		severity := model.SeverityMedium
		action := drift > common.DriftAction
		if drift > common.DriftHigh {
			severity = model.SeverityHigh
			action = true
		}
		alerts = append(alerts, newAlert(m.ID, model.AlertDataDrift, severity,
			fmt.Sprintf("Incoming donor features diverge from the training distribution (drift score %.2f)", drift), action, now))
		recs = append(recs, model.Recommendation{
			Type:                model.RecommendFeatureEng,
			Priority:            severity,
			Description:         "Feature distributions have shifted since training; review feature definitions and refresh the training window",
			ExpectedImprovement: capped(drift*0.25, 0.20),
		})
	}

	report := &model.ModelPerformanceReport{
		ModelID:     m.ID,
		GeneratedAt: now,
		Performance: model.PerformanceBreakdown{
			Overall:      overall,
			BySegment:    segmentScores(m.Type, outcomes),
			ByTimeWindow: timeWindowScores(m.Type, outcomes, now),
		},
		Recommendations: recs,
		Alerts:          alerts,
	}

	if err := e.store.SaveReport(report); err != nil {
		return nil, fmt.Errorf("persist report for %s: %w", m.ID, err)
	}
	for _, a := range alerts {
		if err := e.store.SaveAlert(a); err != nil {
			if e.mw != nil {
				e.mw.DatastoreErrorsInc()
			}
			log.Warn().Err(err).Str("model", m.ID).Str("alert", string(a.Type)).Msg("Failed to persist alert")
			continue
		}
		if e.mw != nil {
			e.mw.AlertsRaisedInc()
		}
		log.Warn().
			Str("model", m.ID).
			Str("alert", string(a.Type)).
			Str("severity", string(a.Severity)).
			Bool("action_required", a.ActionRequired).
			Msg(a.Message)
	}

	if e.mw != nil {
		e.mw.DriftScoreSet(drift)
		e.mw.DegradationSet(degradation)
	}
	return report, nil
}

// driftScore averages per-feature PSI scores against the histograms the
// model captured at training time. Features the live window has not seen
// yet are skipped; no data means no drift.
func (e *Evaluator) driftScore(m *model.PredictionModel) float64 {
	if e.window == nil || e.window.Len() == 0 || len(m.Baseline) == 0 {
		return 0
	}
	var sum float64
	counted := 0
	for _, f := range m.Features {
		b, ok := m.Baseline[f]
		if !ok || len(b.Buckets) == 0 {
			continue
		}
		if len(e.window.Values(f)) == 0 {
			continue
		}
		live := e.window.Histogram(f, b.Min, b.Max, len(b.Buckets))
		sum += psiScore(b.Buckets, live)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func newAlert(modelID string, t model.AlertType, severity model.Severity, msg string, action bool, now time.Time) model.Alert {
	return model.Alert{
		ID:             uuid.NewString(),
		ModelID:        modelID,
		Type:           t,
		Severity:       severity,
		Message:        msg,
		ActionRequired: action,
		CreatedAt:      now,
	}
}

func segmentScores(t model.ModelType, outcomes []model.Outcome) map[string]map[string]float64 {
	groups := map[string][]model.Outcome{}
	for _, o := range outcomes {
		if o.Segment == "" {
			continue
		}
		groups[o.Segment] = append(groups[o.Segment], o)
	}
	out := make(map[string]map[string]float64, len(groups))
	for seg, group := range groups {
		out[seg] = scoreOutcomes(t, group)
	}
	return out
}

func timeWindowScores(t model.ModelType, outcomes []model.Outcome, now time.Time) map[string]map[string]float64 {
	windows := []struct {
		label string
		d     time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
		{"90d", 90 * 24 * time.Hour},
	}
	out := map[string]map[string]float64{}
	for _, w := range windows {
		var group []model.Outcome
		cutoff := now.Add(-w.d)
		for _, o := range outcomes {
			if o.ObservedAt.After(cutoff) {
				group = append(group, o)
			}
		}
		if len(group) == 0 {
			continue
		}
		out[w.label] = scoreOutcomes(t, group)
	}
	return out
}

func scoreOutcomes(t model.ModelType, outcomes []model.Outcome) map[string]float64 {
	pred := make([]float64, len(outcomes))
	actual := make([]float64, len(outcomes))
	for i, o := range outcomes {
		pred[i] = o.Predicted
		actual[i] = o.Actual
	}
	return training.Scores(t, pred, actual)
}

func copyMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func capped(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
