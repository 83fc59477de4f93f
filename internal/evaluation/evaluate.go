package evaluation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"donorsense/internal/features"
	"donorsense/internal/model"
	"donorsense/internal/training"
)

// SegmentFeature is the feature that places donors into value tiers.
const SegmentFeature = "total_donated"

// Tier labels, lowest first.
const (
	SegmentLow  = "low_value"
	SegmentMid  = "mid_value"
	SegmentHigh = "high_value"
)

// OnDataset scores a fitted model against a labeled dataset, overall and by
// donor value tier. Time-window scoring needs per-observation timestamps
// which offline datasets do not carry, so ByTimeWindow stays empty here.
func OnDataset(m *model.PredictionModel, ds *model.TrainingDataSet) (model.PerformanceBreakdown, error) {
	var out model.PerformanceBreakdown
	if m == nil {
		return out, model.Validationf("model", "is required")
	}
	if ds == nil || len(ds.Samples) == 0 {
		return out, model.Validationf("dataset", "must not be empty")
	}

	est, err := training.Restore(m.Algorithm, m.Parameters)
	if err != nil {
		return out, fmt.Errorf("restore model %s: %w", m.ID, err)
	}

	preds := make([]float64, len(ds.Samples))
	actuals := make([]float64, len(ds.Samples))
	totals := make([]float64, len(ds.Samples))
	hasTotals := false
	for i, s := range ds.Samples {
		enc := features.EncodeMap(s.Features)
		preds[i] = m.Type.Clamp(est.Predict(features.Vector(m.Features, enc)))
		actuals[i] = s.Target
		if v, ok := enc[SegmentFeature]; ok {
			totals[i] = v
			hasTotals = true
		}
	}

	out.Overall = training.Scores(m.Type, preds, actuals)
	if hasTotals {
		out.BySegment = segmentBreakdown(m.Type, preds, actuals, totals)
	} else {
		out.BySegment = map[string]map[string]float64{}
	}
	out.ByTimeWindow = map[string]map[string]float64{}
	return out, nil
}

// SegmentFor maps a donor's total donated amount onto a value tier given
// the tier boundaries.
func SegmentFor(total, lowCut, highCut float64) string {
	switch {
	case total <= lowCut:
		return SegmentLow
	case total <= highCut:
		return SegmentMid
	default:
		return SegmentHigh
	}
}

// segmentBreakdown splits samples into terciles of total donated and scores
// each tier separately.
func segmentBreakdown(t model.ModelType, preds, actuals, totals []float64) map[string]map[string]float64 {
	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)
	lowCut := stat.Quantile(1.0/3.0, stat.Empirical, sorted, nil)
	highCut := stat.Quantile(2.0/3.0, stat.Empirical, sorted, nil)

	type group struct{ p, a []float64 }
	groups := map[string]*group{}
	for i := range preds {
		label := SegmentFor(totals[i], lowCut, highCut)
		g, ok := groups[label]
		if !ok {
			g = &group{}
			groups[label] = g
		}
		g.p = append(g.p, preds[i])
		g.a = append(g.a, actuals[i])
	}

	out := make(map[string]map[string]float64, len(groups))
	for label, g := range groups {
		out[label] = training.Scores(t, g.p, g.a)
	}
	return out
}
