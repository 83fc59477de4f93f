// Package predict turns registered models into donor-level predictions
// with confidence scores, contributing factors and plain-text reasoning.
package predict

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/features"
	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/training"
)

const (
	// Confidence blends how well the model validated with how much of the
	// feature vector the donor actually populated.
	confMetricWeight   = 0.6
	confCoverageWeight = 0.4

	// Models older than common.RetrainAfter lose confidence linearly until
	// the multiplier bottoms out.
	recencyFloor = 0.5
	recencyDecay = 270 * 24 * time.Hour

	maxReasons = 3
	maxFactors = 5
)

// Engine generates predictions for single donors and keeps the most recent
// one per donor and model in an in-memory cache.
type Engine struct {
	cache *Cache
	mw    *metrics.MetricsWrapper
}

func NewEngine(cache *Cache, mw *metrics.MetricsWrapper) *Engine {
	if cache == nil {
		cache = NewCache()
	}
	return &Engine{cache: cache, mw: mw}
}

// Predict scores one donor with one model. A cached prediction that is still
// inside its validity window is served as-is; a stale one is regenerated
// from the supplied features and overwritten.
func (e *Engine) Predict(m *model.PredictionModel, donorID string, raw map[string]model.Value) (*model.DonorPrediction, error) {
	if m == nil {
		return nil, model.Validationf("model", "is required")
	}
	if donorID == "" {
		return nil, model.Validationf("donor_id", "is required")
	}

	now := time.Now().UTC()
	if cached, ok := e.cache.Get(donorID, m.ID); ok {
		if !cached.Stale(now) {
			if e.mw != nil {
				e.mw.CacheHitsInc()
			}
			return &cached, nil
		}
		if e.mw != nil {
			e.mw.CacheStaleInc()
		}
	}

	p, err := e.generate(m, donorID, raw, now)
	if err != nil {
		if e.mw != nil {
			e.mw.PredictionFailuresInc()
		}
		return nil, err
	}

	e.cache.Put(*p)
	if e.mw != nil {
		e.mw.PredictionsInc()
		e.mw.ConfidenceObserve(p.Confidence)
		e.mw.PredictionLatencyObserve(time.Since(now).Seconds())
	}
	log.Debug().
		Str("donor", donorID).
		Str("model", m.ID).
		Str("type", string(m.Type)).
		Float64("prediction", p.Prediction).
		Float64("confidence", p.Confidence).
		Msg("Prediction generated")
	return p, nil
}

// DonorPredictions returns every cached prediction for a donor, newest
// first. Entries past ValidUntil are included; it is the caller's job to
// check them.
func (e *Engine) DonorPredictions(donorID string) []model.DonorPrediction {
	return e.cache.DonorPredictions(donorID)
}

func (e *Engine) generate(m *model.PredictionModel, donorID string, raw map[string]model.Value, now time.Time) (*model.DonorPrediction, error) {
	if len(m.Parameters) == 0 {
		return nil, fmt.Errorf("model %s carries no fitted parameters", m.ID)
	}

	est, err := training.Restore(m.Algorithm, m.Parameters)
	if err != nil {
		return nil, fmt.Errorf("restore model %s: %w", m.ID, err)
	}

	encoded := features.EncodeMap(raw)
	vec := features.Vector(m.Features, encoded)

	value := est.Predict(vec)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("model %s produced a non-finite prediction", m.ID)
	}
	value = m.Type.Clamp(value)

	return &model.DonorPrediction{
		DonorID:     donorID,
		ModelID:     m.ID,
		Type:        m.Type,
		Prediction:  value,
		Confidence:  confidenceFor(m, vec, now),
		Reasoning:   reasoningFor(m, encoded),
		Factors:     factorsFor(m, encoded),
		GeneratedAt: now,
		ValidUntil:  now.Add(m.Type.TTL()),
	}, nil
}

// confidenceFor blends the model's validation metric with feature coverage,
// then discounts for model age.
func confidenceFor(m *model.PredictionModel, vec []float64, now time.Time) float64 {
	metric := m.ValidationMetric()
	if metric < 0 {
		metric = 0
	} else if metric > 1 {
		metric = 1
	}

	coverage := 0.0
	if len(vec) > 0 {
		nonZero := 0
		for _, v := range vec {
			if v != 0 {
				nonZero++
			}
		}
		coverage = float64(nonZero) / float64(len(vec))
	}

	conf := (confMetricWeight*metric + confCoverageWeight*coverage) * recencyMultiplier(m.Age(now))
	if conf < common.MinConfidence {
		return common.MinConfidence
	}
	if conf > common.MaxConfidence {
		return common.MaxConfidence
	}
	return conf
}

func recencyMultiplier(age time.Duration) float64 {
	excess := age - common.RetrainAfter
	if excess <= 0 {
		return 1
	}
	frac := float64(excess) / float64(recencyDecay)
	if frac > 1 {
		frac = 1
	}
	return 1 - frac*(1-recencyFloor)
}

// reasoningFor describes the model's strongest stored importances alongside
// the values this donor presented for them.
func reasoningFor(m *model.PredictionModel, encoded map[string]float64) []string {
	ranked := rankedImportances(m)
	if len(ranked) > maxReasons {
		ranked = ranked[:maxReasons]
	}
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, fmt.Sprintf("%s (observed %.2f) carries %.0f%% of the model's weight",
			r.name, encoded[r.name], r.importance*100))
	}
	return out
}

// factorsFor scores each model feature by how far the donor sits from the
// training baseline, signed by direction and scaled by stored importance.
func factorsFor(m *model.PredictionModel, encoded map[string]float64) []model.Factor {
	ranked := rankedImportances(m)
	out := make([]model.Factor, 0, len(ranked))
	for _, r := range ranked {
		v := encoded[r.name]
		z := 0.0
		if b, ok := m.Baseline[r.name]; ok && b.StdDev > 0 {
			z = (v - b.Mean) / b.StdDev
		}
		impact := r.importance * math.Tanh(z)
		if impact > 1 {
			impact = 1
		} else if impact < -1 {
			impact = -1
		}
		out = append(out, model.Factor{Feature: r.name, Impact: impact, Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Impact), math.Abs(out[j].Impact)
		if ai != aj {
			return ai > aj
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > maxFactors {
		out = out[:maxFactors]
	}
	return out
}

type rankedImportance struct {
	name       string
	importance float64
}

func rankedImportances(m *model.PredictionModel) []rankedImportance {
	imp := m.TrainingData.FeatureImportance
	out := make([]rankedImportance, 0, len(m.Features))
	for _, f := range m.Features {
		out = append(out, rankedImportance{name: f, importance: imp[f]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].importance != out[j].importance {
			return out[i].importance > out[j].importance
		}
		return out[i].name < out[j].name
	})
	return out
}
