// Package ensemble merges predictions from several models of one type into
// a single confidence-weighted result.
package ensemble

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/predict"
	"donorsense/internal/registry"
)

// Combination strategies. Only weighted is implemented today; the other two
// are reserved labels.
const (
	MethodWeighted = "weighted"
	MethodAverage  = "average"
	MethodVoting   = "voting"
)

// Combiner fans one donor out to every active model of a type and merges
// the results.
type Combiner struct {
	reg    *registry.Registry
	engine *predict.Engine
	mw     *metrics.MetricsWrapper
}

func NewCombiner(reg *registry.Registry, engine *predict.Engine, mw *metrics.MetricsWrapper) *Combiner {
	return &Combiner{reg: reg, engine: engine, mw: mw}
}

// Combine produces an ensemble prediction from every active model of the
// given type. Fewer than two active models is an InsufficientModelsError.
// Individual member failures are logged and skipped as long as at least two
// members succeed.
func (c *Combiner) Combine(donorID string, t model.ModelType, raw map[string]model.Value) (*model.EnsemblePrediction, error) {
	if donorID == "" {
		return nil, model.Validationf("donor_id", "is required")
	}
	if !t.Valid() {
		return nil, model.Validationf("type", "unknown prediction type %q", t)
	}

	models := c.reg.ActiveByType(t)
	if len(models) < 2 {
		return nil, &model.InsufficientModelsError{Type: t, Active: len(models)}
	}

	now := time.Now().UTC()
	preds := make([]model.DonorPrediction, 0, len(models))
	contribs := make([]model.ModelContribution, 0, len(models))
	var memberErr error
	for _, m := range models {
		p, err := c.engine.Predict(m, donorID, raw)
		if err != nil {
			memberErr = err
			log.Warn().Err(err).
				Str("model", m.ID).
				Str("donor", donorID).
				Msg("Ensemble member failed, skipping")
			continue
		}
		preds = append(preds, *p)
		contribs = append(contribs, model.ModelContribution{
			ModelID:    m.ID,
			Weight:     ModelWeight(m, now),
			Prediction: p.Prediction,
			Confidence: p.Confidence,
		})
	}
	if len(preds) < 2 {
		if memberErr != nil {
			return nil, fmt.Errorf("ensemble %s for donor %s: %w", t, donorID, memberErr)
		}
		return nil, &model.InsufficientModelsError{Type: t, Active: len(preds)}
	}

	value, confidence := combineValues(t, preds)
	out := &model.EnsemblePrediction{
		DonorID:     donorID,
		Type:        t,
		Predictions: preds,
		EnsembleResult: model.EnsembleResult{
			Value:      value,
			Confidence: confidence,
			Method:     MethodWeighted,
		},
		ModelContributions: contribs,
		GeneratedAt:        now,
	}

	if c.mw != nil {
		c.mw.EnsemblesInc()
	}
	log.Debug().
		Str("donor", donorID).
		Str("type", string(t)).
		Int("members", len(preds)).
		Float64("value", value).
		Msg("Ensemble prediction generated")
	return out, nil
}

// ModelWeight scores one model's standing inside an ensemble: a fixed base,
// a bonus for validation quality and a penalty that grows with age until
// the model is due for urgent retraining. Never below the floor.
func ModelWeight(m *model.PredictionModel, now time.Time) float64 {
	metric := m.ValidationMetric()
	if metric < 0 {
		metric = 0
	} else if metric > 1 {
		metric = 1
	}

	ageFrac := float64(m.Age(now)) / float64(common.RetrainUrgentAfter)
	if ageFrac > 1 {
		ageFrac = 1
	} else if ageFrac < 0 {
		ageFrac = 0
	}

	w := common.EnsembleBaseWeight + common.EnsemblePerfWeight*metric - common.EnsembleMaxAgeCut*ageFrac
	if w < common.EnsembleWeightFloor {
		return common.EnsembleWeightFloor
	}
	return w
}

// combineValues averages member predictions weighted by their confidence
// and rounds per type family. The ensemble confidence is the plain mean of
// member confidences.
func combineValues(t model.ModelType, preds []model.DonorPrediction) (value, confidence float64) {
	var weighted, confSum float64
	for _, p := range preds {
		weighted += p.Prediction * p.Confidence
		confSum += p.Confidence
	}
	if confSum > 0 {
		value = weighted / confSum
	} else {
		for _, p := range preds {
			value += p.Prediction
		}
		value /= float64(len(preds))
	}
	confidence = confSum / float64(len(preds))

	if t.IsProbability() {
		value = math.Round(value*1000) / 1000
	} else {
		value = math.Round(value)
	}
	return value, confidence
}
