package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/features"
	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/registry"
)

const baselineBuckets = 10

// Trainer turns labeled datasets into registered prediction models. It is
// algorithm-agnostic: fitting happens behind the Estimator strategy chosen
// by the config.
type Trainer struct {
	reg          *registry.Registry
	mw           *metrics.MetricsWrapper
	defaultSplit float64
}

// NewTrainer wires a trainer to the registry it registers models into.
// defaultSplit applies when a config leaves ValidationSplit at zero.
func NewTrainer(reg *registry.Registry, mw *metrics.MetricsWrapper, defaultSplit float64) *Trainer {
	if defaultSplit <= 0 || defaultSplit > common.MaxValidationSplit {
		defaultSplit = common.DefaultValidationSplit
	}
	return &Trainer{reg: reg, mw: mw, defaultSplit: defaultSplit}
}

// Train validates the config and dataset, fits an estimator, scores it,
// and registers the resulting model as active with the next training due
// in 90 days. Validation failures register nothing.
func (t *Trainer) Train(ctx context.Context, cfg model.TrainingConfig, ds *model.TrainingDataSet) (*model.TrainingResult, error) {
	started := time.Now()

	res, err := t.train(ctx, cfg, ds, started)
	if err != nil {
		if t.mw != nil {
			t.mw.TrainingFailuresInc()
		}
		log.Error().Err(err).
			Str("type", string(cfg.Type)).
			Str("algorithm", string(cfg.Algorithm)).
			Msg("Training run failed")
		return nil, err
	}

	if t.mw != nil {
		t.mw.TrainingRunsInc()
		t.mw.TrainingDurationObserve(res.Duration.Seconds())
	}
	log.Info().
		Str("model", res.Model.ID).
		Str("type", string(cfg.Type)).
		Str("algorithm", string(cfg.Algorithm)).
		Int("samples", res.Model.TrainingData.SampleSize).
		Int("version", res.Model.Version).
		Dur("duration", res.Duration).
		Msg("Model trained")
	return res, nil
}

func (t *Trainer) train(ctx context.Context, cfg model.TrainingConfig, ds *model.TrainingDataSet, started time.Time) (*model.TrainingResult, error) {
	if err := t.validate(cfg, ds); err != nil {
		return nil, err
	}

	split := cfg.ValidationSplit
	if split == 0 {
		split = t.defaultSplit
	}

	// Sequential split keeps a fixed dataset ordering reproducible
	n := len(ds.Samples)
	trainN := splitIndex(n, split)
	if trainN < 1 {
		return nil, model.Validationf("training_data", "dataset of %d samples is too small for validation split %.2f", n, split)
	}

	X, y := encode(cfg.Features, ds.Samples)
	trainX, trainY := X[:trainN], y[:trainN]
	valX, valY := X[trainN:], y[trainN:]

	est, err := NewEstimator(cfg.Algorithm, cfg.Hyperparameters)
	if err != nil {
		return nil, model.Validationf("algorithm", "%v", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conv, err := est.Fit(trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", cfg.Algorithm, err)
	}

	trainPreds := make([]float64, len(trainX))
	for i, row := range trainX {
		trainPreds[i] = est.Predict(row)
	}
	perf := Scores(cfg.Type, trainPreds, trainY)

	scoreX, scoreY := valX, valY
	if len(scoreX) == 0 {
		scoreX, scoreY = trainX, trainY
	}
	valPreds := make([]float64, len(scoreX))
	for i, row := range scoreX {
		valPreds[i] = est.Predict(row)
	}
	valScores := Scores(cfg.Type, valPreds, scoreY)
	for k, v := range prefixed("validation_", valScores) {
		perf[k] = v
	}

	importance := permutationImportance(est, scoreX, scoreY, cfg.Features, cfg.Type, int64(n))
	ranked := rankImportances(importance)

	params, err := est.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode %s parameters: %w", cfg.Algorithm, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s", cfg.Type, cfg.Algorithm)
	}

	now := time.Now()
	m := &model.PredictionModel{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        cfg.Type,
		Algorithm:   cfg.Algorithm,
		Features:    append([]string(nil), cfg.Features...),
		Performance: perf,
		TrainingData: model.TrainingDescriptor{
			SampleSize:        n,
			DateRange:         ds.DateRange,
			FeatureImportance: importance,
		},
		Status:          model.StatusActive,
		LastTrainedAt:   now,
		NextTrainingDue: now.Add(common.RetrainAfter),
		Version:         t.reg.LatestVersion(name, cfg.Type) + 1,
		Parameters:      params,
		Baseline:        captureBaseline(cfg.Features, trainX),
	}

	if err := t.reg.Register(m); err != nil {
		return nil, fmt.Errorf("register model: %w", err)
	}

	return &model.TrainingResult{
		Model:       m,
		Metrics:     perf,
		Importances: ranked,
		Convergence: conv,
		Duration:    time.Since(started),
	}, nil
}

func (t *Trainer) validate(cfg model.TrainingConfig, ds *model.TrainingDataSet) error {
	if !cfg.Type.Valid() {
		return model.Validationf("type", "unknown prediction type %q", cfg.Type)
	}
	if !cfg.Algorithm.Valid() {
		return model.Validationf("algorithm", "unknown algorithm %q", cfg.Algorithm)
	}
	if len(cfg.Features) == 0 {
		return model.Validationf("features", "at least one feature is required")
	}
	if cfg.ValidationSplit < 0 || cfg.ValidationSplit > common.MaxValidationSplit {
		return model.Validationf("validation_split", "must be between 0 and %.2f, have %.2f", common.MaxValidationSplit, cfg.ValidationSplit)
	}
	if ds == nil || len(ds.Samples) == 0 {
		return model.Validationf("training_data", "dataset must not be empty")
	}

	canonical := ds.Samples[0].Features
	for _, f := range cfg.Features {
		if _, ok := canonical[f]; !ok {
			return model.Validationf("features", "feature %q missing from dataset", f)
		}
	}

	if ratio := completeness(canonical, ds.Samples); ratio < common.MinDatasetCompletion {
		log.Warn().
			Float64("completeness", ratio).
			Int("samples", len(ds.Samples)).
			Str("type", string(cfg.Type)).
			Msg("Training data completeness below threshold")
	}
	return nil
}

// splitIndex is the first validation row for a dataset of n rows: training
// takes [0, splitIndex), validation the rest.
func splitIndex(n int, split float64) int {
	return int(math.Floor(float64(n) * (1 - split)))
}

// completeness is the fraction of canonical feature cells present across
// all samples.
func completeness(canonical map[string]model.Value, samples []model.Sample) float64 {
	if len(canonical) == 0 || len(samples) == 0 {
		return 0
	}
	present := 0
	for _, s := range samples {
		for k := range canonical {
			if _, ok := s.Features[k]; ok {
				present++
			}
		}
	}
	return float64(present) / float64(len(canonical)*len(samples))
}

// encode turns samples into ordered numeric rows using the same rules the
// prediction path applies.
func encode(names []string, samples []model.Sample) ([][]float64, []float64) {
	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = features.Vector(names, features.EncodeMap(s.Features))
		y[i] = s.Target
	}
	return X, y
}

// captureBaseline snapshots per-feature distribution statistics over the
// training rows for later drift scoring.
func captureBaseline(names []string, X [][]float64) map[string]model.FeatureBaseline {
	out := make(map[string]model.FeatureBaseline, len(names))
	if len(X) == 0 {
		return out
	}

	for j, name := range names {
		if j >= len(X[0]) {
			break
		}
		b := model.FeatureBaseline{
			Min: math.Inf(1),
			Max: math.Inf(-1),
		}
		for _, row := range X {
			v := row[j]
			b.Mean += v
			if v < b.Min {
				b.Min = v
			}
			if v > b.Max {
				b.Max = v
			}
		}
		n := float64(len(X))
		b.Mean /= n
		for _, row := range X {
			d := row[j] - b.Mean
			b.StdDev += d * d
		}
		b.StdDev = math.Sqrt(b.StdDev / n)

		if span := b.Max - b.Min; span > 0 {
			counts := make([]float64, baselineBuckets)
			for _, row := range X {
				idx := int((row[j] - b.Min) / span * float64(baselineBuckets))
				if idx >= baselineBuckets {
					idx = baselineBuckets - 1
				}
				counts[idx]++
			}
			for i := range counts {
				counts[i] /= n
			}
			b.Buckets = counts
		}
		out[name] = b
	}
	return out
}
