package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorsense/internal/common"
	"donorsense/internal/model"
	"donorsense/internal/registry"
)

func TestSplitIndex(t *testing.T) {
	testCases := []struct {
		n        int
		split    float64
		expected int
	}{
		{100, 0.2, 80},
		{10, 0.3, 7},
		{5, 0.5, 2},
		{2, 0.2, 1},
		{1, 0.2, 0},
	}

	for _, tc := range testCases {
		if got := splitIndex(tc.n, tc.split); got != tc.expected {
			t.Errorf("splitIndex(%d, %.2f) = %d, expected %d", tc.n, tc.split, got, tc.expected)
		}
	}
}

// linearDataset builds n samples where the target is a fixed linear
// function of two features.
func linearDataset(n int) *model.TrainingDataSet {
	ds := &model.TrainingDataSet{
		DateRange: model.DateRange{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for i := 0; i < n; i++ {
		total := float64(100 + i*10)
		count := float64(1 + i%12)
		ds.Samples = append(ds.Samples, model.Sample{
			Features: map[string]model.Value{
				"total_donated":  model.Number(total),
				"donation_count": model.Number(count),
			},
			Target: 0.4*total + 25*count,
		})
	}
	return ds
}

func churnDataset(n int) *model.TrainingDataSet {
	ds := &model.TrainingDataSet{}
	for i := 0; i < n; i++ {
		days := float64(i * 20)
		label := 0.0
		if days > 400 {
			label = 1
		}
		ds.Samples = append(ds.Samples, model.Sample{
			Features: map[string]model.Value{
				"days_since_last_donation": model.Number(days),
				"donation_count":           model.Number(float64(n - i)),
			},
			Target: label,
		})
	}
	return ds
}

func TestTrain_RegistersActiveModel(t *testing.T) {
	reg := registry.New(nil, nil)
	trainer := NewTrainer(reg, nil, 0.2)

	cfg := model.TrainingConfig{
		Name:      "ltv baseline",
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	before := time.Now()
	res, err := trainer.Train(context.Background(), cfg, linearDataset(100))
	require.NoError(t, err)
	require.NotNil(t, res.Model)

	m := reg.Get(res.Model.ID)
	require.NotNil(t, m, "trained model should be registered")
	assert.Equal(t, model.StatusActive, m.Status)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, 100, m.TrainingData.SampleSize)
	assert.NotEmpty(t, m.Parameters)

	due := m.LastTrainedAt.Add(common.RetrainAfter)
	assert.WithinDuration(t, due, m.NextTrainingDue, time.Second)
	assert.True(t, m.LastTrainedAt.After(before.Add(-time.Second)))

	// A clean linear target should be recoverable almost exactly
	assert.Greater(t, m.Performance["validation_r2"], 0.95)
	assert.True(t, res.Convergence.Converged)
}

func TestTrain_VersionIncrements(t *testing.T) {
	reg := registry.New(nil, nil)
	trainer := NewTrainer(reg, nil, 0.2)

	cfg := model.TrainingConfig{
		Name:      "churn v",
		Type:      model.TypeChurnRisk,
		Algorithm: model.AlgoLogisticRegression,
		Features:  []string{"days_since_last_donation", "donation_count"},
	}

	first, err := trainer.Train(context.Background(), cfg, churnDataset(60))
	require.NoError(t, err)
	second, err := trainer.Train(context.Background(), cfg, churnDataset(60))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Model.Version)
	assert.Equal(t, 2, second.Model.Version)
	assert.NotEqual(t, first.Model.ID, second.Model.ID, "retraining produces a new model id")

	// Both versions remain in the catalog
	assert.Len(t, reg.ByType(model.TypeChurnRisk), 2)
}

func TestTrain_EmptyDataset(t *testing.T) {
	reg := registry.New(nil, nil)
	trainer := NewTrainer(reg, nil, 0.2)

	cfg := model.TrainingConfig{
		Type:      model.TypeChurnRisk,
		Algorithm: model.AlgoLogisticRegression,
		Features:  []string{"days_since_last_donation"},
	}

	_, err := trainer.Train(context.Background(), cfg, &model.TrainingDataSet{})
	require.Error(t, err)

	var verr *model.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, reg.All(), "no model may be registered on validation failure")
}

func TestTrain_MissingFeature(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "shoe_size"},
	}

	_, err := trainer.Train(context.Background(), cfg, linearDataset(20))
	require.Error(t, err)

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "features", verr.Field)
}

func TestTrain_InvalidConfig(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)
	ds := linearDataset(20)

	testCases := []struct {
		name string
		cfg  model.TrainingConfig
	}{
		{"bad type", model.TrainingConfig{Type: "fortune", Algorithm: model.AlgoLinearRegression, Features: []string{"total_donated"}}},
		{"bad algorithm", model.TrainingConfig{Type: model.TypeLifetimeValue, Algorithm: "tea_leaves", Features: []string{"total_donated"}}},
		{"no features", model.TrainingConfig{Type: model.TypeLifetimeValue, Algorithm: model.AlgoLinearRegression}},
		{"bad split", model.TrainingConfig{Type: model.TypeLifetimeValue, Algorithm: model.AlgoLinearRegression, Features: []string{"total_donated"}, ValidationSplit: 0.9}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := trainer.Train(context.Background(), tc.cfg, ds)
			require.Error(t, err)
			var verr *model.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestTrain_TooSmallForSplit(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	_, err := trainer.Train(context.Background(), cfg, linearDataset(1))
	require.Error(t, err)
	var verr *model.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestTrain_ImportancesRanked(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoRandomForest,
		Features:  []string{"total_donated", "donation_count"},
		Hyperparameters: map[string]float64{
			"trees": 10,
			"seed":  5,
		},
	}

	res, err := trainer.Train(context.Background(), cfg, linearDataset(100))
	require.NoError(t, err)
	require.Len(t, res.Importances, 2)

	for i, imp := range res.Importances {
		assert.Equal(t, i+1, imp.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Importances[i-1].Importance, imp.Importance,
				"importances must be sorted descending")
		}
	}

	// The importance map travels on the model descriptor too
	assert.Len(t, res.Model.TrainingData.FeatureImportance, 2)
}

func TestTrain_BaselineCaptured(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	res, err := trainer.Train(context.Background(), cfg, linearDataset(100))
	require.NoError(t, err)

	b, ok := res.Model.Baseline["total_donated"]
	require.True(t, ok)
	assert.Greater(t, b.StdDev, 0.0)
	assert.Less(t, b.Min, b.Max)
	require.Len(t, b.Buckets, 10)

	sum := 0.0
	for _, v := range b.Buckets {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "histogram must be normalized")
}

func TestTrain_Canceled(t *testing.T) {
	trainer := NewTrainer(registry.New(nil, nil), nil, 0.2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	_, err := trainer.Train(ctx, cfg, linearDataset(50))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompleteness(t *testing.T) {
	canonical := map[string]model.Value{
		"a": model.Number(1),
		"b": model.Number(2),
	}
	samples := []model.Sample{
		{Features: map[string]model.Value{"a": model.Number(1), "b": model.Number(2)}},
		{Features: map[string]model.Value{"a": model.Number(1)}},
	}

	// 3 present cells out of 4
	assert.InDelta(t, 0.75, completeness(canonical, samples), 1e-9)
}
