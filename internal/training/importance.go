package training

import (
	"math/rand"
	"sort"

	"donorsense/internal/model"
)

// permutationImportance measures each feature's contribution by rescoring
// the fitted estimator with that feature's column shuffled and taking the
// drop against the unshuffled score. Negative drops clamp to zero. The
// result is normalized so importances sum to 1 when any feature matters.
func permutationImportance(est Estimator, X [][]float64, y []float64, features []string, t model.ModelType, seed int64) map[string]float64 {
	out := make(map[string]float64, len(features))
	for _, f := range features {
		out[f] = 0
	}
	if len(X) == 0 || len(features) == 0 {
		return out
	}

	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i] = est.Predict(row)
	}
	base := PrimaryScore(t, Scores(t, preds, y))

	rng := rand.New(rand.NewSource(seed))
	shuffled := make([]float64, len(X))
	row := make([]float64, 0)

	total := 0.0
	for j, name := range features {
		if j >= len(X[0]) {
			break
		}
		perm := rng.Perm(len(X))
		for i := range X {
			shuffled[i] = X[perm[i]][j]
		}

		for i := range X {
			row = append(row[:0], X[i]...)
			row[j] = shuffled[i]
			preds[i] = est.Predict(row)
		}

		drop := base - PrimaryScore(t, Scores(t, preds, y))
		if drop < 0 {
			drop = 0
		}
		out[name] = drop
		total += drop
	}

	if total > 0 {
		for k := range out {
			out[k] /= total
		}
	}
	return out
}

// rankImportances orders an importance map descending and assigns ranks
// 1..N. Ties break on feature name for a stable ordering.
func rankImportances(imp map[string]float64) []model.FeatureImportance {
	out := make([]model.FeatureImportance, 0, len(imp))
	for feature, importance := range imp {
		out = append(out, model.FeatureImportance{Feature: feature, Importance: importance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance == out[j].Importance {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Importance > out[j].Importance
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
