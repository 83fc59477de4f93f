package training

import (
	"math"

	"donorsense/internal/model"
)

// Scores computes the quality metrics appropriate for the prediction type:
// classification metrics for probability types, regression metrics for the
// rest. The monitoring loop reuses it to score live outcomes.
func Scores(t model.ModelType, pred, actual []float64) map[string]float64 {
	if t.IsProbability() {
		return classificationScores(pred, actual)
	}
	return regressionScores(pred, actual)
}

func regressionScores(pred, actual []float64) map[string]float64 {
	out := map[string]float64{"rmse": 0, "mae": 0, "r2": 0}
	if len(pred) == 0 || len(pred) != len(actual) {
		return out
	}

	n := float64(len(pred))
	sumSq := 0.0
	sumAbs := 0.0
	for i := range pred {
		d := pred[i] - actual[i]
		sumSq += d * d
		sumAbs += math.Abs(d)
	}
	out["rmse"] = math.Sqrt(sumSq / n)
	out["mae"] = sumAbs / n

	meanActual := meanOf(actual)
	ssTotal := 0.0
	for _, v := range actual {
		d := v - meanActual
		ssTotal += d * d
	}
	if ssTotal > 0 {
		out["r2"] = 1.0 - sumSq/ssTotal
	}
	return out
}

// classificationScores thresholds probabilities at 0.5 and reports
// accuracy, precision, recall, and f1 for the positive class.
func classificationScores(pred, actual []float64) map[string]float64 {
	out := map[string]float64{"accuracy": 0, "precision": 0, "recall": 0, "f1": 0}
	if len(pred) == 0 || len(pred) != len(actual) {
		return out
	}

	var tp, fp, tn, fn float64
	for i := range pred {
		predicted := pred[i] > 0.5
		positive := actual[i] > 0.5
		switch {
		case predicted && positive:
			tp++
		case predicted && !positive:
			fp++
		case !predicted && positive:
			fn++
		default:
			tn++
		}
	}

	out["accuracy"] = (tp + tn) / float64(len(pred))
	if tp+fp > 0 {
		out["precision"] = tp / (tp + fp)
	}
	if tp+fn > 0 {
		out["recall"] = tp / (tp + fn)
	}
	if out["precision"]+out["recall"] > 0 {
		out["f1"] = 2 * out["precision"] * out["recall"] / (out["precision"] + out["recall"])
	}
	return out
}

// prefixed copies a metric map with every key prefixed, used to keep
// training and validation metrics apart in one performance map.
func prefixed(prefix string, m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}

// PrimaryScore picks the headline quality number out of a metric map:
// accuracy for probability types, r2 otherwise.
func PrimaryScore(t model.ModelType, m map[string]float64) float64 {
	if t.IsProbability() {
		return m["accuracy"]
	}
	return m["r2"]
}
