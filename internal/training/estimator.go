// Package training fits prediction models from labeled donor datasets.
// Fitting is delegated to an algorithm-specific estimator strategy; the
// pipeline around it handles validation, the train/validation split,
// scoring, importance ranking, and registration of the finished model.
package training

import (
	"encoding/json"
	"fmt"
	"math"

	"donorsense/internal/model"
)

// Estimator is the fitting strategy behind one algorithm. A fitted
// estimator is serialized onto the model record and restored on the
// prediction path, so implementations must round-trip through Marshal.
type Estimator interface {
	// Fit trains on rows X and targets y, which must have equal length.
	Fit(X [][]float64, y []float64) (model.Convergence, error)

	// Predict returns the raw estimate for one feature vector. The vector
	// must have the same width as the fitted training rows.
	Predict(x []float64) float64

	// Marshal encodes the fitted state for storage on the model record.
	Marshal() ([]byte, error)
}

// NewEstimator returns an unfitted strategy for the algorithm. The
// hyperparameter map supplies optional per-algorithm knobs; missing keys
// fall back to defaults.
func NewEstimator(alg model.Algorithm, hp map[string]float64) (Estimator, error) {
	switch alg {
	case model.AlgoLinearRegression:
		return newLinearRegression(hp), nil
	case model.AlgoLogisticRegression:
		return newLogisticRegression(hp), nil
	case model.AlgoRandomForest:
		return newRandomForest(hp), nil
	case model.AlgoGradientBoosting:
		return newGradientBoosting(hp), nil
	case model.AlgoNeuralNetwork:
		return newNeuralNetwork(hp), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
}

// Restore rebuilds a fitted estimator from the parameter blob stored on a
// model record.
func Restore(alg model.Algorithm, params []byte) (Estimator, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("model carries no fitted parameters")
	}

	var est Estimator
	switch alg {
	case model.AlgoLinearRegression:
		est = &linearRegression{}
	case model.AlgoLogisticRegression:
		est = &logisticRegression{}
	case model.AlgoRandomForest:
		est = &randomForest{}
	case model.AlgoGradientBoosting:
		est = &gradientBoosting{}
	case model.AlgoNeuralNetwork:
		est = &neuralNetwork{}
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}

	if err := json.Unmarshal(params, est); err != nil {
		return nil, fmt.Errorf("decode %s parameters: %w", alg, err)
	}
	return est, nil
}

func hpValue(hp map[string]float64, key string, def float64) float64 {
	if v, ok := hp[key]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return def
}

func hpInt(hp map[string]float64, key string, def int) int {
	if v, ok := hp[key]; ok && v >= 1 {
		return int(v)
	}
	return def
}

// scaler standardizes feature columns to zero mean and unit variance.
// Columns with no spread keep their raw value shifted by the mean.
type scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func fitScaler(X [][]float64) *scaler {
	if len(X) == 0 {
		return &scaler{}
	}
	d := len(X[0])
	s := &scaler{
		Mean:  make([]float64, d),
		Scale: make([]float64, d),
	}
	n := float64(len(X))
	for _, row := range X {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			dv := v - s.Mean[j]
			s.Scale[j] += dv * dv
		}
	}
	for j := range s.Scale {
		s.Scale[j] = math.Sqrt(s.Scale[j] / n)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	return s
}

func (s *scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j >= len(s.Mean) {
			break
		}
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *scaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.transform(row)
	}
	return out
}
