package training

import (
	"math"
	"math/rand"
	"testing"

	"donorsense/internal/model"
)

func TestNewEstimator_AllAlgorithms(t *testing.T) {
	for _, alg := range []model.Algorithm{
		model.AlgoLinearRegression,
		model.AlgoLogisticRegression,
		model.AlgoRandomForest,
		model.AlgoGradientBoosting,
		model.AlgoNeuralNetwork,
	} {
		est, err := NewEstimator(alg, nil)
		if err != nil {
			t.Errorf("NewEstimator(%s) failed: %v", alg, err)
		}
		if est == nil {
			t.Errorf("NewEstimator(%s) returned nil", alg)
		}
	}
}

func TestNewEstimator_Unknown(t *testing.T) {
	_, err := NewEstimator(model.Algorithm("crystal_ball"), nil)
	if err == nil {
		t.Error("Expected error for unknown algorithm, got nil")
	}
}

func TestLinearRegression_RecoversLine(t *testing.T) {
	// y = 2*x0 - 3*x1 + 5
	X := make([][]float64, 0, 50)
	y := make([]float64, 0, 50)
	for i := 0; i < 50; i++ {
		x0 := float64(i)
		x1 := float64(i % 7)
		X = append(X, []float64{x0, x1})
		y = append(y, 2*x0-3*x1+5)
	}

	est := newLinearRegression(nil)
	conv, err := est.Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !conv.Converged {
		t.Error("Closed-form fit should report convergence")
	}
	if conv.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", conv.Iterations)
	}

	pred := est.Predict([]float64{10, 3})
	want := 2*10.0 - 3*3.0 + 5
	if math.Abs(pred-want) > 0.5 {
		t.Errorf("Predict(10,3) = %f, want ~%f", pred, want)
	}
}

func TestLogisticRegression_Separates(t *testing.T) {
	// Positive class clusters at high x, negative at low x
	var X [][]float64
	var y []float64
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			X = append(X, []float64{5 + rng.Float64()})
			y = append(y, 1)
		} else {
			X = append(X, []float64{-5 - rng.Float64()})
			y = append(y, 0)
		}
	}

	est := newLogisticRegression(nil)
	if _, err := est.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if p := est.Predict([]float64{6}); p <= 0.5 {
		t.Errorf("Expected positive-class probability > 0.5, got %f", p)
	}
	if p := est.Predict([]float64{-6}); p >= 0.5 {
		t.Errorf("Expected negative-class probability < 0.5, got %f", p)
	}
}

func TestLogisticRegression_OutputInUnitInterval(t *testing.T) {
	est := newLogisticRegression(map[string]float64{"epochs": 50})
	X := [][]float64{{1, 2}, {2, 1}, {3, 3}, {0, 0}}
	y := []float64{1, 0, 1, 0}
	if _, err := est.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for _, x := range [][]float64{{100, -100}, {-100, 100}, {0, 0}} {
		p := est.Predict(x)
		if p < 0 || p > 1 {
			t.Errorf("Predict(%v) = %f outside [0,1]", x, p)
		}
	}
}

func TestRandomForest_FitsStepFunction(t *testing.T) {
	// Target jumps at x = 50
	var X [][]float64
	var y []float64
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i), float64(i % 3)})
		if i < 50 {
			y = append(y, 10)
		} else {
			y = append(y, 100)
		}
	}

	est := newRandomForest(map[string]float64{"trees": 20, "seed": 42})
	conv, err := est.Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if conv.Iterations != 20 {
		t.Errorf("Expected 20 iterations, got %d", conv.Iterations)
	}

	low := est.Predict([]float64{10, 1})
	high := est.Predict([]float64{90, 1})
	if low >= high {
		t.Errorf("Expected low-region prediction %f < high-region prediction %f", low, high)
	}
}

func TestGradientBoosting_ReducesLoss(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 80; i++ {
		x := float64(i)
		X = append(X, []float64{x})
		y = append(y, 3*x+7)
	}

	est := newGradientBoosting(map[string]float64{"stages": 50})
	conv, err := est.Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	baseline := varianceOf(y) // loss of the constant mean predictor
	if conv.FinalLoss >= baseline {
		t.Errorf("Boosting loss %f did not improve on mean-predictor loss %f", conv.FinalLoss, baseline)
	}
}

func TestNeuralNetwork_FitsLinearTrend(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		x := float64(i) / 10
		X = append(X, []float64{x})
		y = append(y, 2*x)
	}

	est := newNeuralNetwork(map[string]float64{"seed": 99, "epochs": 500, "learning_rate": 0.05})
	conv, err := est.Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if conv.Iterations == 0 {
		t.Error("Expected at least one epoch")
	}

	low := est.Predict([]float64{1})
	high := est.Predict([]float64{5})
	if low >= high {
		t.Errorf("Network did not learn increasing trend: f(1)=%f, f(5)=%f", low, high)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	y := []float64{2, 4, 6, 8, 10, 12, 14, 16}

	for _, alg := range []model.Algorithm{
		model.AlgoLinearRegression,
		model.AlgoLogisticRegression,
		model.AlgoRandomForest,
		model.AlgoGradientBoosting,
		model.AlgoNeuralNetwork,
	} {
		est, err := NewEstimator(alg, map[string]float64{"seed": 1, "trees": 5, "epochs": 20, "stages": 10})
		if err != nil {
			t.Fatalf("NewEstimator(%s) failed: %v", alg, err)
		}
		if _, err := est.Fit(X, y); err != nil {
			t.Fatalf("Fit(%s) failed: %v", alg, err)
		}

		params, err := est.Marshal()
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", alg, err)
		}

		restored, err := Restore(alg, params)
		if err != nil {
			t.Fatalf("Restore(%s) failed: %v", alg, err)
		}

		probe := []float64{4.5}
		if got, want := restored.Predict(probe), est.Predict(probe); math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: restored prediction %f differs from original %f", alg, got, want)
		}
	}
}

func TestRestore_Empty(t *testing.T) {
	if _, err := Restore(model.AlgoLinearRegression, nil); err == nil {
		t.Error("Expected error restoring from empty parameters")
	}
}

func TestRandomForest_Deterministic(t *testing.T) {
	X := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}, {5, 0}, {6, 1}, {7, 0}, {8, 1}}
	y := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	a := newRandomForest(map[string]float64{"trees": 10, "seed": 123})
	b := newRandomForest(map[string]float64{"trees": 10, "seed": 123})
	if _, err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	probe := []float64{4.5, 0.5}
	if a.Predict(probe) != b.Predict(probe) {
		t.Error("Same seed should give identical forests")
	}
}

func TestScaler_ZeroSpreadColumn(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}}
	s := fitScaler(X)
	if s.Scale[1] != 1 {
		t.Errorf("Zero-spread column should keep scale 1, got %f", s.Scale[1])
	}
	out := s.transform([]float64{2, 5})
	if out[1] != 0 {
		t.Errorf("Constant column should center to 0, got %f", out[1])
	}
}
