package training

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"donorsense/internal/model"
)

// linearRegression fits ordinary least squares with a small ridge term for
// numerical stability, solved in closed form through the normal equations.
type linearRegression struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Lambda    float64   `json:"lambda"`
	Scaler    *scaler   `json:"scaler"`
}

func newLinearRegression(hp map[string]float64) *linearRegression {
	return &linearRegression{
		Lambda: hpValue(hp, "lambda", 1e-3),
	}
}

func (l *linearRegression) Fit(X [][]float64, y []float64) (model.Convergence, error) {
	if len(X) == 0 || len(X) != len(y) {
		return model.Convergence{}, fmt.Errorf("need matching samples and targets, have %d and %d", len(X), len(y))
	}

	l.Scaler = fitScaler(X)
	Xs := l.Scaler.transformAll(X)
	n := len(Xs)
	d := len(Xs[0])

	// Design matrix with a leading intercept column
	a := mat.NewDense(n, d+1, nil)
	for i, row := range Xs {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	// Ridge on the non-intercept diagonal keeps the system nonsingular
	for j := 1; j <= d; j++ {
		ata.Set(j, j, ata.At(j, j)+l.Lambda*float64(n))
	}

	var aty mat.VecDense
	aty.MulVec(a.T(), mat.NewVecDense(n, y))

	var theta mat.VecDense
	if err := theta.SolveVec(&ata, &aty); err != nil {
		// Degenerate system: fall back to the intercept-only model
		l.Weights = make([]float64, d)
		l.Intercept = stat.Mean(y, nil)
		return model.Convergence{Converged: false, Iterations: 1, FinalLoss: l.mse(Xs, y)}, nil
	}

	l.Intercept = theta.AtVec(0)
	l.Weights = make([]float64, d)
	for j := 0; j < d; j++ {
		l.Weights[j] = theta.AtVec(j + 1)
	}

	return model.Convergence{Converged: true, Iterations: 1, FinalLoss: l.mse(Xs, y)}, nil
}

func (l *linearRegression) Predict(x []float64) float64 {
	if l.Scaler != nil {
		x = l.Scaler.transform(x)
	}
	out := l.Intercept
	for j, w := range l.Weights {
		if j >= len(x) {
			break
		}
		out += w * x[j]
	}
	return out
}

func (l *linearRegression) Marshal() ([]byte, error) {
	return json.Marshal(l)
}

// mse evaluates squared loss over already-scaled rows.
func (l *linearRegression) mse(Xs [][]float64, y []float64) float64 {
	if len(Xs) == 0 {
		return 0
	}
	sum := 0.0
	for i, row := range Xs {
		pred := l.Intercept
		for j, w := range l.Weights {
			pred += w * row[j]
		}
		diff := pred - y[i]
		sum += diff * diff
	}
	return sum / float64(len(Xs))
}
