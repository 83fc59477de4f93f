package training

import (
	"encoding/json"
	"fmt"
	"math"

	"donorsense/internal/model"
)

// logisticRegression fits a binary classifier by full-batch gradient
// descent on the L2-regularized cross-entropy loss. Targets are treated
// as labels: anything above 0.5 counts as the positive class.
type logisticRegression struct {
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	L2           float64   `json:"l2"`
	Scaler       *scaler   `json:"scaler"`
}

func newLogisticRegression(hp map[string]float64) *logisticRegression {
	return &logisticRegression{
		LearningRate: hpValue(hp, "learning_rate", 0.1),
		Epochs:       hpInt(hp, "epochs", 200),
		L2:           hpValue(hp, "l2", 1e-4),
	}
}

func (l *logisticRegression) Fit(X [][]float64, y []float64) (model.Convergence, error) {
	if len(X) == 0 || len(X) != len(y) {
		return model.Convergence{}, fmt.Errorf("need matching samples and targets, have %d and %d", len(X), len(y))
	}

	l.Scaler = fitScaler(X)
	Xs := l.Scaler.transformAll(X)
	n := len(Xs)
	d := len(Xs[0])

	labels := make([]float64, n)
	for i, v := range y {
		if v > 0.5 {
			labels[i] = 1
		}
	}

	l.Weights = make([]float64, d)
	l.Intercept = 0

	const tol = 1e-7
	prevLoss := math.Inf(1)
	loss := 0.0
	iterations := 0
	converged := false

	gradW := make([]float64, d)
	for epoch := 0; epoch < l.Epochs; epoch++ {
		iterations = epoch + 1
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		loss = 0

		for i, row := range Xs {
			p := sigmoid(l.rawScore(row))
			err := p - labels[i]
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
			loss += crossEntropy(p, labels[i])
		}

		inv := 1.0 / float64(n)
		for j := range l.Weights {
			l.Weights[j] -= l.LearningRate * (gradW[j]*inv + l.L2*l.Weights[j])
		}
		l.Intercept -= l.LearningRate * gradB * inv
		loss *= inv

		if math.Abs(prevLoss-loss) < tol {
			converged = true
			break
		}
		prevLoss = loss
	}

	return model.Convergence{Converged: converged, Iterations: iterations, FinalLoss: loss}, nil
}

func (l *logisticRegression) Predict(x []float64) float64 {
	if l.Scaler != nil {
		x = l.Scaler.transform(x)
	}
	return sigmoid(l.rawScore(x))
}

func (l *logisticRegression) Marshal() ([]byte, error) {
	return json.Marshal(l)
}

func (l *logisticRegression) rawScore(x []float64) float64 {
	z := l.Intercept
	for j, w := range l.Weights {
		if j >= len(x) {
			break
		}
		z += w * x[j]
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func crossEntropy(p, label float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	if label > 0.5 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}
