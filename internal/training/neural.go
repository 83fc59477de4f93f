package training

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"donorsense/internal/model"
)

// neuralNetwork is a single-hidden-layer perceptron trained by full-batch
// gradient descent. Inputs are standardized, the hidden layer uses tanh,
// and the output is linear.
type neuralNetwork struct {
	Hidden       int         `json:"hidden"`
	W1           [][]float64 `json:"w1"` // hidden x inputs
	B1           []float64   `json:"b1"`
	W2           []float64   `json:"w2"`
	B2           float64     `json:"b2"`
	LearningRate float64     `json:"learning_rate"`
	Epochs       int         `json:"epochs"`
	Seed         int64       `json:"seed"`
	Scaler       *scaler     `json:"scaler"`
}

func newNeuralNetwork(hp map[string]float64) *neuralNetwork {
	seed := int64(hpValue(hp, "seed", 0))
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &neuralNetwork{
		Hidden:       hpInt(hp, "hidden", 16),
		LearningRate: hpValue(hp, "learning_rate", 0.01),
		Epochs:       hpInt(hp, "epochs", 200),
		Seed:         seed,
	}
}

func (nn *neuralNetwork) Fit(X [][]float64, y []float64) (model.Convergence, error) {
	if len(X) == 0 || len(X) != len(y) {
		return model.Convergence{}, fmt.Errorf("need matching samples and targets, have %d and %d", len(X), len(y))
	}

	nn.Scaler = fitScaler(X)
	Xs := nn.Scaler.transformAll(X)
	n := len(Xs)
	d := len(Xs[0])

	rng := rand.New(rand.NewSource(nn.Seed))
	scale := 1.0 / math.Sqrt(float64(d))
	nn.W1 = make([][]float64, nn.Hidden)
	nn.B1 = make([]float64, nn.Hidden)
	nn.W2 = make([]float64, nn.Hidden)
	for h := 0; h < nn.Hidden; h++ {
		nn.W1[h] = make([]float64, d)
		for j := 0; j < d; j++ {
			nn.W1[h][j] = rng.NormFloat64() * scale
		}
		nn.W2[h] = rng.NormFloat64() * scale
	}
	nn.B2 = 0

	const tol = 1e-8
	prevLoss := math.Inf(1)
	loss := 0.0
	iterations := 0
	converged := false

	gradW1 := make([][]float64, nn.Hidden)
	for h := range gradW1 {
		gradW1[h] = make([]float64, d)
	}
	gradB1 := make([]float64, nn.Hidden)
	gradW2 := make([]float64, nn.Hidden)
	hidden := make([]float64, nn.Hidden)

	for epoch := 0; epoch < nn.Epochs; epoch++ {
		iterations = epoch + 1
		for h := range gradW1 {
			for j := range gradW1[h] {
				gradW1[h][j] = 0
			}
			gradB1[h] = 0
			gradW2[h] = 0
		}
		gradB2 := 0.0
		loss = 0

		for i, row := range Xs {
			pred := nn.forward(row, hidden)
			err := pred - y[i]
			loss += err * err

			gradB2 += err
			for h := 0; h < nn.Hidden; h++ {
				gradW2[h] += err * hidden[h]
				// Backprop through tanh
				dh := err * nn.W2[h] * (1 - hidden[h]*hidden[h])
				gradB1[h] += dh
				for j, v := range row {
					gradW1[h][j] += dh * v
				}
			}
		}

		inv := 1.0 / float64(n)
		for h := 0; h < nn.Hidden; h++ {
			for j := 0; j < d; j++ {
				nn.W1[h][j] -= nn.LearningRate * gradW1[h][j] * inv
			}
			nn.B1[h] -= nn.LearningRate * gradB1[h] * inv
			nn.W2[h] -= nn.LearningRate * gradW2[h] * inv
		}
		nn.B2 -= nn.LearningRate * gradB2 * inv
		loss *= inv

		if math.Abs(prevLoss-loss) < tol {
			converged = true
			break
		}
		prevLoss = loss
	}

	return model.Convergence{Converged: converged, Iterations: iterations, FinalLoss: loss}, nil
}

func (nn *neuralNetwork) Predict(x []float64) float64 {
	if nn.Scaler != nil {
		x = nn.Scaler.transform(x)
	}
	hidden := make([]float64, nn.Hidden)
	return nn.forward(x, hidden)
}

func (nn *neuralNetwork) Marshal() ([]byte, error) {
	return json.Marshal(nn)
}

// forward computes the network output, filling the caller's hidden buffer.
func (nn *neuralNetwork) forward(x []float64, hidden []float64) float64 {
	for h := 0; h < nn.Hidden; h++ {
		z := nn.B1[h]
		for j, w := range nn.W1[h] {
			if j >= len(x) {
				break
			}
			z += w * x[j]
		}
		hidden[h] = math.Tanh(z)
	}
	out := nn.B2
	for h, w := range nn.W2 {
		out += w * hidden[h]
	}
	return out
}
