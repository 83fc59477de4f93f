package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// treeNode is one node of a fitted regression tree. Fields are exported so
// a fitted tree survives the JSON round trip onto the model record.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Value     float64   `json:"value"`
	Leaf      bool      `json:"leaf"`
}

// regressionTree fits by recursive binary splitting on variance reduction.
// Candidate thresholds are the quartiles of each feature column.
type regressionTree struct {
	Root           *treeNode `json:"root"`
	MaxDepth       int       `json:"max_depth"`
	MinSamplesLeaf int       `json:"min_samples_leaf"`
}

func (t *regressionTree) fit(X [][]float64, y []float64) {
	t.Root = t.build(X, y, 0)
}

func (t *regressionTree) build(X [][]float64, y []float64, depth int) *treeNode {
	if depth >= t.MaxDepth || len(y) < 2*t.MinSamplesLeaf || homogeneous(y) {
		return &treeNode{Leaf: true, Value: meanOf(y)}
	}

	feature, threshold, gain := t.bestSplit(X, y)
	if gain <= 0 {
		return &treeNode{Leaf: true, Value: meanOf(y)}
	}

	leftX, leftY, rightX, rightY := partition(X, y, feature, threshold)
	if len(leftY) < t.MinSamplesLeaf || len(rightY) < t.MinSamplesLeaf {
		return &treeNode{Leaf: true, Value: meanOf(y)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      t.build(leftX, leftY, depth+1),
		Right:     t.build(rightX, rightY, depth+1),
	}
}

func (t *regressionTree) bestSplit(X [][]float64, y []float64) (int, float64, float64) {
	if len(X) == 0 {
		return 0, 0, 0
	}

	numFeatures := len(X[0])
	n := float64(len(y))
	parentVar := varianceOf(y)

	bestFeature := 0
	bestThreshold := 0.0
	bestGain := 0.0

	column := make([]float64, len(X))
	for feature := 0; feature < numFeatures; feature++ {
		for i, row := range X {
			column[i] = row[feature]
		}
		for _, threshold := range thresholdCandidates(column) {
			_, leftY, _, rightY := partition(X, y, feature, threshold)
			if len(leftY) == 0 || len(rightY) == 0 {
				continue
			}

			leftWeight := float64(len(leftY)) / n
			rightWeight := float64(len(rightY)) / n
			gain := parentVar - (leftWeight*varianceOf(leftY) + rightWeight*varianceOf(rightY))

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func (t *regressionTree) predict(x []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}

// thresholdCandidates returns the quartiles of a column, deduplicated.
func thresholdCandidates(column []float64) []float64 {
	sorted := append([]float64(nil), column...)
	sort.Float64s(sorted)

	var out []float64
	for _, q := range []float64{0.25, 0.5, 0.75} {
		v := stat.Quantile(q, stat.Empirical, sorted, nil)
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

func partition(X [][]float64, y []float64, feature int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftX, rightX [][]float64
	var leftY, rightY []float64

	for i, row := range X {
		if row[feature] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[i])
		}
	}

	return leftX, leftY, rightX, rightY
}

func homogeneous(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y {
		if v != first {
			return false
		}
	}
	return true
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf is the population variance, 0 for fewer than 2 values.
func varianceOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// mseOf is the mean squared error between predictions and targets.
func mseOf(pred, actual []float64) float64 {
	if len(pred) == 0 || len(pred) != len(actual) {
		return math.NaN()
	}
	sum := 0.0
	for i := range pred {
		d := pred[i] - actual[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}
