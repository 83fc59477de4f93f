package training

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"donorsense/internal/model"
)

// randomForest averages bootstrapped regression trees, each fitted on a
// random feature subset. Trees are trained in parallel; the stored seed
// makes a refit reproducible.
type randomForest struct {
	Trees        []*regressionTree `json:"trees"`
	TreeFeatures [][]int           `json:"tree_features"`
	NumTrees     int               `json:"num_trees"`
	MaxDepth     int               `json:"max_depth"`
	MinLeaf      int               `json:"min_leaf"`
	NumFeatures  int               `json:"num_features"`
	Seed         int64             `json:"seed"`
}

func newRandomForest(hp map[string]float64) *randomForest {
	seed := int64(hpValue(hp, "seed", 0))
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randomForest{
		NumTrees: hpInt(hp, "trees", 50),
		MaxDepth: hpInt(hp, "max_depth", 8),
		MinLeaf:  hpInt(hp, "min_samples_leaf", 2),
		Seed:     seed,
	}
}

func (rf *randomForest) Fit(X [][]float64, y []float64) (model.Convergence, error) {
	if len(X) == 0 || len(X) != len(y) {
		return model.Convergence{}, fmt.Errorf("need matching samples and targets, have %d and %d", len(X), len(y))
	}

	rf.NumFeatures = len(X[0])
	subset := int(math.Sqrt(float64(rf.NumFeatures)))
	if subset < 1 {
		subset = 1
	}

	rf.Trees = make([]*regressionTree, rf.NumTrees)
	rf.TreeFeatures = make([][]int, rf.NumTrees)

	var wg sync.WaitGroup
	for i := 0; i < rf.NumTrees; i++ {
		wg.Add(1)
		go func(treeIdx int) {
			defer wg.Done()

			// Per-tree generator keeps parallel fits deterministic
			rng := rand.New(rand.NewSource(rf.Seed + int64(treeIdx)))

			features := pickFeatures(rng, rf.NumFeatures, subset)
			bootX, bootY := bootstrap(rng, X, y, features)

			tree := &regressionTree{MaxDepth: rf.MaxDepth, MinSamplesLeaf: rf.MinLeaf}
			tree.fit(bootX, bootY)

			rf.Trees[treeIdx] = tree
			rf.TreeFeatures[treeIdx] = features
		}(i)
	}
	wg.Wait()

	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i] = rf.Predict(row)
	}

	return model.Convergence{Converged: true, Iterations: rf.NumTrees, FinalLoss: mseOf(preds, y)}, nil
}

func (rf *randomForest) Predict(x []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i, tree := range rf.Trees {
		sum += tree.predict(project(x, rf.TreeFeatures[i]))
	}
	return sum / float64(len(rf.Trees))
}

func (rf *randomForest) Marshal() ([]byte, error) {
	return json.Marshal(rf)
}

// gradientBoosting fits shallow regression trees stage-wise on the
// residuals of the running prediction.
type gradientBoosting struct {
	Init         float64           `json:"init"`
	Trees        []*regressionTree `json:"trees"`
	LearningRate float64           `json:"learning_rate"`
	Stages       int               `json:"stages"`
	MaxDepth     int               `json:"max_depth"`
	MinLeaf      int               `json:"min_leaf"`
}

func newGradientBoosting(hp map[string]float64) *gradientBoosting {
	return &gradientBoosting{
		LearningRate: hpValue(hp, "learning_rate", 0.1),
		Stages:       hpInt(hp, "stages", 100),
		MaxDepth:     hpInt(hp, "max_depth", 3),
		MinLeaf:      hpInt(hp, "min_samples_leaf", 2),
	}
}

func (gb *gradientBoosting) Fit(X [][]float64, y []float64) (model.Convergence, error) {
	if len(X) == 0 || len(X) != len(y) {
		return model.Convergence{}, fmt.Errorf("need matching samples and targets, have %d and %d", len(X), len(y))
	}

	gb.Init = meanOf(y)
	gb.Trees = gb.Trees[:0]

	current := make([]float64, len(y))
	residual := make([]float64, len(y))
	for i := range current {
		current[i] = gb.Init
	}

	const tol = 1e-9
	prevLoss := math.Inf(1)
	loss := 0.0
	stages := 0
	converged := false

	for stage := 0; stage < gb.Stages; stage++ {
		stages = stage + 1
		for i := range residual {
			residual[i] = y[i] - current[i]
		}

		tree := &regressionTree{MaxDepth: gb.MaxDepth, MinSamplesLeaf: gb.MinLeaf}
		tree.fit(X, residual)
		gb.Trees = append(gb.Trees, tree)

		for i, row := range X {
			current[i] += gb.LearningRate * tree.predict(row)
		}

		loss = mseOf(current, y)
		if prevLoss-loss < tol {
			converged = true
			break
		}
		prevLoss = loss
	}

	return model.Convergence{Converged: converged, Iterations: stages, FinalLoss: loss}, nil
}

func (gb *gradientBoosting) Predict(x []float64) float64 {
	out := gb.Init
	for _, tree := range gb.Trees {
		out += gb.LearningRate * tree.predict(x)
	}
	return out
}

func (gb *gradientBoosting) Marshal() ([]byte, error) {
	return json.Marshal(gb)
}

// pickFeatures selects a random subset of feature indices.
func pickFeatures(rng *rand.Rand, total, subset int) []int {
	features := make([]int, total)
	for i := range features {
		features[i] = i
	}
	rng.Shuffle(len(features), func(i, j int) {
		features[i], features[j] = features[j], features[i]
	})
	return features[:subset]
}

// bootstrap samples rows with replacement, projected onto the feature subset.
func bootstrap(rng *rand.Rand, X [][]float64, y []float64, features []int) ([][]float64, []float64) {
	n := len(X)
	bootX := make([][]float64, n)
	bootY := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		bootX[i] = project(X[idx], features)
		bootY[i] = y[idx]
	}
	return bootX, bootY
}

func project(x []float64, features []int) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		if f < len(x) {
			out[i] = x[f]
		}
	}
	return out
}
