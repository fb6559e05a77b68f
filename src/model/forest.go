package model

import (
	"errors"
	"math"
	"math/rand"
	"sync"
)

// RandomForest is a bagged ensemble of CART classifiers. Each tree is
// trained on a bootstrap resample of the rows with a random feature
// subset considered at every split. Rows left out of a tree's bootstrap
// sample feed the out-of-bag generalization estimate.
type RandomForest struct {
	// Hyperparameters / options
	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // 0 => sqrt(p)
	RandomState    int64

	// Fitted state
	Trees           []*DecisionTreeClassifier
	NClasses        int
	OOBAccuracy     float64
	ConfusionMatrix [][]int

	nFeatures int
	catMask   []bool
}

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.NEstimators = n }
}
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestMinLeaf(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesLeaf = n }
}
func WithForestSeed(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:    100,
		MinSamplesLeaf: 1,
		RandomState:    1,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Bootstrap sampling is index-based so the data is
// never copied; each tree gets its own seeded rand source derived from
// the forest seed, keeping the whole fit reproducible.
func (rf *RandomForest) Fit(X [][]float64, y []int, catMask []bool, nClasses int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	rf.NClasses = nClasses
	rf.nFeatures = len(X[0])
	rf.catMask = catMask

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(rf.nFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	inBags := make([][]bool, rf.NEstimators)

	var wg sync.WaitGroup
	errCh := make(chan error, rf.NEstimators)

	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			// Each goroutine derives its own rand source to avoid contention.
			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(idx)))

			sampleIndices := make([]int, n)
			inBag := make([]bool, n)
			for j := 0; j < n; j++ {
				k := treeRand.Intn(n)
				sampleIndices[j] = k
				inBag[k] = true
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(maxFeatures),
				WithRandomState(rf.RandomState+int64(idx)),
			)
			if err := tree.FitInx(X, y, sampleIndices, catMask, nClasses); err != nil {
				errCh <- err
				return
			}
			rf.Trees[idx] = tree
			inBags[idx] = inBag
		}(i)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}

	rf.computeOOB(X, y, inBags)
	return nil
}

// computeOOB accumulates, for every row, the votes of the trees that did
// not see it during fitting, then derives the confusion matrix and the
// out-of-bag accuracy.
func (rf *RandomForest) computeOOB(X [][]float64, y []int, inBags [][]bool) {
	n := len(X)
	votes := make([][]int, n)
	for i := range votes {
		votes[i] = make([]int, rf.NClasses)
	}

	for t, tree := range rf.Trees {
		for i := 0; i < n; i++ {
			if inBags[t][i] {
				continue
			}
			votes[i][tree.Predict1(X[i])]++
		}
	}

	confMat := make([][]int, rf.NClasses)
	for i := range confMat {
		confMat[i] = make([]int, rf.NClasses)
	}

	correct, voted := 0, 0
	for i := 0; i < n; i++ {
		total := 0
		for _, v := range votes[i] {
			total += v
		}
		if total == 0 {
			// row was in-bag for every tree, skip
			continue
		}
		pred := argmaxInt(votes[i])
		confMat[y[i]][pred]++
		voted++
		if pred == y[i] {
			correct++
		}
	}

	rf.ConfusionMatrix = confMat
	if voted > 0 {
		rf.OOBAccuracy = float64(correct) / float64(voted)
	}
}

// Predict returns the majority-vote class id for each row.
func (rf *RandomForest) Predict(X [][]float64) []int {
	votes := make([][]int, len(X))
	for i := range votes {
		votes[i] = make([]int, rf.NClasses)
	}
	for _, tree := range rf.Trees {
		for i := range X {
			votes[i][tree.Predict1(X[i])]++
		}
	}
	out := make([]int, len(X))
	for i := range out {
		out[i] = argmaxInt(votes[i])
	}
	return out
}

// VarImp returns the mean decrease in Gini impurity per feature,
// averaged across all trees.
func (rf *RandomForest) VarImp() []float64 {
	imp := make([]float64, rf.nFeatures)
	for _, tree := range rf.Trees {
		for f, v := range tree.VarImp() {
			imp[f] += v / float64(rf.NEstimators)
		}
	}
	return imp
}

// RegressionForest is the bagged counterpart for continuous targets,
// used by the iterative imputer.
type RegressionForest struct {
	NEstimators    int
	MinSamplesLeaf int
	MaxFeatures    int
	RandomState    int64

	Trees []*RegressionTree
}

// Fit trains the regression forest on bootstrap resamples.
func (rf *RegressionForest) Fit(X [][]float64, y []float64, catMask []bool) error {
	if len(X) == 0 {
		return errors.New("regressionforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("regressionforest: X and y length mismatch")
	}

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		// p/3 is the usual regression default
		maxFeatures = len(X[0]) / 3
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	rf.Trees = make([]*RegressionTree, rf.NEstimators)
	var wg sync.WaitGroup
	errCh := make(chan error, rf.NEstimators)

	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(idx)))
			sampleIndices := make([]int, n)
			for j := 0; j < n; j++ {
				sampleIndices[j] = treeRand.Intn(n)
			}

			tree := NewRegressionTree(rf.MinSamplesLeaf, maxFeatures, rf.RandomState+int64(idx))
			if err := tree.FitInx(X, y, sampleIndices, catMask); err != nil {
				errCh <- err
				return
			}
			rf.Trees[idx] = tree
		}(i)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// Predict1 returns the mean prediction across the ensemble for one row.
func (rf *RegressionForest) Predict1(x []float64) float64 {
	sum := 0.0
	for _, tree := range rf.Trees {
		sum += tree.Predict1(x)
	}
	return sum / float64(len(rf.Trees))
}
