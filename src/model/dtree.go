package model

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// DecisionTreeClassifier is a CART-style classifier.
// Categorical features are encoded as level indices (0,1,2...) in the
// corresponding float64 entry; the catMask passed to Fit marks which
// features split by equality (x == value) instead of threshold (x <= t).
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth        int   // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit int   // minimum samples to attempt a split
	MinSamplesLeaf  int   // minimum samples required in each leaf
	MaxFeatures     int   // 0 => use all features, >0 => number of features to sample when looking for a split
	RandomState     int64 // seed for feature subsampling

	// internals
	root       *dtNode
	nClasses   int
	nFeatures  int
	importance []float64 // accumulated impurity decrease per feature
}

// dtNode holds a node in the tree.
type dtNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // numeric: x <= threshold => left; categorical: x == threshold => left
	isCat     bool
	left      *dtNode
	right     *dtNode

	// leaf data
	n         int
	counts    []int
	predClass int
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fit trains the tree on all rows of X.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int, catMask []bool, nClasses int) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitInx(X, y, idx, catMask, nClasses)
}

// FitInx trains the tree on the rows of X selected by idx. Index-based
// sampling lets a forest bootstrap without copying the data.
func (t *DecisionTreeClassifier) FitInx(X [][]float64, y []int, idx []int, catMask []bool, nClasses int) error {
	if len(X) == 0 || len(idx) == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != len(X) {
		return errors.New("dtree: X and y length mismatch")
	}
	t.nClasses = nClasses
	t.nFeatures = len(X[0])
	if len(catMask) != t.nFeatures {
		return errors.New("dtree: catMask length mismatch")
	}
	t.importance = make([]float64, t.nFeatures)

	rnd := rand.New(rand.NewSource(t.RandomState))
	t.root = t.buildNode(X, y, idx, catMask, 0, len(idx), rnd)
	return nil
}

// Predict returns predicted class ids for the rows of X.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.Predict1(X[i])
	}
	return out
}

// Predict1 returns the predicted class id for a single row.
func (t *DecisionTreeClassifier) Predict1(x []float64) int {
	node := t.root
	for !node.isLeaf {
		if node.goLeft(x) {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.predClass
}

// VarImp returns the accumulated impurity decrease per feature.
func (t *DecisionTreeClassifier) VarImp() []float64 {
	return t.importance
}

func (nd *dtNode) goLeft(x []float64) bool {
	v := x[nd.feature]
	if nd.isCat {
		return v == nd.threshold
	}
	return v <= nd.threshold
}

type dtSplit struct {
	feature   int
	threshold float64
	isCat     bool
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

func (t *DecisionTreeClassifier) buildNode(X [][]float64, y []int, idx []int, catMask []bool, depth, total int, rnd *rand.Rand) *dtNode {
	counts := classCounts(y, idx, t.nClasses)
	node := &dtNode{n: len(idx), counts: counts, predClass: argmaxInt(counts)}

	if len(idx) < t.MinSamplesSplit ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		isPure(counts) {
		node.isLeaf = true
		return node
	}

	best := t.bestSplit(X, y, idx, catMask, counts, rnd)
	if best == nil {
		node.isLeaf = true
		return node
	}

	// weighted impurity decrease, weighted by the node's share of samples
	parentImp := giniFromCounts(counts)
	leftImp := giniFromCounts(classCounts(y, best.leftIdx, t.nClasses))
	rightImp := giniFromCounts(classCounts(y, best.rightIdx, t.nClasses))
	nl, nr, n := float64(len(best.leftIdx)), float64(len(best.rightIdx)), float64(len(idx))
	decrease := parentImp - (nl/n)*leftImp - (nr/n)*rightImp
	t.importance[best.feature] += (n / float64(total)) * decrease

	node.feature = best.feature
	node.threshold = best.threshold
	node.isCat = best.isCat
	node.left = t.buildNode(X, y, best.leftIdx, catMask, depth+1, total, rnd)
	node.right = t.buildNode(X, y, best.rightIdx, catMask, depth+1, total, rnd)
	return node
}

func (t *DecisionTreeClassifier) bestSplit(X [][]float64, y []int, idx []int, catMask []bool, counts []int, rnd *rand.Rand) *dtSplit {
	parentImp := giniFromCounts(counts)

	features := sampleFeatures(t.nFeatures, t.MaxFeatures, rnd)

	var best *dtSplit
	for _, f := range features {
		var cand *dtSplit
		if catMask[f] {
			cand = t.bestCatSplit(X, y, idx, f, parentImp)
		} else {
			cand = t.bestNumSplit(X, y, idx, f, parentImp)
		}
		if cand != nil && (best == nil || cand.gain > best.gain) {
			best = cand
		}
	}
	return best
}

// bestCatSplit tries one-vs-rest equality splits on every level present.
func (t *DecisionTreeClassifier) bestCatSplit(X [][]float64, y []int, idx []int, f int, parentImp float64) *dtSplit {
	levels := map[float64]bool{}
	for _, i := range idx {
		levels[X[i][f]] = true
	}
	if len(levels) < 2 {
		return nil
	}

	var best *dtSplit
	for lv := range levels {
		var left, right []int
		for _, i := range idx {
			if X[i][f] == lv {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) < t.MinSamplesLeaf || len(right) < t.MinSamplesLeaf {
			continue
		}
		gain := splitGain(y, left, right, t.nClasses, parentImp)
		if best == nil || gain > best.gain {
			best = &dtSplit{feature: f, threshold: lv, isCat: true, gain: gain, leftIdx: left, rightIdx: right}
		}
	}
	return best
}

// bestNumSplit scans midpoints between consecutive distinct sorted values.
func (t *DecisionTreeClassifier) bestNumSplit(X [][]float64, y []int, idx []int, f int, parentImp float64) *dtSplit {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

	var best *dtSplit
	for k := 0; k+1 < len(sorted); k++ {
		v, next := X[sorted[k]][f], X[sorted[k+1]][f]
		if v == next {
			continue
		}
		nl := k + 1
		nr := len(sorted) - nl
		if nl < t.MinSamplesLeaf || nr < t.MinSamplesLeaf {
			continue
		}
		threshold := (v + next) / 2
		left := sorted[:nl]
		right := sorted[nl:]
		gain := splitGain(y, left, right, t.nClasses, parentImp)
		if best == nil || gain > best.gain {
			best = &dtSplit{
				feature:   f,
				threshold: threshold,
				gain:      gain,
				leftIdx:   append([]int(nil), left...),
				rightIdx:  append([]int(nil), right...),
			}
		}
	}
	return best
}

// ---------------------------
// helpers
// ---------------------------

func sampleFeatures(p, maxFeatures int, rnd *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rnd.Perm(p)
	return perm[:maxFeatures]
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func splitGain(y []int, left, right []int, nClasses int, parentImp float64) float64 {
	nl, nr := float64(len(left)), float64(len(right))
	n := nl + nr
	leftImp := giniFromCounts(classCounts(y, left, nClasses))
	rightImp := giniFromCounts(classCounts(y, right, nClasses))
	return parentImp - (nl/n)*leftImp - (nr/n)*rightImp
}

func giniFromCounts(counts []int) float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmaxInt(v []int) int {
	maxI, maxV := 0, math.MinInt
	for i, x := range v {
		if x > maxV {
			maxI, maxV = i, x
		}
	}
	return maxI
}
