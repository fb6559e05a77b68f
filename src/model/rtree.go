package model

import (
	"errors"
	"math/rand"
	"sort"
)

// RegressionTree is the CART regressor used by the iterative imputer for
// continuous target columns. Split quality is measured by the decrease in
// within-node variance; leaves predict the mean of their samples.
// Categorical features follow the same equality-split encoding as the
// classifier.
type RegressionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64

	root      *rtNode
	nFeatures int
}

type rtNode struct {
	isLeaf    bool
	feature   int
	threshold float64
	isCat     bool
	left      *rtNode
	right     *rtNode

	n    int
	mean float64
}

// NewRegressionTree mirrors the classifier's defaults.
func NewRegressionTree(minLeaf, maxFeatures int, seed int64) *RegressionTree {
	return &RegressionTree{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  minLeaf,
		MaxFeatures:     maxFeatures,
		RandomState:     seed,
	}
}

// FitInx trains the tree on the rows of X selected by idx.
func (t *RegressionTree) FitInx(X [][]float64, y []float64, idx []int, catMask []bool) error {
	if len(X) == 0 || len(idx) == 0 {
		return errors.New("rtree: empty X")
	}
	if len(y) != len(X) {
		return errors.New("rtree: X and y length mismatch")
	}
	t.nFeatures = len(X[0])
	if len(catMask) != t.nFeatures {
		return errors.New("rtree: catMask length mismatch")
	}

	rnd := rand.New(rand.NewSource(t.RandomState))
	t.root = t.buildNode(X, y, idx, catMask, 0, rnd)
	return nil
}

// Predict1 returns the prediction for a single row.
func (t *RegressionTree) Predict1(x []float64) float64 {
	node := t.root
	for !node.isLeaf {
		v := x[node.feature]
		goLeft := v <= node.threshold
		if node.isCat {
			goLeft = v == node.threshold
		}
		if goLeft {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.mean
}

type rtSplit struct {
	feature   int
	threshold float64
	isCat     bool
	score     float64 // weighted child SSE, lower is better
	leftIdx   []int
	rightIdx  []int
}

func (t *RegressionTree) buildNode(X [][]float64, y []float64, idx []int, catMask []bool, depth int, rnd *rand.Rand) *rtNode {
	mean, sse := meanSSE(y, idx)
	node := &rtNode{n: len(idx), mean: mean}

	if len(idx) < t.MinSamplesSplit ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		sse == 0 {
		node.isLeaf = true
		return node
	}

	best := t.bestSplit(X, y, idx, catMask, sse, rnd)
	if best == nil {
		node.isLeaf = true
		return node
	}

	node.feature = best.feature
	node.threshold = best.threshold
	node.isCat = best.isCat
	node.left = t.buildNode(X, y, best.leftIdx, catMask, depth+1, rnd)
	node.right = t.buildNode(X, y, best.rightIdx, catMask, depth+1, rnd)
	return node
}

func (t *RegressionTree) bestSplit(X [][]float64, y []float64, idx []int, catMask []bool, parentSSE float64, rnd *rand.Rand) *rtSplit {
	features := sampleFeatures(t.nFeatures, t.MaxFeatures, rnd)

	var best *rtSplit
	for _, f := range features {
		var cand *rtSplit
		if catMask[f] {
			cand = t.bestCatSplit(X, y, idx, f)
		} else {
			cand = t.bestNumSplit(X, y, idx, f)
		}
		if cand == nil || cand.score >= parentSSE {
			continue
		}
		if best == nil || cand.score < best.score {
			best = cand
		}
	}
	return best
}

func (t *RegressionTree) bestCatSplit(X [][]float64, y []float64, idx []int, f int) *rtSplit {
	levels := map[float64]bool{}
	for _, i := range idx {
		levels[X[i][f]] = true
	}
	if len(levels) < 2 {
		return nil
	}

	var best *rtSplit
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
		_, lSSE := meanSSE(y, left)
		_, rSSE := meanSSE(y, right)
		score := lSSE + rSSE
		if best == nil || score < best.score {
			best = &rtSplit{feature: f, threshold: lv, isCat: true, score: score, leftIdx: left, rightIdx: right}
		}
	}
	return best
}

func (t *RegressionTree) bestNumSplit(X [][]float64, y []float64, idx []int, f int) *rtSplit {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

	var best *rtSplit
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
		left := sorted[:nl]
		right := sorted[nl:]
		_, lSSE := meanSSE(y, left)
		_, rSSE := meanSSE(y, right)
		score := lSSE + rSSE
		if best == nil || score < best.score {
			best = &rtSplit{
				feature:   f,
				threshold: (v + next) / 2,
				score:     score,
				leftIdx:   append([]int(nil), left...),
				rightIdx:  append([]int(nil), right...),
			}
		}
	}
	return best
}

// meanSSE returns the mean and sum of squared errors of y over idx.
func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
