// Package tree implements regression trees grown on gradient statistics.
//
// A tree is grown from per-sample gradients g and hessians h: a leaf takes
// the value -G/(H+lambda) and a split is scored by the loss reduction
//
//	0.5 * (GL²/(HL+lambda) + GR²/(HR+lambda) - G²/(H+lambda)).
//
// With g = -y, h = 1 and lambda = 0 this is the CART squared-error criterion
// (leaf value = mean, gain = half the drop in sum of squares), which is how
// DecisionTreeRegressor and the random forest use it; the boosting ensembles
// pass the gradients of the squared loss at the current prediction.
package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a Tree. Children are indices into Tree.Nodes;
// -1 marks a leaf.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	// Value is the output of the node if it were a leaf.
	Value float64
	// Gain is the loss reduction of the split (0 for leaves).
	Gain float64

	Samples int
	SumGrad float64
	SumHess float64
	// SumSqGrad は Σg²。二乗誤差では不純度の計算に使う
	SumSqGrad float64
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a binary regression tree stored as a flat node array with the
// root at index 0.
type Tree struct {
	Nodes     []Node
	NFeatures int
}

// PredictRow returns the leaf value reached by x.
func (t *Tree) PredictRow(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		// NaN は左へ
		if v := x[n.Feature]; v <= n.Threshold || math.IsNaN(v) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Predict returns one prediction per row of X.
func (t *Tree) Predict(X mat.Matrix) []float64 {
	rows, cols := X.Dims()
	out := make([]float64, rows)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out[i] = t.PredictRow(x)
	}
	return out
}

// walk visits the nodes reachable from the root.
func (t *Tree) walk(fn func(i int, n *Node)) {
	if len(t.Nodes) == 0 {
		return
	}
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[i]
		fn(i, n)
		if !n.IsLeaf() {
			stack = append(stack, n.Right, n.Left)
		}
	}
}

// Leaves returns the number of reachable leaves.
func (t *Tree) Leaves() int {
	count := 0
	t.walk(func(_ int, n *Node) {
		if n.IsLeaf() {
			count++
		}
	})
	return count
}

// Depth returns the depth of the deepest reachable leaf (root only = 0).
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

// GainImportances returns the total split gain per feature, unnormalized.
func (t *Tree) GainImportances() []float64 {
	imp := make([]float64, t.NFeatures)
	t.walk(func(_ int, n *Node) {
		if !n.IsLeaf() {
			imp[n.Feature] += n.Gain
		}
	})
	return imp
}

// Normalize scales v to sum to 1. A zero vector is left unchanged.
func Normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return v
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}

// sse は二乗誤差モードでのノードの残差平方和 Σy² - (Σy)²/n
func (n *Node) sse() float64 {
	if n.SumHess <= 0 {
		return 0
	}
	return math.Max(n.SumSqGrad-n.SumGrad*n.SumGrad/n.SumHess, 0)
}

// Prune applies minimal cost-complexity pruning with parameter alpha, as in
// scikit-learn: the subtree with the smallest effective alpha is collapsed
// into a leaf while that alpha does not exceed the given one. Node risk is
// the node's sum of squares divided by the root sample weight, so Prune is
// only meaningful for trees grown with g = -y, h = 1.
func (t *Tree) Prune(alpha float64) {
	if alpha <= 0 || len(t.Nodes) == 0 {
		return
	}
	total := t.Nodes[0].SumHess
	if total <= 0 {
		return
	}

	for {
		// 各内部ノードの部分木のリスクと葉数を下から集計
		risk := make(map[int]float64)
		leaves := make(map[int]int)
		var collect func(i int)
		collect = func(i int) {
			n := &t.Nodes[i]
			if n.IsLeaf() {
				risk[i] = n.sse() / total
				leaves[i] = 1
				return
			}
			collect(n.Left)
			collect(n.Right)
			risk[i] = risk[n.Left] + risk[n.Right]
			leaves[i] = leaves[n.Left] + leaves[n.Right]
		}
		collect(0)

		weakest, weakestAlpha := -1, math.Inf(1)
		t.walk(func(i int, n *Node) {
			if n.IsLeaf() {
				return
			}
			eff := (n.sse()/total - risk[i]) / float64(leaves[i]-1)
			if eff < weakestAlpha {
				weakest, weakestAlpha = i, eff
			}
		})
		if weakest < 0 || weakestAlpha > alpha {
			return
		}
		n := &t.Nodes[weakest]
		n.Left, n.Right, n.Gain = -1, -1, 0
	}
}
