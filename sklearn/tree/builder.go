package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Params controls tree growth.
type Params struct {
	// MaxDepth <= 0 means unlimited depth (oblivious trees require a depth).
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MinChildWeight is the minimum hessian sum of a child.
	MinChildWeight float64
	// MinImpurityDecrease is scikit-learn's weighted impurity decrease
	// threshold, N_t/N * (impurity - weighted child impurity).
	MinImpurityDecrease float64
	// Lambda is the L2 penalty on leaf values.
	Lambda float64
	// Gamma is the minimum loss reduction required to split.
	Gamma float64
	// MaxFeatures is the number of features drawn per split; <= 0 means all.
	MaxFeatures int
	// Oblivious grows symmetric trees: every node of a level shares one split.
	Oblivious bool
	// MaxBins bounds the candidate borders per feature of oblivious trees.
	MaxBins int
}

// DefaultParams returns CART defaults: unlimited depth, at least two
// samples to split, one per leaf.
func DefaultParams() Params {
	return Params{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxBins:         64,
	}
}

// Dataset is a column-major copy of a feature matrix.
type Dataset struct {
	Cols  [][]float64
	NRows int
}

// NewDataset copies X into column-major storage.
func NewDataset(X mat.Matrix) *Dataset {
	rows, cols := X.Dims()
	d := &Dataset{Cols: make([][]float64, cols), NRows: rows}
	for j := 0; j < cols; j++ {
		d.Cols[j] = mat.Col(nil, j, X)
	}
	return d
}

// NFeatures returns the number of columns.
func (d *Dataset) NFeatures() int {
	return len(d.Cols)
}

// Builder grows trees from gradient statistics.
type Builder struct {
	params Params
	rng    *rand.Rand
}

// NewBuilder creates a Builder. rng is used for per-split feature sampling
// and may be nil when MaxFeatures is not set.
func NewBuilder(params Params, rng *rand.Rand) *Builder {
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	if params.MaxBins < 2 {
		params.MaxBins = 64
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	return &Builder{params: params, rng: rng}
}

// SquaredErrorStats returns g = -y, h = 1, the statistics under which the
// builder reproduces CART on y.
func SquaredErrorStats(y []float64) (grad, hess []float64) {
	grad = make([]float64, len(y))
	hess = make([]float64, len(y))
	for i, v := range y {
		grad[i] = -v
		hess[i] = 1
	}
	return grad, hess
}

// Build grows a tree over the given rows (duplicates allowed, as for a
// bootstrap sample). features restricts the candidate features; nil means
// all of them.
func (b *Builder) Build(d *Dataset, grad, hess []float64, rows []int, features []int) *Tree {
	if features == nil {
		features = make([]int, d.NFeatures())
		for j := range features {
			features[j] = j
		}
	}
	t := &Tree{NFeatures: d.NFeatures()}
	if len(rows) == 0 {
		t.Nodes = []Node{{Left: -1, Right: -1}}
		return t
	}
	g := &grower{
		Builder:  b,
		d:        d,
		grad:     grad,
		hess:     hess,
		features: features,
		tree:     t,
		rootHess: sumHess(hess, rows),
	}
	if b.params.Oblivious {
		g.growOblivious(rows)
	} else {
		g.grow(rows, 0)
	}
	return t
}

type grower struct {
	*Builder
	d        *Dataset
	grad     []float64
	hess     []float64
	features []int
	tree     *Tree
	rootHess float64
}

func sumHess(hess []float64, rows []int) float64 {
	s := 0.0
	for _, r := range rows {
		s += hess[r]
	}
	return s
}

func (g *grower) leafValue(sumG, sumH float64) float64 {
	den := sumH + g.params.Lambda
	if den <= 0 {
		return 0
	}
	return -sumG / den
}

func (g *grower) score(sumG, sumH float64) float64 {
	den := sumH + g.params.Lambda
	if den <= 0 {
		return 0
	}
	return sumG * sumG / den
}

func (g *grower) newNode(rows []int) int {
	n := Node{Left: -1, Right: -1, Samples: len(rows)}
	for _, r := range rows {
		n.SumGrad += g.grad[r]
		n.SumHess += g.hess[r]
		n.SumSqGrad += g.grad[r] * g.grad[r]
	}
	n.Value = g.leafValue(n.SumGrad, n.SumHess)
	g.tree.Nodes = append(g.tree.Nodes, n)
	return len(g.tree.Nodes) - 1
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// candidateFeatures returns the features examined at one split.
func (g *grower) candidateFeatures() []int {
	k := g.params.MaxFeatures
	if k <= 0 || k >= len(g.features) {
		return g.features
	}
	perm := g.rng.Perm(len(g.features))
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = g.features[perm[i]]
	}
	return out
}

func (g *grower) grow(rows []int, depth int) int {
	idx := g.newNode(rows)
	node := g.tree.Nodes[idx]

	p := g.params
	if (p.MaxDepth > 0 && depth >= p.MaxDepth) || len(rows) < p.MinSamplesSplit || len(rows) < 2*p.MinSamplesLeaf {
		return idx
	}

	best := g.bestSplit(rows, node.SumGrad, node.SumHess)
	if !best.ok || best.gain <= p.Gamma {
		return idx
	}
	// scikit-learn の重み付き不純度減少 = 2*gain / N (二乗誤差のとき)
	if p.MinImpurityDecrease > 0 && g.rootHess > 0 && 2*best.gain/g.rootHess < p.MinImpurityDecrease {
		return idx
	}

	var left, right []int
	col := g.d.Cols[best.feature]
	for _, r := range rows {
		if v := col[r]; v <= best.threshold || math.IsNaN(v) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	n := &g.tree.Nodes[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Gain = best.gain
	n.Left, n.Right = l, r
	return idx
}

// bestSplit scans every candidate feature with exact thresholds.
func (g *grower) bestSplit(rows []int, sumG, sumH float64) split {
	p := g.params
	parent := g.score(sumG, sumH)
	best := split{gain: math.Inf(-1)}

	sorted := make([]int, len(rows))
	for _, f := range g.candidateFeatures() {
		col := g.d.Cols[f]
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool {
			return less(col[sorted[a]], col[sorted[b]])
		})

		var lg, lh float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			lg += g.grad[r]
			lh += g.hess[r]
			cur, next := col[r], col[sorted[i+1]]
			if cur == next || math.IsNaN(next) && math.IsNaN(cur) {
				continue
			}
			nl, nr := i+1, len(sorted)-i-1
			if nl < p.MinSamplesLeaf || nr < p.MinSamplesLeaf {
				continue
			}
			rg, rh := sumG-lg, sumH-lh
			if lh < p.MinChildWeight || rh < p.MinChildWeight {
				continue
			}
			gain := 0.5 * (g.score(lg, lh) + g.score(rg, rh) - parent)
			if gain > best.gain {
				best = split{feature: f, threshold: threshold(cur, next), gain: gain, ok: true}
			}
		}
	}
	return best
}

// less orders NaN before every number so that missing values go left.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	if math.IsNaN(b) {
		return false
	}
	return a < b
}

func threshold(cur, next float64) float64 {
	if math.IsNaN(cur) {
		// 欠損のみを左に送る
		return math.Inf(-1)
	}
	t := cur + (next-cur)/2
	if t >= next {
		t = cur
	}
	return t
}

// growOblivious grows a symmetric tree level by level. All nodes of a level
// use the split with the largest total gain over the level's nodes; empty
// nodes still split so that the tree stays complete.
func (g *grower) growOblivious(rows []int) {
	depth := g.params.MaxDepth
	if depth <= 0 {
		depth = 6
	}

	level := [][]int{rows}
	ids := []int{g.newNode(rows)}
	for d := 0; d < depth; d++ {
		best := g.bestLevelSplit(level)
		if !best.ok || best.gain <= g.params.Gamma {
			return
		}
		col := g.d.Cols[best.feature]
		var nextLevel [][]int
		var nextIDs []int
		for i, part := range level {
			var left, right []int
			for _, r := range part {
				if v := col[r]; v <= best.threshold || math.IsNaN(v) {
					left = append(left, r)
				} else {
					right = append(right, r)
				}
			}
			l := g.newNode(left)
			r := g.newNode(right)
			n := &g.tree.Nodes[ids[i]]
			n.Feature, n.Threshold, n.Left, n.Right = best.feature, best.threshold, l, r
			n.Gain = 0.5 * (g.score(g.tree.Nodes[l].SumGrad, g.tree.Nodes[l].SumHess) +
				g.score(g.tree.Nodes[r].SumGrad, g.tree.Nodes[r].SumHess) -
				g.score(n.SumGrad, n.SumHess))
			nextLevel = append(nextLevel, left, right)
			nextIDs = append(nextIDs, l, r)
		}
		level, ids = nextLevel, nextIDs
	}
}

// bestLevelSplit evaluates quantile borders of each feature with per-node
// gradient histograms and returns the border maximizing the summed gain.
func (g *grower) bestLevelSplit(level [][]int) split {
	best := split{gain: math.Inf(-1)}
	for _, f := range g.candidateFeatures() {
		col := g.d.Cols[f]
		borders := g.borders(col, level)
		if len(borders) == 0 {
			continue
		}
		total := make([]float64, len(borders))
		for _, part := range level {
			// bin k: borders[k-1] < v <= borders[k]; 最後の bin は全 border より大きい値
			hg := make([]float64, len(borders)+1)
			hh := make([]float64, len(borders)+1)
			var sg, sh float64
			for _, r := range part {
				v := col[r]
				k := 0
				if !math.IsNaN(v) {
					k = sort.SearchFloat64s(borders, v)
				}
				hg[k] += g.grad[r]
				hh[k] += g.hess[r]
				sg += g.grad[r]
				sh += g.hess[r]
			}
			parent := g.score(sg, sh)
			var lg, lh float64
			for k := range borders {
				lg += hg[k]
				lh += hh[k]
				total[k] += 0.5 * (g.score(lg, lh) + g.score(sg-lg, sh-lh) - parent)
			}
		}
		for k, gain := range total {
			if gain > best.gain {
				best = split{feature: f, threshold: borders[k], gain: gain, ok: true}
			}
		}
	}
	return best
}

// borders returns up to MaxBins-1 distinct split values of col over the
// level's rows, taken at evenly spaced ranks of the sorted unique values.
func (g *grower) borders(col []float64, level [][]int) []float64 {
	seen := make(map[float64]bool)
	var uniq []float64
	for _, part := range level {
		for _, r := range part {
			v := col[r]
			if !math.IsNaN(v) && !seen[v] {
				seen[v] = true
				uniq = append(uniq, v)
			}
		}
	}
	if len(uniq) < 2 {
		return nil
	}
	sort.Float64s(uniq)

	n := len(uniq) - 1 // 候補は隣接値の間
	k := g.params.MaxBins - 1
	if k > n {
		k = n
	}
	out := make([]float64, 0, k)
	for i := 0; i < k; i++ {
		pos := (i * n) / k
		t := threshold(uniq[pos], uniq[pos+1])
		if len(out) == 0 || t > out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}
