package ensemble

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
	"github.com/YuminosukeSato/rollcast/pkg/params"
	"github.com/YuminosukeSato/rollcast/sklearn/tree"
)

// GradientBoostingRegressor は二乗誤差の勾配ブースティング。
//
// 各ラウンドで g = pred - y, h = 1 から木を作り、葉の値に LearningRate を
// 掛けて加算する。Symmetric のときは各レベルで同じ分割を共有する対称木
// (CatBoost 方式) を使う。
type GradientBoostingRegressor struct {
	model.BaseEstimator

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinChildWeight  float64
	Subsample       float64
	ColsampleBytree float64
	Gamma           float64
	Lambda          float64
	Seed            uint64
	Symmetric       bool
	MaxBins         int

	BaseScore float64
	Trees     []*tree.Tree
	NFeatures int
}

// BoostingOption configures a GradientBoostingRegressor.
type BoostingOption func(*GradientBoostingRegressor)

// WithIterations sets the number of boosting rounds.
func WithIterations(n int) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.NEstimators = n
	}
}

// WithLearningRate sets the shrinkage applied to every tree.
func WithLearningRate(rate float64) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.LearningRate = rate
	}
}

// WithDepth sets the maximum tree depth.
func WithDepth(depth int) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.MaxDepth = depth
	}
}

// WithLambda sets the L2 penalty on leaf values.
func WithLambda(lambda float64) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.Lambda = lambda
	}
}

// WithMinChildWeight sets the minimum hessian sum of a child.
func WithMinChildWeight(w float64) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.MinChildWeight = w
	}
}

// WithSampling sets the row and per-tree column sampling ratios.
func WithSampling(subsample, colsample float64) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.Subsample = subsample
		g.ColsampleBytree = colsample
	}
}

// WithSeed sets the sampling seed.
func WithSeed(seed uint64) BoostingOption {
	return func(g *GradientBoostingRegressor) {
		g.Seed = seed
	}
}

// NewGradientBoostingRegressor creates a depth-wise booster with XGBoost
// defaults (learning_rate 0.3, max_depth 6, lambda 1).
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		Subsample:       1,
		ColsampleBytree: 1,
		Lambda:          1,
		MaxBins:         64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewCatBoostRegressor creates a booster of symmetric trees with CatBoost
// defaults (1000 iterations, learning_rate 0.03, depth 6, l2_leaf_reg 3).
func NewCatBoostRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		NEstimators:     1000,
		LearningRate:    0.03,
		MaxDepth:        6,
		Subsample:       1,
		ColsampleBytree: 1,
		Lambda:          3,
		Symmetric:       true,
		MaxBins:         64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GradientBoostingRegressor) validate() error {
	switch {
	case g.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", g.NEstimators)
	case g.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", g.LearningRate)
	case g.Subsample <= 0 || g.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	case g.ColsampleBytree <= 0 || g.ColsampleBytree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", g.ColsampleBytree)
	case g.Lambda < 0:
		return errors.NewValidationError("lambda", "must be non-negative", g.Lambda)
	}
	return nil
}

// Fit runs NEstimators boosting rounds starting from the mean of y.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.validate(); err != nil {
		return err
	}
	yv, err := tree.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	d := tree.NewDataset(X)
	n, nf := d.NRows, d.NFeatures()

	p := tree.DefaultParams()
	p.MaxDepth = g.MaxDepth
	p.MinChildWeight = g.MinChildWeight
	p.Lambda = g.Lambda
	p.Gamma = g.Gamma
	p.Oblivious = g.Symmetric
	if g.MaxBins > 1 {
		p.MaxBins = g.MaxBins
	}
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed))
	builder := tree.NewBuilder(p, rng)

	base := stat.Mean(yv, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}
	x := make([]float64, nf)

	logger := log.GetLoggerWithName("ensemble.boosting")
	trees := make([]*tree.Tree, 0, g.NEstimators)
	for iter := 0; iter < g.NEstimators; iter++ {
		floats.SubTo(grad, pred, yv)

		rows := g.sampleRows(rng, n)
		features := g.sampleFeatures(rng, nf)
		t := builder.Build(d, grad, hess, rows, features)
		for i := range t.Nodes {
			t.Nodes[i].Value *= g.LearningRate
		}
		trees = append(trees, t)

		for i := 0; i < n; i++ {
			for j := 0; j < nf; j++ {
				x[j] = d.Cols[j][i]
			}
			pred[i] += t.PredictRow(x)
		}

		if iter%10 == 0 {
			floats.SubTo(grad, pred, yv)
			logger.Debug("Training progress",
				log.IterationKey, iter,
				"loss", floats.Dot(grad, grad)/float64(n),
			)
		}
	}

	g.BaseScore = base
	g.Trees = trees
	g.NFeatures = nf
	g.SetFitted()
	return nil
}

// sampleRows draws floor(Subsample*n) rows without replacement.
func (g *GradientBoostingRegressor) sampleRows(rng *rand.Rand, n int) []int {
	if g.Subsample >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := max(1, int(g.Subsample*float64(n)))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// sampleFeatures draws the columns available to one tree; nil means all.
func (g *GradientBoostingRegressor) sampleFeatures(rng *rand.Rand, nf int) []int {
	if g.ColsampleBytree >= 1 {
		return nil
	}
	k := max(1, int(g.ColsampleBytree*float64(nf)))
	features := rng.Perm(nf)[:k]
	sort.Ints(features)
	return features
}

// Predict returns BaseScore plus the sum of the shrunken trees.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != g.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", g.NFeatures, cols, 1)
	}
	out := make([]float64, rows)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		v := g.BaseScore
		for _, t := range g.Trees {
			v += t.PredictRow(x)
		}
		out[i] = v
	}
	return mat.NewDense(rows, 1, out), nil
}

// Score returns R² of the predictions.
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	return tree.Score(g, X, y)
}

// FeatureImportances returns the total split gain per feature, normalized.
func (g *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "FeatureImportances")
	}
	imp := make([]float64, g.NFeatures)
	for _, t := range g.Trees {
		floats.Add(imp, t.GainImportances())
	}
	return tree.Normalize(imp), nil
}

// GetParams returns the hyperparameters under XGBoost names, or CatBoost
// names for symmetric boosters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	if g.Symmetric {
		return map[string]interface{}{
			"iterations":    g.NEstimators,
			"learning_rate": g.LearningRate,
			"depth":         g.MaxDepth,
			"l2_leaf_reg":   g.Lambda,
			"random_seed":   int(g.Seed),
		}
	}
	return map[string]interface{}{
		"n_estimators":     g.NEstimators,
		"learning_rate":    g.LearningRate,
		"max_depth":        g.MaxDepth,
		"min_child_weight": g.MinChildWeight,
		"subsample":        g.Subsample,
		"colsample_bytree": g.ColsampleBytree,
		"gamma":            g.Gamma,
		"lambda":           g.Lambda,
		"seed":             int(g.Seed),
	}
}

// SetParams accepts both XGBoost and CatBoost parameter names.
// nthread and objective are ignored.
func (g *GradientBoostingRegressor) SetParams(p map[string]interface{}) error {
	return params.Apply(p, map[string]params.Setter{
		"n_estimators":     params.Int(&g.NEstimators),
		"iterations":       params.Int(&g.NEstimators),
		"learning_rate":    params.Float(&g.LearningRate),
		"eta":              params.Float(&g.LearningRate),
		"max_depth":        params.Int(&g.MaxDepth),
		"depth":            params.Int(&g.MaxDepth),
		"min_child_weight": params.Float(&g.MinChildWeight),
		"subsample":        params.Float(&g.Subsample),
		"colsample_bytree": params.Float(&g.ColsampleBytree),
		"gamma":            params.Float(&g.Gamma),
		"lambda":           params.Float(&g.Lambda),
		"reg_lambda":       params.Float(&g.Lambda),
		"l2_leaf_reg":      params.Float(&g.Lambda),
		"seed":             params.Uint64(&g.Seed),
		"random_state":     params.Uint64(&g.Seed),
		"random_seed":      params.Uint64(&g.Seed),
		"nthread":          params.Ignore(),
		"objective":        params.Ignore(),
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (g *GradientBoostingRegressor) Clone() model.Regressor {
	c := *g
	c.Trees = nil
	c.BaseScore = 0
	c.NFeatures = 0
	c.Reset()
	return &c
}
