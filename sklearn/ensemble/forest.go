// Package ensemble provides tree ensembles for regression: a bagged random
// forest of CART trees and second-order gradient boosting with either
// depth-wise or symmetric (oblivious) trees.
package ensemble

import (
	"encoding/gob"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/core/parallel"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
	"github.com/YuminosukeSato/rollcast/pkg/params"
	"github.com/YuminosukeSato/rollcast/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestRegressor{})
	gob.Register(&GradientBoostingRegressor{})
	gob.Register(&tree.DecisionTreeRegressor{})
}

// RandomForestRegressor averages CART trees grown on bootstrap samples.
type RandomForestRegressor struct {
	model.BaseEstimator

	NEstimators         int
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MinImpurityDecrease float64
	MaxFeatures         string
	CCPAlpha            float64
	Bootstrap           bool
	RandomState         uint64
	// NJobs は木を並列に学習するゴルーチン数 (<= 0 で CPU 数)
	NJobs int

	Estimators []*tree.DecisionTreeRegressor
	NFeatures  int
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForestRegressor) {
		f.NEstimators = n
	}
}

// WithForestMaxDepth sets the maximum depth of every tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(f *RandomForestRegressor) {
		f.MaxDepth = depth
	}
}

// WithForestMinSamplesLeaf sets the minimum samples per leaf.
func WithForestMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForestRegressor) {
		f.MinSamplesLeaf = n
	}
}

// WithForestMaxFeatures sets the per-split feature sampling.
func WithForestMaxFeatures(setting string) ForestOption {
	return func(f *RandomForestRegressor) {
		f.MaxFeatures = setting
	}
}

// WithBootstrap enables or disables bootstrap sampling.
func WithBootstrap(enabled bool) ForestOption {
	return func(f *RandomForestRegressor) {
		f.Bootstrap = enabled
	}
}

// WithForestRandomState sets the seed.
func WithForestRandomState(seed uint64) ForestOption {
	return func(f *RandomForestRegressor) {
		f.RandomState = seed
	}
}

// WithNJobs sets the number of concurrent tree builders.
func WithNJobs(n int) ForestOption {
	return func(f *RandomForestRegressor) {
		f.NJobs = n
	}
}

// NewRandomForestRegressor creates a forest with scikit-learn defaults
// (100 trees, bootstrap, all features per split).
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	f := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows NEstimators trees. Each tree gets its own seed drawn from
// RandomState before any tree is built, so the result does not depend on NJobs.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.NEstimators)
	}
	if _, err := tree.ResolveMaxFeatures(f.MaxFeatures, 1); err != nil {
		return err
	}
	yv, err := tree.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	d := tree.NewDataset(X)
	n := d.NRows

	master := rand.New(rand.NewPCG(f.RandomState, f.RandomState))
	seeds := make([]uint64, f.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	estimators := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	parallel.Parallelize(f.NEstimators, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			rng := rand.New(rand.NewPCG(seeds[i], seeds[i]))
			rows := make([]int, n)
			for j := range rows {
				if f.Bootstrap {
					rows[j] = rng.IntN(n)
				} else {
					rows[j] = j
				}
			}
			est := &tree.DecisionTreeRegressor{
				MaxDepth:            f.MaxDepth,
				MinSamplesSplit:     f.MinSamplesSplit,
				MinSamplesLeaf:      f.MinSamplesLeaf,
				MinImpurityDecrease: f.MinImpurityDecrease,
				MaxFeatures:         f.MaxFeatures,
				CCPAlpha:            f.CCPAlpha,
				RandomState:         rng.Uint64(),
			}
			errs[i] = est.FitRows(d, yv, rows)
			estimators[i] = est
		}
	})
	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	f.Estimators = estimators
	f.NFeatures = d.NFeatures()
	f.SetFitted()

	log.GetLoggerWithName("ensemble.forest").Debug("Random forest fitted",
		log.ModelNameKey, "RandomForestRegressor",
		log.SamplesKey, n,
		log.FeaturesKey, f.NFeatures,
		"n_estimators", f.NEstimators,
	)
	return nil
}

// Predict returns the mean prediction of the trees.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != f.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", f.NFeatures, cols, 1)
	}
	out := make([]float64, rows)
	for _, est := range f.Estimators {
		for i, v := range est.Tree.Predict(X) {
			out[i] += v
		}
	}
	k := float64(len(f.Estimators))
	for i := range out {
		out[i] /= k
	}
	return mat.NewDense(rows, 1, out), nil
}

// Score returns R² of the predictions.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	return tree.Score(f, X, y)
}

// FeatureImportances averages the normalized importances of the trees.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "FeatureImportances")
	}
	imp := make([]float64, f.NFeatures)
	for _, est := range f.Estimators {
		for j, v := range tree.Normalize(est.Tree.GainImportances()) {
			imp[j] += v
		}
	}
	return tree.Normalize(imp), nil
}

// GetParams returns the hyperparameters by scikit-learn name.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":          f.NEstimators,
		"max_depth":             f.MaxDepth,
		"min_samples_split":     f.MinSamplesSplit,
		"min_samples_leaf":      f.MinSamplesLeaf,
		"min_impurity_decrease": f.MinImpurityDecrease,
		"max_features":          f.MaxFeatures,
		"ccp_alpha":             f.CCPAlpha,
		"bootstrap":             f.Bootstrap,
		"random_state":          int(f.RandomState),
		"n_jobs":                f.NJobs,
	}
}

// SetParams sets hyperparameters by scikit-learn name. "criterion" is
// accepted and ignored: only squared error is implemented.
func (f *RandomForestRegressor) SetParams(p map[string]interface{}) error {
	return params.Apply(p, map[string]params.Setter{
		"n_estimators":          params.Int(&f.NEstimators),
		"max_depth":             params.Int(&f.MaxDepth),
		"min_samples_split":     params.Int(&f.MinSamplesSplit),
		"min_samples_leaf":      params.Int(&f.MinSamplesLeaf),
		"min_impurity_decrease": params.Float(&f.MinImpurityDecrease),
		"max_features":          params.String(&f.MaxFeatures),
		"ccp_alpha":             params.Float(&f.CCPAlpha),
		"bootstrap":             params.Bool(&f.Bootstrap),
		"random_state":          params.Uint64(&f.RandomState),
		"n_jobs":                params.Int(&f.NJobs),
		"criterion":             params.Ignore(),
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (f *RandomForestRegressor) Clone() model.Regressor {
	c := *f
	c.Estimators = nil
	c.NFeatures = 0
	c.Reset()
	return &c
}
