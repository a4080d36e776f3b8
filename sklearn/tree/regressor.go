package tree

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/metrics"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/params"
)

// MaxFeaturesAll, MaxFeaturesSqrt and MaxFeaturesLog2 are the accepted
// string forms of max_features.
const (
	MaxFeaturesAll  = ""
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// ResolveMaxFeatures converts a max_features setting into a feature count.
func ResolveMaxFeatures(setting string, nFeatures int) (int, error) {
	switch setting {
	case MaxFeaturesAll, "auto", "none":
		return nFeatures, nil
	case MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	case MaxFeaturesLog2:
		return max(1, int(math.Log2(float64(nFeatures)))), nil
	default:
		return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or empty", setting)
	}
}

// DecisionTreeRegressor is a CART regression tree with squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MinImpurityDecrease float64
	MaxFeatures         string
	CCPAlpha            float64
	RandomState         uint64

	Tree *Tree
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth (<= 0 for unlimited).
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum samples of a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesLeaf = n
	}
}

// WithMinImpurityDecrease sets the weighted impurity decrease threshold.
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinImpurityDecrease = v
	}
}

// WithMaxFeatures sets the per-split feature sampling ("sqrt", "log2" or "").
func WithMaxFeatures(setting string) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxFeatures = setting
	}
}

// WithCCPAlpha sets the cost-complexity pruning parameter.
func WithCCPAlpha(alpha float64) Option {
	return func(t *DecisionTreeRegressor) {
		t.CCPAlpha = alpha
	}
}

// WithRandomState sets the seed of feature sampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) {
		t.RandomState = seed
	}
}

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit grows the tree on X, y.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	yv, err := CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	d := NewDataset(X)
	rows := make([]int, d.NRows)
	for i := range rows {
		rows[i] = i
	}
	return t.FitRows(d, yv, rows)
}

// FitRows grows the tree on a subset of rows of d; rows may repeat.
func (t *DecisionTreeRegressor) FitRows(d *Dataset, y []float64, rows []int) error {
	k, err := ResolveMaxFeatures(t.MaxFeatures, d.NFeatures())
	if err != nil {
		return err
	}
	p := DefaultParams()
	p.MaxDepth = t.MaxDepth
	p.MinSamplesSplit = t.MinSamplesSplit
	p.MinSamplesLeaf = t.MinSamplesLeaf
	p.MinImpurityDecrease = t.MinImpurityDecrease
	if k < d.NFeatures() {
		p.MaxFeatures = k
	}

	grad, hess := SquaredErrorStats(y)
	rng := rand.New(rand.NewPCG(t.RandomState, t.RandomState))
	tr := NewBuilder(p, rng).Build(d, grad, hess, rows, nil)
	tr.Prune(t.CCPAlpha)

	t.Tree = tr
	t.SetFitted()
	return nil
}

// Predict returns predictions as an n × 1 matrix.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	if _, c := X.Dims(); c != t.Tree.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", t.Tree.NFeatures, c, 1)
	}
	pred := t.Tree.Predict(X)
	return mat.NewDense(len(pred), 1, pred), nil
}

// Score returns R² of the predictions.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	return Score(t, X, y)
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "FeatureImportances")
	}
	return Normalize(t.Tree.GainImportances()), nil
}

// GetParams returns the hyperparameters by scikit-learn name.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":             t.MaxDepth,
		"min_samples_split":     t.MinSamplesSplit,
		"min_samples_leaf":      t.MinSamplesLeaf,
		"min_impurity_decrease": t.MinImpurityDecrease,
		"max_features":          t.MaxFeatures,
		"ccp_alpha":             t.CCPAlpha,
		"random_state":          int(t.RandomState),
	}
}

// SetParams sets hyperparameters by scikit-learn name.
func (t *DecisionTreeRegressor) SetParams(p map[string]interface{}) error {
	return params.Apply(p, map[string]params.Setter{
		"max_depth":             params.Int(&t.MaxDepth),
		"min_samples_split":     params.Int(&t.MinSamplesSplit),
		"min_samples_leaf":      params.Int(&t.MinSamplesLeaf),
		"min_impurity_decrease": params.Float(&t.MinImpurityDecrease),
		"max_features":          params.String(&t.MaxFeatures),
		"ccp_alpha":             params.Float(&t.CCPAlpha),
		"random_state":          params.Uint64(&t.RandomState),
		"criterion":             params.Ignore(),
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (t *DecisionTreeRegressor) Clone() model.Regressor {
	c := *t
	c.Tree = nil
	c.Reset()
	return &c
}

// CheckXY validates the shapes of a training set and returns y as a slice.
func CheckXY(op string, X, y mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != rows {
		return nil, errors.NewDimensionError(op, rows, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewDimensionError(op, 1, yc, 1)
	}
	return mat.Col(nil, 0, y), nil
}

// Score computes R² of any predictor.
func Score(p model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, pred))
}
