package ensemble

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// stepData は1列目だけが目的変数を決める階段関数
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		1, 3,
		2, 1,
		3, 4,
		4, 1,
		5, 5,
		6, 9,
		7, 2,
		8, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})
	return X, y
}

func predictions(t *testing.T, m model.Predictor, X mat.Matrix) []float64 {
	t.Helper()
	pred, err := m.Predict(X)
	require.NoError(t, err)
	return mat.Col(nil, 0, pred)
}

func TestRandomForest_WithoutBootstrapFitsExactly(t *testing.T) {
	X, y := stepData()
	rf := NewRandomForestRegressor(WithNEstimators(5), WithBootstrap(false))
	require.NoError(t, rf.Fit(X, y))

	assert.Len(t, rf.Estimators, 5)
	assert.Equal(t, mat.Col(nil, 0, y), predictions(t, rf, X))
}

func TestRandomForest_Bootstrap(t *testing.T) {
	X, y := stepData()
	rf := NewRandomForestRegressor(WithNEstimators(50), WithForestRandomState(1), WithNJobs(4))
	require.NoError(t, rf.Fit(X, y))

	pred := predictions(t, rf, X)
	assert.Less(t, pred[0], 2.0)
	assert.Greater(t, pred[7], 8.0)

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-12)
	assert.Greater(t, imp[0], imp[1])
}

func TestRandomForest_DeterministicAcrossJobs(t *testing.T) {
	X, y := stepData()
	fit := func(jobs int) []float64 {
		rf := NewRandomForestRegressor(
			WithNEstimators(20),
			WithForestRandomState(3),
			WithForestMaxFeatures("sqrt"),
			WithNJobs(jobs),
		)
		require.NoError(t, rf.Fit(X, y))
		return predictions(t, rf, X)
	}
	assert.Equal(t, fit(1), fit(4))
}

func TestRandomForest_Params(t *testing.T) {
	rf := NewRandomForestRegressor()
	require.NoError(t, rf.SetParams(map[string]interface{}{
		"criterion":             "mse",
		"max_depth":             5,
		"min_samples_leaf":      10,
		"min_impurity_decrease": 0.005,
		"max_features":          "log2",
		"n_estimators":          100,
		"ccp_alpha":             0.05,
		"random_state":          1,
	}))
	assert.Equal(t, 5, rf.MaxDepth)
	assert.Equal(t, 10, rf.MinSamplesLeaf)
	assert.Equal(t, "log2", rf.MaxFeatures)
	assert.Equal(t, uint64(1), rf.RandomState)
	assert.Equal(t, 0.05, rf.GetParams()["ccp_alpha"])

	assert.Error(t, rf.SetParams(map[string]interface{}{"depth": 3}))

	rf.MaxFeatures = "third"
	X, y := stepData()
	var verr *errors.ValidationError
	assert.True(t, errors.As(rf.Fit(X, y), &verr))
}

func TestGradientBoosting_SingleRoundStep(t *testing.T) {
	X, y := stepData()
	gb := NewGradientBoostingRegressor(
		WithIterations(1),
		WithLearningRate(1),
		WithLambda(0),
		WithMinChildWeight(0),
	)
	require.NoError(t, gb.Fit(X, y))

	assert.Equal(t, 5.0, gb.BaseScore)
	assert.Equal(t, mat.Col(nil, 0, y), predictions(t, gb, X))
}

func TestGradientBoosting_Converges(t *testing.T) {
	X, y := stepData()
	gb := NewGradientBoostingRegressor()
	require.NoError(t, gb.Fit(X, y))

	assert.Len(t, gb.Trees, 100)
	pred := predictions(t, gb, X)
	for i, want := range mat.Col(nil, 0, y) {
		assert.InDelta(t, want, pred[i], 1e-6, "row %d", i)
	}

	imp, err := gb.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, imp)
}

func TestGradientBoosting_Symmetric(t *testing.T) {
	X, y := stepData()
	cb := NewCatBoostRegressor(WithIterations(200), WithLearningRate(0.1), WithSeed(1))
	require.NoError(t, cb.Fit(X, y))

	pred := predictions(t, cb, X)
	for i, want := range mat.Col(nil, 0, y) {
		assert.InDelta(t, want, pred[i], 1e-3, "row %d", i)
	}
	assert.Contains(t, cb.GetParams(), "l2_leaf_reg")
}

func TestGradientBoosting_SamplingIsSeeded(t *testing.T) {
	X, y := stepData()
	fit := func(seed uint64) []float64 {
		gb := NewGradientBoostingRegressor(
			WithIterations(20),
			WithSampling(0.5, 0.5),
			WithSeed(seed),
			WithMinChildWeight(0),
		)
		require.NoError(t, gb.Fit(X, y))
		return predictions(t, gb, X)
	}
	assert.Equal(t, fit(1), fit(1))
}

func TestGradientBoosting_Validation(t *testing.T) {
	X, y := stepData()
	tests := []struct {
		name  string
		param string
		value interface{}
	}{
		{"no rounds", "n_estimators", 0},
		{"zero rate", "learning_rate", 0.0},
		{"subsample above one", "subsample", 1.5},
		{"zero colsample", "colsample_bytree", 0.0},
		{"negative lambda", "lambda", -1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gb := NewGradientBoostingRegressor()
			require.NoError(t, gb.SetParams(map[string]interface{}{tt.param: tt.value}))

			var verr *errors.ValidationError
			require.True(t, errors.As(gb.Fit(X, y), &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestGradientBoosting_SetParamsAliases(t *testing.T) {
	gb := NewGradientBoostingRegressor()
	require.NoError(t, gb.SetParams(map[string]interface{}{
		"nthread":          4,
		"objective":        "reg:squarederror",
		"learning_rate":    0.05,
		"max_depth":        5,
		"min_child_weight": 4,
		"subsample":        0.7,
		"colsample_bytree": 0.6,
		"n_estimators":     150,
		"gamma":            0.5,
		"lambda":           2,
		"seed":             1,
	}))
	assert.Equal(t, 150, gb.NEstimators)
	assert.Equal(t, 4.0, gb.MinChildWeight)
	assert.Equal(t, 2.0, gb.Lambda)

	cb := NewCatBoostRegressor()
	require.NoError(t, cb.SetParams(map[string]interface{}{
		"depth":         8,
		"iterations":    30,
		"learning_rate": 0.1,
		"random_seed":   1,
	}))
	assert.Equal(t, 8, cb.MaxDepth)
	assert.Equal(t, 30, cb.NEstimators)
	assert.True(t, cb.Symmetric)
}

func TestEnsembles_NotFitted(t *testing.T) {
	X, _ := stepData()
	for _, m := range []model.Regressor{NewRandomForestRegressor(), NewGradientBoostingRegressor()} {
		_, err := m.Predict(X)
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))

		_, err = m.FeatureImportances()
		assert.Error(t, err)
	}
}

func TestEnsembles_CloneAndPersist(t *testing.T) {
	X, y := stepData()
	models := []model.Regressor{
		NewRandomForestRegressor(WithNEstimators(3), WithForestRandomState(2)),
		NewGradientBoostingRegressor(WithIterations(5)),
		NewCatBoostRegressor(WithIterations(5)),
	}
	for _, m := range models {
		require.NoError(t, m.Fit(X, y))
		want := predictions(t, m, X)

		c := m.Clone()
		_, err := c.Predict(X)
		assert.Error(t, err)
		assert.Equal(t, m.GetParams(), c.GetParams())

		var buf bytes.Buffer
		var stored model.Regressor = m
		require.NoError(t, model.SaveModelToWriter(&stored, &buf))
		var loaded model.Regressor
		require.NoError(t, model.LoadModelFromReader(&loaded, &buf))
		assert.Equal(t, want, predictions(t, loaded, X))
	}
}
