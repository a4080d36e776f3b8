package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/metrics"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
	"github.com/YuminosukeSato/rollcast/pkg/params"
)

// meanRegressor は学習データの平均に Bias を足した値を予測する
type meanRegressor struct {
	model.BaseEstimator
	Bias float64
	Fail bool

	mean float64
	fits *atomic.Int64
}

func newMeanRegressor() *meanRegressor {
	return &meanRegressor{fits: new(atomic.Int64)}
}

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	if m.Fail {
		return errors.New("fit failed")
	}
	m.mean = stat.Mean(mat.Col(nil, 0, y), nil)
	m.fits.Add(1)
	m.SetFitted()
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean+m.Bias)
	}
	return out, nil
}

func (m *meanRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, _ := m.Predict(X)
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, pred))
}

func (m *meanRegressor) FeatureImportances() ([]float64, error) { return nil, nil }

func (m *meanRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"bias": m.Bias, "fail": m.Fail}
}

func (m *meanRegressor) SetParams(p map[string]interface{}) error {
	return params.Apply(p, map[string]params.Setter{
		"bias": params.Float(&m.Bias),
		"fail": params.Bool(&m.Fail),
	})
}

func (m *meanRegressor) Clone() model.Regressor {
	c := *m
	c.Reset()
	return &c
}

// alternating は各 fold の平均が 0 になるデータ。bias b の R² は -b²
func alternating() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 1, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		if i%2 == 0 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, -1)
		}
	}
	return X, y
}

func testLogger() log.Logger {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return logger
}

func TestKFold_Split(t *testing.T) {
	X := mat.NewDense(10, 1, nil)

	folds, err := NewKFold(3, false, 0).Split(X)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
}

func TestKFold_ShuffleIsPartition(t *testing.T) {
	X := mat.NewDense(11, 1, nil)
	kf := NewKFold(4, true, 42)

	folds, err := kf.Split(X)
	require.NoError(t, err)
	again, err := kf.Split(X)
	require.NoError(t, err)
	assert.Equal(t, folds, again)

	var all []int
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 11-len(f.TestIndices))
		all = append(all, f.TestIndices...)
	}
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, all)
}

func TestKFold_Errors(t *testing.T) {
	_, err := NewKFold(5, false, 0).Split(mat.NewDense(3, 1, nil))
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
}

func TestParamGrid_Combinations(t *testing.T) {
	grid := ParamGrid{
		"b": {"x", "y", "z"},
		"a": {1, 2},
	}
	combos := grid.Combinations()

	require.Len(t, combos, 6)
	assert.Equal(t, 6, grid.Size())
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "x"}, combos[0])
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "y"}, combos[1])
	assert.Equal(t, map[string]interface{}{"a": 2, "b": "z"}, combos[5])

	assert.Nil(t, ParamGrid{}.Combinations())
}

func TestDistributions(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	for i := 0; i < 200; i++ {
		u := Uniform{Loc: 0.03, Scale: 0.1}.Sample(r).(float64)
		assert.GreaterOrEqual(t, u, 0.03)
		assert.LessOrEqual(t, u, 0.13)

		n := RandInt{Low: 100, High: 500}.Sample(r).(int)
		assert.GreaterOrEqual(t, n, 100)
		assert.Less(t, n, 500)

		assert.Contains(t, []interface{}{3, 5}, Values(3, 5).Sample(r))
	}
}

func TestParamDistributions_Sample(t *testing.T) {
	mixed := ParamDistributions{
		"learning_rate": Uniform{Loc: 0.03, Scale: 0.1},
		"max_depth":     Values(3, 5, 6),
	}
	a := mixed.Sample(7, 1)
	assert.Len(t, a, 7)
	assert.Equal(t, a, mixed.Sample(7, 1))

	// リストのみなら重複なしで格子から抽出し、格子の大きさで打ち切る
	lists := ParamDistributions{"max_depth": Values(5, 6, 7)}
	b := lists.Sample(100, 1)
	require.Len(t, b, 3)
	seen := map[interface{}]bool{}
	for _, p := range b {
		seen[p["max_depth"]] = true
	}
	assert.Len(t, seen, 3)
}

func TestGridSearchCV_SelectsBest(t *testing.T) {
	X, y := alternating()
	est := newMeanRegressor()
	gs := NewGridSearchCV(est, ParamGrid{"bias": {1.0, 0.0, -2.0}}, 3)
	gs.NJobs = 4
	gs.Logger = testLogger()

	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.Equal(t, map[string]interface{}{"bias": 0.0}, gs.BestParams)
	assert.Equal(t, 1, gs.BestIndex)
	assert.InDelta(t, 0.0, gs.BestScore, 1e-12)
	require.Len(t, gs.Results, 3)
	assert.InDelta(t, -1.0, gs.Results[0].MeanScore, 1e-12)
	assert.InDelta(t, -4.0, gs.Results[2].MeanScore, 1e-12)
	assert.Equal(t, []int{2, 1, 3}, []int{gs.Results[0].Rank, gs.Results[1].Rank, gs.Results[2].Rank})

	// 3 候補 x 3 fold + 最良候補の再学習
	assert.Equal(t, int64(10), est.fits.Load())
	best := gs.BestEstimator.(*meanRegressor)
	assert.True(t, best.IsFitted())
	assert.Equal(t, 0.0, best.Bias)
}

func TestGridSearchCV_FailedCandidateScoresNaN(t *testing.T) {
	X, y := alternating()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	gs := NewGridSearchCV(newMeanRegressor(), ParamGrid{"fail": {true, false}}, 3)
	gs.Logger = logger

	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.True(t, math.IsNaN(gs.Results[0].MeanScore))
	assert.Equal(t, 2, gs.Results[0].Rank)
	assert.Equal(t, map[string]interface{}{"fail": false}, gs.BestParams)
	assert.Equal(t, 3, logger.CountMessage("Candidate fit failed, score set to NaN"))
}

func TestGridSearchCV_Errors(t *testing.T) {
	X, y := alternating()
	ctx := context.Background()

	gs := NewGridSearchCV(newMeanRegressor(), ParamGrid{"fail": {true}}, 3)
	gs.Logger = testLogger()
	assert.True(t, errors.Is(gs.Fit(ctx, X, y), errors.ErrNoValidCandidate))

	gs = NewGridSearchCV(newMeanRegressor(), ParamGrid{"depth": {1}}, 3)
	gs.Logger = testLogger()
	var verr *errors.ValidationError
	assert.True(t, errors.As(gs.Fit(ctx, X, y), &verr))

	gs = NewGridSearchCV(newMeanRegressor(), ParamGrid{}, 3)
	assert.Error(t, gs.Fit(ctx, X, y))

	gs = NewGridSearchCV(nil, ParamGrid{"bias": {0.0}}, 3)
	assert.Error(t, gs.Fit(ctx, X, y))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	gs = NewGridSearchCV(newMeanRegressor(), ParamGrid{"bias": {0.0}}, 3)
	gs.Logger = testLogger()
	assert.ErrorIs(t, gs.Fit(cancelled, X, y), context.Canceled)
}

func TestRandomizedSearchCV(t *testing.T) {
	X, y := alternating()
	fit := func() *RandomizedSearchCV {
		rs := NewRandomizedSearchCV(newMeanRegressor(), ParamDistributions{
			"bias": Uniform{Loc: -1, Scale: 2},
		}, 3)
		rs.NIter = 5
		rs.Seed = 1
		rs.NJobs = 2
		rs.Logger = testLogger()
		require.NoError(t, rs.Fit(context.Background(), X, y))
		return rs
	}
	rs := fit()

	require.Len(t, rs.Results, 5)
	for _, r := range rs.Results {
		b := r.Params["bias"].(float64)
		assert.InDelta(t, -b*b, r.MeanScore, 1e-9)
		assert.GreaterOrEqual(t, rs.BestScore, r.MeanScore)
	}
	assert.LessOrEqual(t, rs.BestScore, 0.0)
	assert.Equal(t, rs.BestParams, fit().BestParams)

	rs.NIter = 0
	assert.Error(t, rs.Fit(context.Background(), X, y))
}
