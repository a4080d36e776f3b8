package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// linearTable は1キーで値が 3 + 2t の系列
func linearTable(t *testing.T, n int) *frame.Table {
	t.Helper()
	ks := make([]string, n)
	vs := make([]float64, n)
	for i := range vs {
		ks[i] = "lin"
		vs[i] = 3 + 2*float64(i)
	}
	tbl := frame.New(n)
	require.NoError(t, tbl.AddString("key", ks))
	require.NoError(t, tbl.AddFloat("value", vs))
	return tbl
}

func TestTrendForecaster(t *testing.T) {
	nan := math.NaN()
	fitted, err := TrendForecaster{}.Fit(context.Background(), []float64{1, 3, nan, 7, 9})
	require.NoError(t, err)

	pred, err := fitted.Predict(3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{11, 13, 15}, pred, 1e-9)

	pred, err = fitted.Predict(0)
	require.NoError(t, err)
	assert.Empty(t, pred)

	_, err = fitted.Predict(-1)
	assert.Error(t, err)

	_, err = TrendForecaster{}.Fit(context.Background(), []float64{nan, 2, nan})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = TrendForecaster{}.Fit(ctx, []float64{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecasterByName(t *testing.T) {
	f, err := ForecasterByName("")
	require.NoError(t, err)
	assert.IsType(t, &ARIMAForecaster{}, f)

	f, err = ForecasterByName("trend")
	require.NoError(t, err)
	assert.IsType(t, TrendForecaster{}, f)

	f, err = ForecasterByName("stepwise")
	require.NoError(t, err)
	assert.IsType(t, &StepwiseARIMAForecaster{}, f)

	_, err = ForecasterByName("prophet")
	assert.Error(t, err)
}

func TestEngineWithTrendForecaster(t *testing.T) {
	e, err := NewEngine(WithForecaster(TrendForecaster{}))
	require.NoError(t, err)

	tbl := linearTable(t, 12)
	out, err := e.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)
	pred, err := out.Floats("pred")
	require.NoError(t, err)
	require.Len(t, pred, 13)

	// 行5-9は窓[0,5)の予測、末尾は窓[0,10)から t=10,11,12 を予測し
	// 行9,10,11 に割り当てるので1ステップ先の値になる
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 10, 11}, out.Index())
	vs, err := tbl.Floats("value")
	require.NoError(t, err)
	for i, row := range out.Index()[5:10] {
		assert.InDelta(t, vs[row], pred[5+i], 1e-9)
	}
	for i, row := range out.Index()[10:] {
		assert.InDelta(t, vs[row]+2, pred[10+i], 1e-9, "tail row %d", row)
	}
}

// zigzag は差分の分散が0にならない12点の系列
var zigzag = []float64{5, 7, 6, 9, 8, 11, 10, 13, 12, 15, 14, 17}

func TestStepwiseARIMAForecaster(t *testing.T) {
	f := NewStepwiseARIMAForecaster()

	fitted, err := f.Fit(context.Background(), zigzag)
	require.NoError(t, err)
	pred, err := fitted.Predict(3)
	require.NoError(t, err)
	require.Len(t, pred, 3)
	for _, v := range pred {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	_, d, _ := fitted.(*stepwise).Order()
	assert.GreaterOrEqual(t, d, 0)

	pred, err = fitted.Predict(0)
	require.NoError(t, err)
	assert.Empty(t, pred)
	_, err = fitted.Predict(-1)
	assert.Error(t, err)

	t.Run("short window", func(t *testing.T) {
		withGap := append([]float64{math.NaN()}, zigzag[:9]...)
		_, err := f.Fit(context.Background(), withGap)
		assert.ErrorIs(t, err, errors.ErrEmptyData)
	})

	t.Run("constant series", func(t *testing.T) {
		flat := make([]float64, 12)
		for i := range flat {
			flat[i] = 4
		}
		_, err := f.Fit(context.Background(), flat)
		var merr *errors.ModelError
		assert.True(t, errors.As(err, &merr))
		assert.ErrorIs(t, err, ErrNoModel)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fit(ctx, zigzag)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngineWithStepwiseForecaster(t *testing.T) {
	tbl := frame.New(len(zigzag))
	keys := make([]string, len(zigzag))
	for i := range keys {
		keys[i] = "z"
	}
	require.NoError(t, tbl.AddString("key", keys))
	require.NoError(t, tbl.AddFloat("value", zigzag))

	e, err := NewEngine(WithForecaster(NewStepwiseARIMAForecaster()), WithMinLen(MinStepwiseObs))
	require.NoError(t, err)
	run, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)
	assert.Empty(t, run.Failures)
	out, err := run.Table("pred")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 10, 11}, out.Index())
	pred, err := out.Floats("pred")
	require.NoError(t, err)
	for _, v := range pred[10:] {
		assert.False(t, math.IsNaN(v))
	}

	// 既定の最小長5では最初の窓が短すぎてキー全体が中断される
	e, err = NewEngine(WithForecaster(NewStepwiseARIMAForecaster()))
	require.NoError(t, err)
	run, err = e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)
	assert.ErrorIs(t, run.Failures[0].Err, errors.ErrEmptyData)
}
