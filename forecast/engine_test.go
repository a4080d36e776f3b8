package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// window は fake forecaster が受け取った学習窓
type window struct {
	first  float64
	length int
}

// recorder is a forecaster predicting last+1, last+2, ... and recording
// every training window it sees.
type recorder struct {
	mu      sync.Mutex
	windows []window
	failAt  int // fail on the n-th fit (1-based), 0 = never
	panicAt int
}

func (r *recorder) Fit(_ context.Context, series []float64) (Fitted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = append(r.windows, window{first: series[0], length: len(series)})
	n := len(r.windows)
	if n == r.failAt {
		return nil, errors.New("fit exploded")
	}
	if n == r.panicAt {
		panic("boom")
	}
	return constFitted(series[len(series)-1]), nil
}

type constFitted float64

func (c constFitted) Predict(h int) ([]float64, error) {
	out := make([]float64, h)
	for i := range out {
		out[i] = float64(c) + float64(i+1)
	}
	return out, nil
}

// buildTable lays out keys in the given order; series values are 0..n-1.
func buildTable(t *testing.T, keys []string, lengths map[string]int) *frame.Table {
	t.Helper()
	var ks []string
	var vs []float64
	for _, k := range keys {
		for i := 0; i < lengths[k]; i++ {
			ks = append(ks, k)
			vs = append(vs, float64(i))
		}
	}
	tbl := frame.New(len(ks))
	require.NoError(t, tbl.AddString("key", ks))
	require.NoError(t, tbl.AddFloat("value", vs))
	return tbl
}

func newTestEngine(t *testing.T, f Forecaster, opts ...Option) (*Engine, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	opts = append([]Option{WithForecaster(f), WithLogger(logger)}, opts...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e, logger
}

func isNaN(t *testing.T, values []float64, idx ...int) {
	t.Helper()
	for _, i := range idx {
		assert.True(t, math.IsNaN(values[i]), "row %d should be NaN, got %v", i, values[i])
	}
}

func TestForecastScenarioTwelveAndFour(t *testing.T) {
	rec := &recorder{}
	e, logger := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"A", "B"}, map[string]int{"A": 12, "B": 4})

	out, err := e.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)

	// A: 5 sentinels, 5 forecasts (rows 5-9), tail rows 9-11; B: 4 sentinels
	wantIndex := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 10, 11, 12, 13, 14, 15}
	assert.Equal(t, wantIndex, out.Index())

	pred, err := out.Floats("pred")
	require.NoError(t, err)
	isNaN(t, pred, 0, 1, 2, 3, 4)
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, pred[5:10])
	// tail window is [0, 10), last value 9
	assert.Equal(t, []float64{10, 11, 12}, pred[10:13])
	isNaN(t, pred, 13, 14, 15, 16)

	assert.Equal(t, []window{{0, 5}, {0, 10}}, rec.windows, "B must not be fit")
	assert.True(t, logger.ContainsMessage("series shorter than minimum length"))
	// A は2窓で完了、B は予測されない
	assert.Equal(t, 1, logger.CountMessage("series forecast finished"))
	assert.True(t, logger.ContainsField("windows", 2.0))
}

func TestForecastSkipsMissingKeys(t *testing.T) {
	rec := &recorder{}
	e, logger := newTestEngine(t, rec)
	tbl := frame.New(8)
	require.NoError(t, tbl.AddString("key", []string{"A", "A", "", "A", "A", "A", "NA", "A"}))
	require.NoError(t, tbl.AddFloat("value", []float64{0, 1, 2, 3, 4, 5, 6, 7}))

	run, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Keys)
	assert.Equal(t, 2, run.SkippedRows)
	assert.True(t, logger.ContainsMessage("rows without a key are not forecast"))

	out, err := run.Table("pred")
	require.NoError(t, err)
	// 行2と行6は出力されない。末尾の窓は行5を再予測する
	assert.Equal(t, []int{0, 1, 3, 4, 5, 5, 7}, out.Index())
	assert.Equal(t, []window{{0, 5}}, rec.windows)
}

func TestForecastFiveExactly(t *testing.T) {
	rec := &recorder{}
	e, _ := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"K"}, map[string]int{"K": 5})

	out, err := e.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)

	// 末尾の1行は境界として再予測される
	assert.Equal(t, []int{0, 1, 2, 3, 4, 4}, out.Index())
	pred, err := out.Floats("pred")
	require.NoError(t, err)
	isNaN(t, pred, 0, 1, 2, 3, 4)
	assert.Equal(t, 5.0, pred[5])
}

func TestForecastCoverage(t *testing.T) {
	for _, L := range []int{5, 6, 9, 10, 11, 15, 16, 23, 30, 47} {
		t.Run(fmt.Sprintf("L=%d", L), func(t *testing.T) {
			rec := &recorder{}
			e, _ := newTestEngine(t, rec)
			tbl := buildTable(t, []string{"K"}, map[string]int{"K": L})

			run, err := e.Run(context.Background(), tbl, "value", "key")
			require.NoError(t, err)

			seen := make(map[int]int)
			for _, f := range run.Fragments {
				require.Len(t, f.Values, len(f.Index))
				for _, idx := range f.Index {
					seen[idx]++
				}
			}
			require.Len(t, seen, L, "every row covered")
			dup := 0
			for idx, n := range seen {
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, L)
				if n > 1 {
					dup++
					assert.Equal(t, 2, n)
				}
			}
			assert.Equal(t, 1, dup, "only the boundary row is re-forecast")

			maxIter := (L + DefaultPredPeriod - 1) / DefaultPredPeriod
			assert.LessOrEqual(t, len(rec.windows), maxIter)
		})
	}
}

func TestForecastSlidingWindow(t *testing.T) {
	rec := &recorder{}
	e, _ := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"K"}, map[string]int{"K": 30})

	_, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)

	// 30-5 >= 15 なので毎回開始位置が5ずつ進む
	want := []window{{0, 5}, {5, 5}, {10, 5}, {15, 5}, {20, 5}}
	assert.Equal(t, want, rec.windows)
}

func TestForecastExpandingThenSliding(t *testing.T) {
	rec := &recorder{}
	e, _ := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"K"}, map[string]int{"K": 22})

	_, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)

	// L=22: 22-5=17 slides, 22-5=17 slides, 22-5=17 slides, then tail
	want := []window{{0, 5}, {5, 5}, {10, 5}, {15, 5}}
	assert.Equal(t, want, rec.windows)

	rec = &recorder{}
	e, _ = newTestEngine(t, rec)
	tbl = buildTable(t, []string{"K"}, map[string]int{"K": 18})
	_, err = e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)

	// L=18: 18-5=13 < 15 なので窓は伸び続ける
	want = []window{{0, 5}, {0, 10}, {0, 15}}
	assert.Equal(t, want, rec.windows)
}

func TestForecastFitFailureAbortsOnlyThatKey(t *testing.T) {
	rec := &recorder{failAt: 2}
	e, logger := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"A", "B"}, map[string]int{"A": 17, "B": 7})

	run, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, "A", run.Failures[0].Key)
	var ferr *errors.ForecastError
	require.True(t, errors.As(run.Failures[0].Err, &ferr))
	assert.Equal(t, 0, ferr.WindowStart)
	assert.Equal(t, 10, ferr.WindowEnd)

	out, err := run.Table("pred")
	require.NoError(t, err)
	pred, err := out.Floats("pred")
	require.NoError(t, err)

	// A: 5 NaN + 5 forecasts + 7 NaN, then B: 5 NaN + 3 tail forecasts
	require.Len(t, pred, 17+8)
	isNaN(t, pred, 0, 1, 2, 3, 4)
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, pred[5:10])
	for i := 10; i < 17; i++ {
		isNaN(t, pred, i)
	}
	assert.Equal(t, []float64{5, 6, 7}, pred[22:25])
	assert.True(t, logger.ContainsMessage("forecast failed"))
	// 完了ログは B のみ
	assert.Equal(t, 1, logger.CountMessage("series forecast finished"))
}

func TestForecastPanicIsContained(t *testing.T) {
	rec := &recorder{panicAt: 1}
	e, _ := newTestEngine(t, rec)
	tbl := buildTable(t, []string{"A"}, map[string]int{"A": 8})

	run, err := e.Run(context.Background(), tbl, "value", "key")
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)

	var perr *errors.PanicError
	assert.True(t, errors.As(run.Failures[0].Err, &perr))
}

func TestForecastWorkersKeepKeyOrder(t *testing.T) {
	keys := []string{"k0", "k1", "k2", "k3", "k4", "k5"}
	lengths := map[string]int{"k0": 12, "k1": 3, "k2": 20, "k3": 7, "k4": 5, "k5": 31}
	tbl := buildTable(t, keys, lengths)

	seq, _ := newTestEngine(t, &recorder{})
	want, err := seq.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)

	par, _ := newTestEngine(t, &recorder{}, WithWorkers(4))
	got, err := par.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)

	assert.Equal(t, want.Index(), got.Index())
	wp, _ := want.Floats("pred")
	gp, _ := got.Floats("pred")
	require.Len(t, gp, len(wp))
	for i := range wp {
		if math.IsNaN(wp[i]) {
			assert.True(t, math.IsNaN(gp[i]))
			continue
		}
		assert.Equal(t, wp[i], gp[i])
	}
}

func TestForecastCancelledContext(t *testing.T) {
	e, _ := newTestEngine(t, &recorder{})
	tbl := buildTable(t, []string{"A"}, map[string]int{"A": 12})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Forecast(ctx, tbl, "value", "key", "pred")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecastInvalidInput(t *testing.T) {
	e, _ := newTestEngine(t, &recorder{})
	tbl := buildTable(t, []string{"A"}, map[string]int{"A": 6})

	_, err := e.Forecast(context.Background(), tbl, "missing", "key", "pred")
	var colErr *errors.ColumnError
	assert.True(t, errors.As(err, &colErr))

	_, err = e.Forecast(context.Background(), tbl, "key", "key", "pred")
	assert.Error(t, err, "string value column")

	_, err = e.Forecast(context.Background(), nil, "value", "key", "pred")
	assert.Error(t, err)
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"min len", WithMinLen(0)},
		{"pred period", WithPredPeriod(0)},
		{"slide step too large", WithSlide(15, 6)},
		{"negative workers", WithWorkers(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.opt)
			var verr *errors.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}

	e, err := NewEngine()
	require.NoError(t, err)
	assert.Equal(t, DefaultMinLen, e.Options().MinLen)
	assert.IsType(t, &ARIMAForecaster{}, e.Options().Forecaster)
}

func TestForecastWithARIMA(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	e, err := NewEngine(WithLogger(logger))
	require.NoError(t, err)

	n := 12
	ks := make([]string, n)
	vs := make([]float64, n)
	for i := range vs {
		ks[i] = "lin"
		vs[i] = 3 + 2*float64(i)
	}
	tbl := frame.New(n)
	require.NoError(t, tbl.AddString("key", ks))
	require.NoError(t, tbl.AddFloat("value", vs))

	out, err := e.Forecast(context.Background(), tbl, "value", "key", "pred")
	require.NoError(t, err)
	pred, err := out.Floats("pred")
	require.NoError(t, err)
	require.Len(t, pred, 13)

	// 線形トレンドは最初の5点窓から正確に外挿される
	for i, row := range out.Index()[5:10] {
		assert.InDelta(t, vs[row], pred[5+i], 1e-6)
	}
}
