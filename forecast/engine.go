// Package forecast implements the rolling-window forecast loop.
//
// For every key of a long-format table the Engine walks the key's series,
// refits a forecaster on a growing (and, for long series, sliding) training
// window and forecasts the next horizon. Predictions are collected as
// fragments and concatenated once, in first-seen key order, into a table
// indexed by the original row index.
//
// Example:
//
//	engine, err := forecast.NewEngine(forecast.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	preds, err := engine.Forecast(ctx, table, "sales", "store", "pred")
package forecast

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// Fragment is a contiguous block of predictions for one key.
// Index holds original row index labels.
type Fragment struct {
	Key    string
	Index  []int
	Values []float64
}

// KeyFailure records a key whose loop was aborted. Its remaining rows were
// emitted as sentinels.
type KeyFailure struct {
	Key string
	Err error
}

// Run is the raw result of one engine invocation.
// Rows whose key is missing belong to no series and are counted in
// SkippedRows only.
type Run struct {
	ID          string
	Fragments   []Fragment
	Failures    []KeyFailure
	Keys        int
	SkippedRows int
	Duration    time.Duration
}

// Engine drives the rolling forecast. It keeps no state between calls and
// is safe for concurrent use.
type Engine struct {
	opts   Options
	logger log.Logger
}

// NewEngine creates an Engine from DefaultOptions modified by opts.
func NewEngine(opts ...Option) (*Engine, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.Forecaster == nil {
		o.Forecaster = NewARIMAForecaster()
	}
	if o.Logger == nil {
		o.Logger = log.GetLoggerWithName("forecast")
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	return &Engine{opts: o, logger: o.Logger}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Forecast runs the loop and assembles a table with one float column named
// outputColumn. Rows appear in production order: per key in first-seen
// order, fragment by fragment. The tail refit re-forecasts the last row of
// the previous window, so that row index appears twice.
func (e *Engine) Forecast(ctx context.Context, table *frame.Table, valueColumn, keyColumn, outputColumn string) (*frame.Table, error) {
	run, err := e.Run(ctx, table, valueColumn, keyColumn)
	if err != nil {
		return nil, err
	}
	return run.Table(outputColumn)
}

// Table concatenates the fragments into a prediction table.
func (r *Run) Table(outputColumn string) (*frame.Table, error) {
	var index []int
	var values []float64
	for _, f := range r.Fragments {
		index = append(index, f.Index...)
		values = append(values, f.Values...)
	}
	out := frame.NewWithIndex(index)
	if err := out.AddFloat(outputColumn, values); err != nil {
		return nil, err
	}
	return out, nil
}

// Run executes the loop and returns the raw fragments.
// Per-key fit failures are recorded in Run.Failures and do not fail the call;
// an error is returned only for invalid input or a cancelled context.
func (e *Engine) Run(ctx context.Context, table *frame.Table, valueColumn, keyColumn string) (*Run, error) {
	if table == nil {
		return nil, errors.NewValueError("Engine.Run", "nil table")
	}
	values, err := table.Floats(valueColumn)
	if err != nil {
		return nil, err
	}
	all, err := table.GroupBy(keyColumn)
	if err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString()}
	groups := all[:0:0]
	for _, grp := range all {
		if frame.IsMissing(grp.Key) {
			run.SkippedRows += len(grp.Rows)
			continue
		}
		groups = append(groups, grp)
	}
	run.Keys = len(groups)

	logger := e.logger.With(log.RunIDKey, run.ID)
	started := time.Now()
	logger.Info("rolling forecast started",
		log.KeysKey, len(groups),
		log.SamplesKey, table.Len(),
	)
	if run.SkippedRows > 0 {
		logger.Warn("rows without a key are not forecast", "skipped_rows", run.SkippedRows)
	}

	results := make([]keyResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			series := make([]float64, len(grp.Rows))
			index := make([]int, len(grp.Rows))
			for j, r := range grp.Rows {
				series[j] = values[r]
				index[j] = table.IndexAt(r)
			}
			res, err := e.forecastKey(gctx, logger, grp.Key, series, index)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "rolling forecast")
	}

	for _, res := range results {
		run.Fragments = append(run.Fragments, res.fragments...)
		if res.failure != nil {
			run.Failures = append(run.Failures, *res.failure)
		}
	}
	run.Duration = time.Since(started)
	logger.Info("rolling forecast finished",
		log.KeysKey, len(groups),
		"failed_keys", len(run.Failures),
		log.DurationMsKey, run.Duration.Milliseconds(),
	)
	return run, nil
}

type keyResult struct {
	fragments []Fragment
	failure   *KeyFailure
}

// forecastKey runs the window loop over one key's series. It returns an
// error only when ctx is done.
func (e *Engine) forecastKey(ctx context.Context, logger log.Logger, key string, series []float64, index []int) (keyResult, error) {
	var res keyResult
	L := len(series)
	logger = logger.With(log.SeriesKeyKey, key, log.SeriesLengthKey, L)

	emit := func(from, to int, values []float64) {
		res.fragments = append(res.fragments, Fragment{
			Key:    key,
			Index:  append([]int(nil), index[from:to]...),
			Values: values,
		})
	}

	if L < e.opts.MinLen {
		logger.Info("series shorter than minimum length, emitting sentinels", "min_len", e.opts.MinLen)
		emit(0, L, sentinels(L))
		return res, nil
	}
	logger.Debug("forecasting series")

	start, end := 0, e.opts.MinLen
	windows := 0
	emit(0, end, sentinels(end))

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tail := L-end <= e.opts.PredPeriod
		from, horizon := end, e.opts.PredPeriod
		if tail {
			from, horizon = end-1, L-end+1
		}

		pred, err := e.fitPredict(ctx, series[start:end], horizon)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			ferr := errors.NewForecastError(key, start, end, err)
			logger.Error("forecast failed, remaining rows emitted as sentinels", ferr,
				log.WindowStartKey, start,
				log.WindowEndKey, end,
			)
			emit(end, L, sentinels(L-end))
			res.failure = &KeyFailure{Key: key, Err: ferr}
			return res, nil
		}

		logger.Debug("window forecast",
			log.WindowStartKey, start,
			log.WindowEndKey, end,
			log.HorizonKey, horizon,
		)
		emit(from, from+horizon, pred)

		if tail {
			logger.Info("series forecast finished", "windows", windows+1)
			return res, nil
		}
		windows++
		if L-(end-start) >= e.opts.SlideThreshold {
			start += e.opts.SlideStep
		}
		end += e.opts.PredPeriod
	}
}

func (e *Engine) fitPredict(ctx context.Context, train []float64, horizon int) (pred []float64, err error) {
	err = errors.SafeExecute("forecast window", func() error {
		fitted, err := e.opts.Forecaster.Fit(ctx, train)
		if err != nil {
			return err
		}
		pred, err = fitted.Predict(horizon)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(pred) != horizon {
		return nil, errors.NewDimensionError("Fitted.Predict", horizon, len(pred), 0)
	}
	return pred, nil
}

func sentinels(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
