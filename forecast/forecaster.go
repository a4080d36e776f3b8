package forecast

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/linear"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/timeseries/arima"
)

// Forecaster fits a model on one training window.
type Forecaster interface {
	Fit(ctx context.Context, series []float64) (Fitted, error)
}

// Fitted forecasts the points following its training window.
// Predict(0) returns an empty slice.
type Fitted interface {
	Predict(horizon int) ([]float64, error)
}

// ForecasterFunc adapts a function to Forecaster.
type ForecasterFunc func(ctx context.Context, series []float64) (Fitted, error)

// Fit calls f.
func (f ForecasterFunc) Fit(ctx context.Context, series []float64) (Fitted, error) {
	return f(ctx, series)
}

// ARIMAForecaster refits an automatically ordered ARIMA model on every window.
type ARIMAForecaster struct {
	Config arima.Config
}

// NewARIMAForecaster returns the engine's default forecaster: AutoARIMA with
// default search bounds and warnings suppressed.
func NewARIMAForecaster() *ARIMAForecaster {
	return &ARIMAForecaster{Config: arima.DefaultConfig()}
}

// Fit implements Forecaster.
func (f *ARIMAForecaster) Fit(ctx context.Context, series []float64) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := arima.New(f.Config).Fit(series)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrendForecaster fits a straight line to the window against the time step
// and extrapolates it. Missing observations are skipped.
type TrendForecaster struct{}

// Fit implements Forecaster.
func (TrendForecaster) Fit(ctx context.Context, series []float64) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ts, ys []float64
	for t, v := range series {
		if !math.IsNaN(v) {
			ts = append(ts, float64(t))
			ys = append(ys, v)
		}
	}
	if len(ys) < 2 {
		return nil, errors.NewModelError("TrendForecaster.Fit", "need two observations", errors.ErrEmptyData)
	}
	lr := linear.NewLinearRegression()
	if err := lr.Fit(mat.NewDense(len(ts), 1, ts), mat.NewDense(len(ys), 1, ys)); err != nil {
		return nil, err
	}
	return &trend{lr: lr, next: len(series)}, nil
}

type trend struct {
	lr   *linear.LinearRegression
	next int
}

func (t *trend) Predict(horizon int) ([]float64, error) {
	if horizon < 0 {
		return nil, errors.NewValidationError("horizon", "must not be negative", horizon)
	}
	if horizon == 0 {
		return []float64{}, nil
	}
	steps := make([]float64, horizon)
	for i := range steps {
		steps[i] = float64(t.next + i)
	}
	pred, err := t.lr.Predict(mat.NewDense(horizon, 1, steps))
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// ForecasterByName returns the forecaster registered under name:
// "arima" (the default), "stepwise" or "trend".
func ForecasterByName(name string) (Forecaster, error) {
	switch name {
	case "", "arima":
		return NewARIMAForecaster(), nil
	case "stepwise":
		return NewStepwiseARIMAForecaster(), nil
	case "trend":
		return TrendForecaster{}, nil
	default:
		return nil, errors.NewValidationError("forecaster", "must be arima, stepwise or trend", name)
	}
}
