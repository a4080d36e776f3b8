package forecast

import (
	"context"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// MinStepwiseObs is the shortest window StepwiseARIMAForecaster accepts.
// goarima refuses an ARIMA(p,d,q) fit on fewer than p+q+d+10 points.
const MinStepwiseObs = 10

// ErrNoModel is returned when no candidate order yields a finite criterion.
var ErrNoModel = errors.New("no ARIMA order could be fit")

// StepwiseARIMAForecaster selects (p,d,q) with goarima's stepwise search:
// KPSS and ADF choose d, then neighbouring (p,q) orders are compared by the
// configured information criterion. Missing observations are dropped.
//
// Windows shorter than MinStepwiseObs fail, so the engine should run with
// MinLen >= MinStepwiseObs.
type StepwiseARIMAForecaster struct {
	Config *autoarima.Config
}

// NewStepwiseARIMAForecaster returns a non-seasonal search ranked by AICc.
func NewStepwiseARIMAForecaster() *StepwiseARIMAForecaster {
	return &StepwiseARIMAForecaster{Config: StepwiseConfig()}
}

// StepwiseConfig is goarima's default search with seasonality detection and
// cross-validated selection turned off. Rolling windows are too short for
// either.
func StepwiseConfig() *autoarima.Config {
	cfg := autoarima.DefaultConfig()
	cfg.AutoSeasonal = false
	cfg.CompareModels = false
	cfg.ModelSelection = "aicc"
	cfg.Criterion = "aicc"
	return cfg
}

// Fit implements Forecaster.
func (f *StepwiseARIMAForecaster) Fit(ctx context.Context, series []float64) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) < MinStepwiseObs {
		return nil, errors.NewModelError("StepwiseARIMAForecaster.Fit", "need ten observations", errors.ErrEmptyData)
	}

	cfg := f.Config
	if cfg == nil {
		cfg = StepwiseConfig()
	}
	res, err := autoarima.AutoARIMA(timeseries.New(obs), cfg)
	if err != nil {
		return nil, errors.NewModelError("StepwiseARIMAForecaster.Fit", "order search failed", err)
	}
	// 候補が一つも当てはまらない場合 (定数系列など) goarima は nil を返す
	if res == nil || res.Model == nil {
		return nil, errors.NewModelError("StepwiseARIMAForecaster.Fit", "no candidate order could be fit", ErrNoModel)
	}
	return &stepwise{model: res.Model}, nil
}

type stepwise struct {
	model *arima.Model
}

// Order returns the selected (p, d, q).
func (s *stepwise) Order() (p, d, q int) {
	o := s.model.Order
	return o.P, o.D, o.Q
}

func (s *stepwise) Predict(horizon int) ([]float64, error) {
	if horizon < 0 {
		return nil, errors.NewValidationError("horizon", "must not be negative", horizon)
	}
	if horizon == 0 {
		return []float64{}, nil
	}
	pred, err := s.model.Predict(horizon)
	if err != nil {
		return nil, errors.Wrap(err, "goarima predict")
	}
	return pred, nil
}
