package forecast

import (
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
)

// Default window parameters.
const (
	DefaultMinLen         = 5
	DefaultPredPeriod     = 5
	DefaultSlideThreshold = 15
	DefaultSlideStep      = 5
)

// Options controls the rolling window.
type Options struct {
	// MinLen is the history required before the first fit. Shorter series
	// are emitted as sentinels.
	MinLen int
	// PredPeriod is the horizon forecast after each refit.
	PredPeriod int
	// SlideThreshold: once len(series) - len(train) reaches it, the window
	// start advances by SlideStep on every non-final refit.
	SlideThreshold int
	SlideStep      int
	// Workers bounds the number of keys forecast concurrently. 1 is sequential.
	Workers int

	Forecaster Forecaster
	Logger     log.Logger
}

// DefaultOptions returns the window parameters of the reference forecast loop.
func DefaultOptions() Options {
	return Options{
		MinLen:         DefaultMinLen,
		PredPeriod:     DefaultPredPeriod,
		SlideThreshold: DefaultSlideThreshold,
		SlideStep:      DefaultSlideStep,
		Workers:        1,
	}
}

// Validate checks that the window parameters guarantee termination.
func (o Options) Validate() error {
	if o.MinLen < 1 {
		return errors.NewValidationError("MinLen", "must be at least 1", o.MinLen)
	}
	if o.PredPeriod < 1 {
		return errors.NewValidationError("PredPeriod", "must be at least 1", o.PredPeriod)
	}
	if o.SlideThreshold < 0 {
		return errors.NewValidationError("SlideThreshold", "must not be negative", o.SlideThreshold)
	}
	if o.SlideStep < 0 {
		return errors.NewValidationError("SlideStep", "must not be negative", o.SlideStep)
	}
	if o.SlideStep > o.PredPeriod {
		// 窓の開始が終了を追い越さないこと
		return errors.NewValidationError("SlideStep", "must not exceed PredPeriod", o.SlideStep)
	}
	if o.Workers < 0 {
		return errors.NewValidationError("Workers", "must not be negative", o.Workers)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Options)

// WithMinLen sets the minimum history length.
func WithMinLen(n int) Option {
	return func(o *Options) {
		o.MinLen = n
	}
}

// WithPredPeriod sets the per-refit horizon.
func WithPredPeriod(n int) Option {
	return func(o *Options) {
		o.PredPeriod = n
	}
}

// WithSlide sets when and by how much the window start advances.
func WithSlide(threshold, step int) Option {
	return func(o *Options) {
		o.SlideThreshold = threshold
		o.SlideStep = step
	}
}

// WithWorkers sets the number of keys processed concurrently.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithForecaster replaces the default AutoARIMA forecaster.
func WithForecaster(f Forecaster) Option {
	return func(o *Options) {
		o.Forecaster = f
	}
}

// WithLogger sets the engine logger.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
