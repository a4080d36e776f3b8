// Package log defines standard attribute keys for forecasting and training runs.
//
// Keys follow a hierarchical naming convention ("series.key", "window.start")
// so log lines from long runs can be filtered per key or per window.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "AutoARIMA", "RandomForestRegressor", "GradientBoostingRegressor"
	ModelNameKey = "model.name"

	// ModelKindKey identifies the model selector used by the trainer ("xgb", "rf", "catboost").
	ModelKindKey = "model.kind"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "forecast", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// RunIDKey carries the identifier of one forecast or training invocation.
	RunIDKey = "run.id"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of predictor columns.
	FeaturesKey = "data.features"

	// KeysKey indicates the number of distinct series keys in a table.
	KeysKey = "data.keys"
)

// Series and Window Context
const (
	// SeriesKeyKey identifies the series being forecast.
	SeriesKeyKey = "series.key"

	// SeriesLengthKey is the number of rows of the series.
	SeriesLengthKey = "series.length"

	// WindowStartKey is the inclusive start offset of the training window.
	WindowStartKey = "window.start"

	// WindowEndKey is the exclusive end offset of the training window.
	WindowEndKey = "window.end"

	// HorizonKey is the number of points forecast by one refit.
	HorizonKey = "forecast.horizon"

	// OrderKey is the model order chosen by automatic selection, e.g. "(2,1,0)".
	OrderKey = "forecast.order"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds for longer operations.
	DurationSecondsKey = "perf.duration_seconds"

	// ScoreKey records the cross-validated score of a search.
	ScoreKey = "metrics.score"

	// MAEKey records a mean absolute error.
	MAEKey = "metrics.mae"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationForecast  = "forecast"
	OperationScore     = "score"
	OperationSearch    = "search"
)
