// Package training fits the tabular point-prediction models: it one-hot
// encodes categorical predictors, optionally splits off a test set, runs
// the hyperparameter search of the selected model kind and returns the
// refit best model with its feature importances.
package training

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/pkg/log"
	"github.com/YuminosukeSato/rollcast/preprocessing"
)

// Config describes one training job.
type Config struct {
	Target     string
	Predictors []string
	// CatCols are one-hot encoded and replaced by their dummy columns.
	CatCols []string

	// Rows whose SplitColumn value (as text) is in SplitValues form the test
	// set. Without a split every row is used for training.
	SplitColumn string
	SplitValues []string

	// CV and NIter override the per-kind search defaults when positive.
	CV    int
	NIter int
	NJobs int
	Seed  uint64
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Target == "" {
		return errors.NewValidationError("target", "must not be empty", c.Target)
	}
	if len(c.Predictors) == 0 {
		return errors.NewValidationError("predictors", "must not be empty", c.Predictors)
	}
	return nil
}

// FeatureImportance pairs a predictor with its importance.
type FeatureImportance struct {
	Feature    string  `yaml:"feature_name" json:"feature_name"`
	Importance float64 `yaml:"feature_importance" json:"feature_importance"`
}

// TrainResult is everything a training run produces.
type TrainResult struct {
	RunID string
	Kind  ModelKind

	Encoder    *preprocessing.OneHotEncoder
	Model      model.Regressor
	Target     string
	Predictors []string
	CatCols    []string

	BestParams         map[string]interface{}
	BestScore          float64
	FeatureImportances []FeatureImportance

	Train    *frame.Table
	Test     *frame.Table
	Duration time.Duration
}

// Trainer runs training jobs. It keeps no per-run state.
type Trainer struct {
	cfg       Config
	logger    log.Logger
	newSearch SearchFactory
}

// NewTrainer creates a Trainer for cfg.
func NewTrainer(cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:       cfg,
		logger:    log.GetLoggerWithName("training"),
		newSearch: DefaultSearch,
	}, nil
}

// WithLogger sets the logger.
func (t *Trainer) WithLogger(logger log.Logger) *Trainer {
	t.logger = logger
	return t
}

// WithSearch replaces the per-kind search factory.
func (t *Trainer) WithSearch(factory SearchFactory) *Trainer {
	t.newSearch = factory
	return t
}

// Train fits a model of the given kind on table.
func (t *Trainer) Train(ctx context.Context, table *frame.Table, kind ModelKind) (*TrainResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := t.logger.With(log.RunIDKey, runID, log.ModelKindKey, kind.String())

	if !kind.Valid() {
		logger.Error("model selected is not available")
		return nil, ErrUnknownModelKind
	}
	if table == nil || table.Len() == 0 {
		return nil, errors.NewModelError("Trainer.Train", "empty data", errors.ErrEmptyData)
	}

	enc := preprocessing.NewOneHotEncoder()
	encoded, dummies, err := enc.FitTransform(table, t.cfg.CatCols)
	if err != nil {
		return nil, err
	}
	predictors := preprocessing.ReplaceColumns(t.cfg.Predictors, t.cfg.CatCols, dummies)

	train, test, err := t.split(table, encoded)
	if err != nil {
		return nil, err
	}
	train, err = t.dropMissingTarget(logger, train)
	if err != nil {
		return nil, err
	}

	X, err := train.Matrix(predictors)
	if err != nil {
		return nil, err
	}
	y, err := train.Vector(t.cfg.Target)
	if err != nil {
		return nil, err
	}

	search, err := t.newSearch(kind, t.cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Training started",
		log.SamplesKey, train.Len(),
		log.FeaturesKey, len(predictors),
	)
	if err := search.Fit(ctx, X, y); err != nil {
		return nil, errors.Wrapf(err, "training %s", kind)
	}
	best, params, score := search.Best()

	imp, err := best.FeatureImportances()
	if err != nil {
		return nil, err
	}
	importances := make([]FeatureImportance, len(predictors))
	for i, name := range predictors {
		importances[i] = FeatureImportance{Feature: name}
		if i < len(imp) {
			importances[i].Importance = imp[i]
		}
	}

	res := &TrainResult{
		RunID:              runID,
		Kind:               kind,
		Encoder:            enc,
		Model:              best,
		Target:             t.cfg.Target,
		Predictors:         predictors,
		CatCols:            append([]string(nil), t.cfg.CatCols...),
		BestParams:         params,
		BestScore:          score,
		FeatureImportances: importances,
		Train:              train,
		Test:               test,
		Duration:           time.Since(start),
	}
	logger.Info("Training finished",
		log.ScoreKey, score,
		log.HyperParamsKey, params,
		log.DurationSecondsKey, res.Duration.Seconds(),
	)
	return res, nil
}

// split partitions encoded by the split column of the original table.
// test is nil when no split is configured.
func (t *Trainer) split(original, encoded *frame.Table) (train, test *frame.Table, err error) {
	if t.cfg.SplitColumn == "" || len(t.cfg.SplitValues) == 0 {
		return encoded, nil, nil
	}
	col, err := original.Column(t.cfg.SplitColumn)
	if err != nil {
		return nil, nil, err
	}
	inTest := make(map[string]bool, len(t.cfg.SplitValues))
	for _, v := range t.cfg.SplitValues {
		inTest[v] = true
	}
	var trainRows, testRows []int
	for i := 0; i < col.Len(); i++ {
		if inTest[col.String(i)] {
			testRows = append(testRows, i)
		} else {
			trainRows = append(trainRows, i)
		}
	}
	return encoded.Take(trainRows), encoded.Take(testRows), nil
}

// dropMissingTarget removes training rows whose target is NaN.
func (t *Trainer) dropMissingTarget(logger log.Logger, train *frame.Table) (*frame.Table, error) {
	target, err := train.Floats(t.cfg.Target)
	if err != nil {
		return nil, err
	}
	rows := make([]int, 0, len(target))
	for i, v := range target {
		if !math.IsNaN(v) {
			rows = append(rows, i)
		}
	}
	if dropped := len(target) - len(rows); dropped > 0 {
		logger.Warn("Rows with a missing target dropped from training",
			"dropped", dropped,
		)
		return train.Take(rows), nil
	}
	return train, nil
}
