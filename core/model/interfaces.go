// Package model provides the estimator contracts shared by the tree ensembles,
// the hyperparameter search and the trainer.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// FeatureImporter is implemented by models that expose normalized feature importances.
type FeatureImporter interface {
	// FeatureImportances returns one non-negative value per feature, summing to 1
	// unless the model never split.
	FeatureImportances() ([]float64, error)
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets hyperparameters by their scikit-learn style name.
	SetParams(params map[string]interface{}) error

	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// Regressor is the capability set every trainer-bound model provides.
type Regressor interface {
	Fitter
	Predictor
	Scorer
	FeatureImporter
	ParameterSetter

	// Clone returns an unfitted copy with the same hyperparameters.
	Clone() Regressor
}
