package training

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/preprocessing"
)

// Predict re-applies a fitted encoder to table and returns one prediction
// per row. predictors and catCols are the names given at training time;
// encoder may be nil when there were no categorical columns.
func Predict(table *frame.Table, encoder *preprocessing.OneHotEncoder, m model.Predictor, predictors, catCols []string) ([]float64, error) {
	if m == nil {
		return nil, errors.NewValueError("training.Predict", "model is nil")
	}
	cols := predictors
	if encoder != nil && len(catCols) > 0 {
		encoded, dummies, err := encoder.Transform(table)
		if err != nil {
			return nil, err
		}
		table = encoded
		cols = preprocessing.ReplaceColumns(predictors, catCols, dummies)
	}

	X, err := table.Matrix(cols)
	if err != nil {
		return nil, err
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// Predict applies the trained encoder and model to table.
func (r *TrainResult) Predict(table *frame.Table) ([]float64, error) {
	return Predict(table, r.Encoder, r.Model, r.originalPredictors(), r.CatCols)
}

// originalPredictors drops the dummy columns from Predictors and puts the
// categorical columns back, giving the names Predict expects.
func (r *TrainResult) originalPredictors() []string {
	if r.Encoder == nil || len(r.CatCols) == 0 {
		return r.Predictors
	}
	dummy := make(map[string]bool)
	for _, name := range r.Encoder.FeatureNames() {
		dummy[name] = true
	}
	var out []string
	for _, p := range r.Predictors {
		if !dummy[p] {
			out = append(out, p)
		}
	}
	return append(out, r.CatCols...)
}

// PredictEncoded predicts rows of a table that is already encoded, such as
// r.Train or r.Test.
func (r *TrainResult) PredictEncoded(table *frame.Table) ([]float64, error) {
	return Predict(table, nil, r.Model, r.Predictors, nil)
}
