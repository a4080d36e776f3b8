package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// ErrorColumn is the name of the mean error column of the per-group table.
const ErrorColumn = "error"

// AbsoluteErrors returns |target - prediction| per row. Missing targets
// count as 0; the error is NaN wherever the prediction is NaN.
func AbsoluteErrors(table *frame.Table, predictionColumn, targetColumn string) ([]float64, error) {
	if table == nil {
		return nil, errors.NewValueError("AbsoluteErrors", "nil table")
	}
	pred, err := table.Floats(predictionColumn)
	if err != nil {
		return nil, err
	}
	target, err := table.Floats(targetColumn)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(pred))
	for i, p := range pred {
		if math.IsNaN(p) {
			out[i] = math.NaN()
			continue
		}
		y := target[i]
		if math.IsNaN(y) {
			y = 0
		}
		out[i] = math.Abs(y - p)
	}
	return out, nil
}

// NaNMean returns the mean of the non-NaN values, or NaN when there are none.
func NaNMean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// ComputeError aggregates the absolute prediction error of table.
//
// overall is the mean over rows with a prediction. When groupColumn is not
// empty, groups holds one row per distinct group value with columns
// {groupColumn, "error"}, sorted by group value (numerically for a float
// column); rows with a missing group value are left out of it. Otherwise
// groups is nil. A table without any predicted row yields NaN and an
// UndefinedMetricWarning.
func ComputeError(table *frame.Table, predictionColumn, targetColumn, groupColumn string) (overall float64, groups *frame.Table, err error) {
	abs, err := AbsoluteErrors(table, predictionColumn, targetColumn)
	if err != nil {
		return math.NaN(), nil, err
	}

	overall = NaNMean(abs)
	if math.IsNaN(overall) {
		errors.Warn(errors.NewUndefinedMetricWarning("ComputeError", "no row has a prediction", overall))
	}
	if groupColumn == "" {
		return overall, nil, nil
	}

	col, err := table.Column(groupColumn)
	if err != nil {
		return math.NaN(), nil, err
	}
	all, err := table.GroupBy(groupColumn)
	if err != nil {
		return math.NaN(), nil, err
	}
	parts := all[:0:0]
	for _, g := range all {
		if !frame.IsMissing(g.Key) {
			parts = append(parts, g)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		if col.Kind == frame.Float {
			return col.Float(parts[i].Rows[0]) < col.Float(parts[j].Rows[0])
		}
		return parts[i].Key < parts[j].Key
	})
	keys := make([]string, len(parts))
	means := make([]float64, len(parts))
	for i, g := range parts {
		vals := make([]float64, len(g.Rows))
		for j, r := range g.Rows {
			vals[j] = abs[r]
		}
		keys[i] = g.Key
		means[i] = NaNMean(vals)
	}

	groups = frame.New(len(parts))
	if col.Kind == frame.Float {
		nums := make([]float64, len(parts))
		for i, g := range parts {
			nums[i] = col.Float(g.Rows[0])
		}
		err = groups.AddFloat(groupColumn, nums)
	} else {
		err = groups.AddString(groupColumn, keys)
	}
	if err != nil {
		return math.NaN(), nil, err
	}
	if err := groups.AddFloat(ErrorColumn, means); err != nil {
		return math.NaN(), nil, err
	}
	return overall, groups, nil
}
