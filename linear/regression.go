// Package linear は最小二乗法による線形回帰を提供します。
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// LinearRegression は切片付きの線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Weights   []float64 // 係数
	Intercept float64   // 切片
	NFeatures int       // 特徴量の数
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit はモデルを訓練データで学習させる
//
// [1, X] b = y をQR分解で解く。列が線形従属の場合は ErrSingularMatrix を返す。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if r < c+1 {
		return errors.NewModelError("LinearRegression.Fit", "fewer rows than coefficients", errors.ErrSingularMatrix)
	}

	// 切片項のために X に 1 の列を追加
	design := mat.NewDense(r, c+1, nil)
	target := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < c; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
		target.SetVec(i, y.At(i, 0))
	}

	var qr mat.QR
	qr.Factorize(design)
	var rr mat.Dense
	qr.RTo(&rr)
	for i := 0; i <= c; i++ {
		if d := rr.At(i, i); d > -1e-10 && d < 1e-10 {
			return errors.NewModelError("LinearRegression.Fit", "rank deficient design", errors.ErrSingularMatrix)
		}
	}
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, target); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "least squares", errors.Wrap(err, "qr solve"))
	}

	lr.Intercept = beta.AtVec(0)
	lr.Weights = make([]float64, c)
	for j := range lr.Weights {
		lr.Weights[j] = beta.AtVec(j + 1)
	}
	lr.NFeatures = c
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}
