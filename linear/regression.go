// Package linear contains the reference models the sweep runner scores on
// corrupted data: ordinary least squares and a weighted moving average
// predictor for sequences.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/parallel"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	state             *model.StateManager
	weights           *mat.VecDense // 重み（係数）
	intercept         float64       // 切片
	fitIntercept      bool
	parallelThreshold int
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:             model.NewStateManager(),
		fitIntercept:      true,
		parallelThreshold: 1000,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 w = (X^T * X)^(-1) * X^T * y を使用
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LinearRegression.Fit")
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	// 切片項のために X の先頭に 1 の列を追加する
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	design := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, lr.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, "LinearRegression.Fit")
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), mat.NewVecDense(r, mat.Col(nil, 0, y)))

	coef := mat.NewVecDense(c+offset, nil)
	coef.MulVec(&xtxInv, &xty)

	lr.intercept = 0
	if offset == 1 {
		lr.intercept = coef.AtVec(0)
	}
	lr.weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.weights.SetVec(j, coef.AtVec(j+offset))
	}
	lr.state.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	nFeatures, _ := lr.state.Dimensions()
	if c != nFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", nFeatures, c, 1)
	}

	// y = X * weights + intercept
	var pred mat.VecDense
	pred.MulVec(X, lr.weights)
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, pred.AtVec(i)+lr.intercept)
	}
	return out, nil
}

// Weights は学習された重み（係数）を返す
func (lr *LinearRegression) Weights() []float64 {
	if lr.weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.weights)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// IsFitted reports whether Fit has succeeded.
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}
