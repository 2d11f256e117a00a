// Package metrics scores model predictions made on corrupted data. The
// runner records these scores for every sweep point so that a model's
// degradation can be read off against the error parameters.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Score names used by Regression.
const (
	NameMSE  = "MSE"
	NameRMSE = "RMSE"
	NameMAE  = "MAE"
	NameR2   = "R2"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkVectors("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff) / float64(yTrue.Len()), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkVectors("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Norm(&diff, 1) / float64(yTrue.Len()), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkVectors("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	yMean := stat.Mean(mat.Col(nil, 0, yTrue), nil)

	var tss, rss float64
	for i := 0; i < yTrue.Len(); i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	// すべてのyTrueが同じ値の場合
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MSEFloats is MSE over plain slices.
func MSEFloats(yTrue, yPred []float64) (float64, error) {
	t, p, err := vectors("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// Regression computes MSE, RMSE and MAE, and R2 when yTrue has variance.
func Regression(yTrue, yPred []float64) (map[string]float64, error) {
	t, p, err := vectors("Regression", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	mse, err := MSE(t, p)
	if err != nil {
		return nil, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return nil, err
	}
	scores := map[string]float64{
		NameMSE:  mse,
		NameRMSE: math.Sqrt(mse),
		NameMAE:  mae,
	}
	if r2, err := R2Score(t, p); err == nil {
		scores[NameR2] = r2
	}
	return scores, nil
}

func vectors(op string, yTrue, yPred []float64) (*mat.VecDense, *mat.VecDense, error) {
	if len(yTrue) == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return nil, nil, errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	if floats.HasNaN(yPred) {
		return nil, nil, errors.CheckNumericalStability(op, yPred)
	}
	return mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...)),
		mat.NewVecDense(len(yPred), append([]float64(nil), yPred...)), nil
}

func checkVectors(op string, yTrue, yPred *mat.VecDense) error {
	if yTrue.IsEmpty() || yTrue.Len() == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if yPred.IsEmpty() || yPred.Len() != yTrue.Len() {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return errors.NewDimensionError(op, yTrue.Len(), got, 0)
	}
	return nil
}
