package linear

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/metrics"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// FitInterceptKey optionally overrides the intercept setting per run.
const FitInterceptKey = "fit_intercept"

var _ model.Estimator = (*LinearRegression)(nil)

// RegressionModel fits a LinearRegression on the training tuple (X, y) and
// scores it on the test tuple. X has shape [n, features] and y has shape
// [n]. A fresh regression is fitted on every run.
type RegressionModel struct {
	Options []Option
}

// Run implements model.Model.
func (m RegressionModel) Run(ctx context.Context, train, test tensor.Dataset, p params.Params) (model.Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if train == nil {
		return nil, errors.NewValueError("RegressionModel.Run", "training data is required")
	}
	opts := append([]Option(nil), m.Options...)
	r := params.NewResolver(p)
	if r.Has(FitInterceptKey) {
		fit, err := params.Key[bool](FitInterceptKey).Get(r, "RegressionModel")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithFitIntercept(fit))
	}

	xTrain, yTrain, err := supervised("train", train)
	if err != nil {
		return nil, err
	}
	xTest, yTest, err := supervised("test", test)
	if err != nil {
		return nil, err
	}

	var lr model.Estimator = NewLinearRegression(opts...)
	if err := lr.Fit(xTrain, yTrain); err != nil {
		return nil, err
	}
	pred, err := lr.Predict(xTest)
	if err != nil {
		return nil, err
	}
	return metrics.Regression(mat.Col(nil, 0, yTest), mat.Col(nil, 0, pred))
}

// supervised splits a (X, y) tuple into gonum matrices.
func supervised(role string, d tensor.Dataset) (*mat.Dense, *mat.Dense, error) {
	tup, ok := d.(tensor.Tuple)
	if !ok || len(tup) != 2 {
		return nil, nil, errors.NewValueError("RegressionModel.Run",
			role+" data must be a tuple (X, y), got "+tensor.Describe(d))
	}
	xArr, okX := tup[0].(*tensor.Array)
	yArr, okY := tup[1].(*tensor.Array)
	if !okX || !okY || xArr.NDim() != 2 || yArr.NDim() != 1 {
		return nil, nil, errors.NewValueError("RegressionModel.Run",
			role+" data must hold a matrix X and a vector y, got "+tensor.Describe(d))
	}
	x, err := xArr.ToDense()
	if err != nil {
		return nil, nil, err
	}
	y, err := yArr.ToDense()
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
