package linear

import (
	"context"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/metrics"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// WeightKey is the model parameter read by WeightedAveragePredictor.
const WeightKey = "weight"

// WeightedAverage returns one-step-ahead predictions for values. The
// estimate starts at zero and after each observation moves toward it by
// weight: e = (1-weight)*e + weight*x.
func WeightedAverage(values []float64, weight float64) []float64 {
	preds := make([]float64, len(values))
	estimate := 0.0
	for i, x := range values {
		preds[i] = estimate
		estimate = (1-weight)*estimate + weight*x
	}
	return preds
}

// WeightedAveragePredictor predicts each element of a one-dimensional test
// sequence from the elements before it and scores the predictions. It
// needs no training data.
type WeightedAveragePredictor struct{}

// Run implements model.Model. The "weight" parameter must lie in [0, 1].
func (WeightedAveragePredictor) Run(ctx context.Context, _, test tensor.Dataset, p params.Params) (model.Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	weight, err := params.Key[float64](WeightKey).Get(params.NewResolver(p), "WeightedAveragePredictor")
	if err != nil {
		return nil, err
	}
	if weight < 0 || weight > 1 {
		return nil, errors.NewValidationError(WeightKey, "weight must be in [0, 1]", weight)
	}

	arr, ok := test.(*tensor.Array)
	if !ok || arr.NDim() != 1 || !arr.DType().IsNumeric() {
		return nil, errors.NewValueError("WeightedAveragePredictor.Run",
			"test data must be a one-dimensional numeric array, got "+tensor.Describe(test))
	}
	values := arr.Floats()
	scores, err := metrics.Regression(values, WeightedAverage(values, weight))
	if err != nil {
		return nil, errors.Wrap(err, "WeightedAveragePredictor.Run")
	}
	return scores, nil
}
