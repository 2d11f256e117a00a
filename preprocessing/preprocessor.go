package preprocessing

import (
	"context"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// FeaturesKey is the score holding the number of scaled features.
const FeaturesKey = "scaled_features"

// ScalePreprocessor fits a fresh Scaler on the feature matrix of the
// training data (the test data when there is none) and scales the feature
// matrix of both. Data is either a matrix X or a tuple whose first element
// is X; the other tuple elements pass through.
type ScalePreprocessor struct {
	New func() Scaler
}

// Standardize returns a ScalePreprocessor using StandardScaler.
func Standardize() ScalePreprocessor {
	return ScalePreprocessor{New: func() Scaler { return NewStandardScaler(true, true) }}
}

// MinMax returns a ScalePreprocessor mapping every feature into [lo, hi].
func MinMax(lo, hi float64) ScalePreprocessor {
	return ScalePreprocessor{New: func() Scaler { return NewMinMaxScaler(lo, hi) }}
}

var _ model.Preprocessor = ScalePreprocessor{}

// Run implements model.Preprocessor.
func (p ScalePreprocessor) Run(ctx context.Context, train, test tensor.Dataset, _ params.Params) (tensor.Dataset, tensor.Dataset, model.Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	fitOn := train
	if fitOn == nil {
		fitOn = test
	}
	x, err := features(fitOn)
	if err != nil {
		return nil, nil, nil, err
	}
	dense, err := x.ToDense()
	if err != nil {
		return nil, nil, nil, err
	}
	scaler := p.New()
	if err := scaler.Fit(dense); err != nil {
		return nil, nil, nil, err
	}

	var outTrain tensor.Dataset
	if train != nil {
		if outTrain, err = scale(scaler, train); err != nil {
			return nil, nil, nil, errors.Wrap(err, "scale train")
		}
	}
	outTest, err := scale(scaler, test)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "scale test")
	}
	_, cols := dense.Dims()
	return outTrain, outTest, model.Scores{FeaturesKey: float64(cols)}, nil
}

func features(d tensor.Dataset) (*tensor.Array, error) {
	if t, ok := d.(tensor.Tuple); ok && len(t) > 0 {
		d = t[0]
	}
	a, ok := d.(*tensor.Array)
	if !ok || a.NDim() != 2 || !a.DType().IsNumeric() {
		return nil, errors.NewValueError("ScalePreprocessor.Run",
			"expected a numeric matrix or a tuple starting with one, got "+tensor.Describe(d))
	}
	return a, nil
}

func scale(s Scaler, d tensor.Dataset) (tensor.Dataset, error) {
	x, err := features(d)
	if err != nil {
		return nil, err
	}
	dense, err := x.ToDense()
	if err != nil {
		return nil, err
	}
	scaled, err := s.Transform(dense)
	if err != nil {
		return nil, err
	}
	out := tensor.FromDense(scaled)
	t, ok := d.(tensor.Tuple)
	if !ok {
		return out, nil
	}
	c := append(tensor.Tuple(nil), t...)
	c[0] = out
	return c, nil
}
