package linear

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/metrics"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// createData はy = 1 + 0.5*x0 + 1.0*x1 + ... に小さなノイズを加えたデータを生成する
func createData(rows, cols int, noise float64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			v := rng.Float64()*2 - 1
			X.Set(i, j, v)
			sum += v * float64(j+1) * 0.5
		}
		y.Set(i, 0, sum+(rng.Float64()-0.5)*noise)
	}
	return X, y
}

func TestLinearRegressionFit(t *testing.T) {
	X, y := createData(200, 3, 0)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 1.0, lr.Intercept(), 1e-8)
	want := []float64{0.5, 1.0, 1.5}
	for j, w := range lr.Weights() {
		assert.InDelta(t, want[j], w, 1e-8)
	}

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, y.At(7, 0), pred.At(7, 0), 1e-8)
}

func TestLinearRegressionParallelAssembly(t *testing.T) {
	X, y := createData(300, 2, 0.1)
	seq := NewLinearRegression()
	par := NewLinearRegression(WithParallelThreshold(10))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))
	assert.InDeltaSlice(t, seq.Weights(), par.Weights(), 1e-10)
}

func TestLinearRegressionWithoutIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})
	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 0.0, lr.Intercept())
	assert.InDelta(t, 2.0, lr.Weights()[0], 1e-10)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 1, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	// duplicated column
	err = lr.Fit(mat.NewDense(3, 2, []float64{1, 1, 2, 2, 3, 3}), mat.NewDense(3, 1, []float64{1, 2, 3}))
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

	X, y := createData(20, 2, 0)
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dimErr))
	assert.True(t, lr.IsFitted())
}

func TestRegressionModel(t *testing.T) {
	X, y := createData(50, 2, 0)
	data := tensor.Tuple{tensor.FromDense(X), tensor.Must(tensor.FromFloat64(mat.Col(nil, 0, y)))}

	scores, err := RegressionModel{}.Run(context.Background(), data, data, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scores[metrics.NameMSE], 1e-12)
	assert.InDelta(t, 1.0, scores[metrics.NameR2], 1e-10)

	scores, err = RegressionModel{}.Run(context.Background(), data, data, params.Params{FitInterceptKey: false})
	require.NoError(t, err)
	assert.Greater(t, scores[metrics.NameMSE], 0.1)

	_, err = RegressionModel{}.Run(context.Background(), nil, data, nil)
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))

	_, err = RegressionModel{}.Run(context.Background(), data, data.DeepCopy().(tensor.Tuple)[0], nil)
	assert.True(t, errors.As(err, &valueErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RegressionModel{}.Run(ctx, data, data, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWeightedAverage(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, WeightedAverage([]float64{1, 2, 3}, 0))
	assert.Equal(t, []float64{0, 1, 2}, WeightedAverage([]float64{1, 2, 3}, 1))
	assert.InDeltaSlice(t, []float64{0, 0.5, 1.25}, WeightedAverage([]float64{1, 2, 3}, 0.5), 1e-12)
}

func TestWeightedAveragePredictor(t *testing.T) {
	test := tensor.Must(tensor.FromFloat64([]float64{0, 1, 2, 3}))
	m := WeightedAveragePredictor{}

	// weight 0 keeps predicting zero
	scores, err := m.Run(context.Background(), nil, test, params.Params{WeightKey: 0})
	require.NoError(t, err)
	assert.InDelta(t, (0+1+4+9)/4.0, scores[metrics.NameMSE], 1e-12)

	scores, err = m.Run(context.Background(), nil, test, params.Params{WeightKey: 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 3.0/4.0, scores[metrics.NameMSE], 1e-12)

	_, err = m.Run(context.Background(), nil, test, params.Params{WeightKey: 1.5})
	var validationErr *errors.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = m.Run(context.Background(), nil, test, nil)
	var missing *errors.MissingParameterError
	assert.True(t, errors.As(err, &missing))

	_, err = m.Run(context.Background(), nil, tensor.New(tensor.Float64, 2, 2), params.Params{WeightKey: 0.5})
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func BenchmarkLinearRegressionFit(b *testing.B) {
	X, y := createData(10000, 10, 0.1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lr := NewLinearRegression()
		if err := lr.Fit(X, y); err != nil {
			b.Fatal(err)
		}
	}
}
