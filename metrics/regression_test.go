package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			yPred: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			want:  0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(4, []float64{1, 2, 3, 4}),
			yPred: mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:  0.25,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10, 20, 30}),
			yPred: mat.NewVecDense(3, []float64{12, 18, 33}),
			want:  17.0 / 3.0,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1, 2, 3}),
			yPred:   mat.NewVecDense(2, []float64{1, 2}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{2, 2, 3, 6})

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(5.0/4.0), rmse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, mae, 1e-12)
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	r2, err := R2Score(yTrue, mat.NewVecDense(4, []float64{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-12)

	// predicting the mean scores zero
	r2, err = R2Score(yTrue, mat.NewVecDense(4, []float64{2.5, 2.5, 2.5, 2.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-12)

	_, err = R2Score(mat.NewVecDense(2, []float64{3, 3}), mat.NewVecDense(2, []float64{1, 2}))
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestRegression(t *testing.T) {
	scores, err := Regression([]float64{1, 2, 3, 4}, []float64{2, 2, 3, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, scores[NameMSE], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), scores[NameRMSE], 1e-12)
	assert.InDelta(t, 0.75, scores[NameMAE], 1e-12)
	assert.InDelta(t, 0.0, scores[NameR2], 1e-12)

	scores, err = Regression([]float64{3, 3}, []float64{3, 4})
	require.NoError(t, err)
	assert.NotContains(t, scores, NameR2)

	_, err = Regression([]float64{1, 2}, []float64{1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = Regression([]float64{1}, []float64{math.NaN()})
	var nanErr *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nanErr))

	mse, err := MSEFloats([]float64{0, 0}, []float64{1, 3})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mse, 1e-12)
}
