package timeseries

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
)

func newEnv(seed uint64) *filters.Env {
	return filters.NewEnv(params.NewRand(seed), params.NewResolver(nil), nil)
}

func TestGap(t *testing.T) {
	data := tensor.New(tensor.Float64, 200, 2)

	out, err := Gap(params.Value(0.0), params.Value(0.5), params.Value(math.NaN())).Apply(data, newEnv(1))
	require.NoError(t, err)
	assert.True(t, out.Equal(data))

	out, err = Gap(params.Value(1.0), params.Value(0.0), params.Value(-1.0)).Apply(data, newEnv(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 0), "the first step is recorded while working")
	for step := 1; step < 200; step++ {
		assert.Equal(t, -1.0, out.At(step, 0))
		assert.Equal(t, -1.0, out.At(step, 1))
	}

	out, err = Gap(params.Value(0.1), params.Value(0.3), params.Value(math.NaN())).Apply(data, newEnv(4))
	require.NoError(t, err)
	for step := 0; step < 200; step++ {
		// a step is either fully missing or fully present
		assert.Equal(t, math.IsNaN(out.At(step, 0)), math.IsNaN(out.At(step, 1)))
	}
}

func TestSensorDrift(t *testing.T) {
	data := tensor.Must(tensor.FromFloat64([]float64{0, 0, 0}))
	out, err := SensorDrift(params.Value(0.5)).Apply(data, newEnv(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 1.5}, out.Floats())
	assert.Equal(t, []float64{0, 0, 0}, data.Floats())

	out, err = SensorDrift(params.Value(0.0)).Apply(data, newEnv(1))
	require.NoError(t, err)
	assert.True(t, out.Equal(data))
}
