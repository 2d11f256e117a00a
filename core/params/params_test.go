package params

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

func TestResolvePreservesDeclarationOrder(t *testing.T) {
	gen := Gaussian{Mean: 5, Std: 1}
	r := NewResolver(Params{"std": 0.5, "mean": 1.0, "radius": gen})

	values, err := r.Resolve("GaussianNoise", "std", "mean", "radius")
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, 0.5, values[0])
	assert.Equal(t, 1.0, values[1])
	// generators come back unevaluated
	assert.Equal(t, gen, values[2])
}

func TestResolveMissingParameter(t *testing.T) {
	r := NewResolver(Params{"std": 1.0, "mean": 0.0})

	_, err := r.Resolve("GaussianNoise", "mean", "stdev")
	require.Error(t, err)

	var missing *errors.MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "stdev", missing.Key)
	assert.Equal(t, "GaussianNoise", missing.Filter)
	assert.Equal(t, "std", missing.Suggestion)
	assert.Contains(t, err.Error(), `"stdev"`)

	_, err = r.Lookup("Rotation", "completely_unrelated_name")
	require.True(t, errors.As(err, &missing))
	assert.Empty(t, missing.Suggestion)
}

func TestParamGet(t *testing.T) {
	r := NewResolver(Params{"p": 1, "angle": 12.5, "name": "x", "seed": 3})

	tests := []struct {
		name    string
		get     func() (any, error)
		want    any
		wantErr bool
	}{
		{"fixed", func() (any, error) { return Value(0.25).Get(r, "f") }, 0.25, false},
		{"int to float", func() (any, error) { return Key[float64]("p").Get(r, "f") }, 1.0, false},
		{"exact", func() (any, error) { return Key[string]("name").Get(r, "f") }, "x", false},
		{"float to int", func() (any, error) { return Key[int]("seed").Get(r, "f") }, 3, false},
		{"fractional to int", func() (any, error) { return Key[int]("angle").Get(r, "f") }, nil, true},
		{"string to float", func() (any, error) { return Key[float64]("name").Get(r, "f") }, nil, true},
		{"unset", func() (any, error) { return Param[float64]{}.Get(r, "f") }, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if tt.wantErr {
				var validation *errors.ValidationError
				assert.True(t, errors.As(err, &validation), "want ValidationError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeysOf(t *testing.T) {
	keys := KeysOf(Key[float64]("mean"), Value(1.0), Key[int]("k"))
	assert.Equal(t, []string{"mean", "k"}, keys)
}

func TestSeed(t *testing.T) {
	seed, ok, err := Params{"seed": 42}.Seed()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), seed)

	_, ok, err = Params{}.Seed()
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Params{"seed": -1}.Seed()
	assert.Error(t, err)
}

func TestSeedKeepsEveryBit(t *testing.T) {
	const clock = uint64(1760000000123456789)
	tests := []struct {
		name    string
		value   any
		want    uint64
		wantErr bool
	}{
		{name: "uint64 clock seed", value: clock, want: clock},
		{name: "int64 clock seed", value: int64(clock), want: clock},
		{name: "int clock seed", value: int(clock), want: clock},
		{name: "neighbour", value: clock + 1, want: clock + 1},
		{name: "integral float", value: 7.0, want: 7},
		{name: "fractional float", value: 7.5, wantErr: true},
		{name: "float beyond 2^53", value: float64(clock), wantErr: true},
		{name: "negative int64", value: int64(-3), wantErr: true},
		{name: "string", value: "42", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Params{SeedKey: tt.value}.Seed()
			assert.True(t, ok)
			if tt.wantErr {
				var ve *errors.ValidationError
				require.True(t, errors.As(err, &ve))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntegerParamsAreExact(t *testing.T) {
	r := NewResolver(Params{"big": int64(1<<62 + 1), "u": uint64(1<<63 + 5)})
	i, err := Key[int64]("big").Get(r, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62+1), i)

	u, err := Key[uint64]("u").Get(r, "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63+5), u)

	_, err = Key[int64]("u").Get(r, "test")
	assert.Error(t, err)
}

func TestMismatchNamesInterfaceType(t *testing.T) {
	r := NewResolver(Params{"radius": "wide"})
	_, err := Key[Generator]("radius").Get(r, "StainArea")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params.Generator")
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestClone(t *testing.T) {
	p := Params{"weights": []float64{1, 2}, "std": 1.0}
	c, err := p.Clone()
	require.NoError(t, err)
	c["weights"].([]float64)[0] = 9
	assert.Equal(t, 1.0, p["weights"].([]float64)[0])
}

func TestGrid(t *testing.T) {
	points := Grid(map[string][]any{
		"std":  {0.0, 1.0},
		"prob": {0.1, 0.2, 0.3},
	})
	require.Len(t, points, 6)

	want := []Params{
		{"prob": 0.1, "std": 0.0},
		{"prob": 0.1, "std": 1.0},
		{"prob": 0.2, "std": 0.0},
		{"prob": 0.2, "std": 1.0},
		{"prob": 0.3, "std": 0.0},
		{"prob": 0.3, "std": 1.0},
	}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("Grid mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, Grid(nil), 1)
}

func TestExpandToLinspace(t *testing.T) {
	single, err := ExpandToLinspace([]float64{3}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, single)

	span, err := ExpandToLinspace([]float64{1, 50}, 0)
	require.NoError(t, err)
	require.Len(t, span, DefaultLinspacePoints)
	assert.InDelta(t, 1, span[0], 1e-12)
	assert.InDelta(t, 2, span[1], 1e-12)
	assert.InDelta(t, 50, span[49], 1e-12)

	_, err = ExpandToLinspace([]float64{1, 2, 3}, 0)
	assert.Error(t, err)
}
