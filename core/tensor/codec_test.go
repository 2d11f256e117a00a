package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		check func(t *testing.T, d Dataset)
	}{
		{
			name:  "matrix",
			input: `[[1, 2], [3, 4], [5, 6]]`,
			kind:  KindArray,
			check: func(t *testing.T, d Dataset) {
				a := d.(*Array)
				assert.Equal(t, []int{3, 2}, a.Shape())
				assert.Equal(t, 4.0, a.At(1, 1))
			},
		},
		{
			name:  "strings",
			input: `["a", "b"]`,
			kind:  KindArray,
			check: func(t *testing.T, d Dataset) {
				assert.Equal(t, String, d.(*Array).DType())
			},
		},
		{
			name:  "tuple",
			input: `{"tuple": [[1, 2], ["x", "y"]]}`,
			kind:  KindTuple,
			check: func(t *testing.T, d Dataset) {
				assert.Len(t, d.(Tuple), 2)
			},
		},
		{
			name:  "ragged list",
			input: `{"list": [[1], [1, 2, 3]]}`,
			kind:  KindList,
			check: func(t *testing.T, d Dataset) {
				l := d.(List)
				assert.Equal(t, []int{3}, l[1].(*Array).Shape())
			},
		},
		{
			name:  "null is NaN",
			input: `[1, null]`,
			kind:  KindArray,
			check: func(t *testing.T, d Dataset) {
				assert.True(t, math.IsNaN(d.(*Array).At(1)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeJSON([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind())
			tt.check(t, d)
		})
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	for _, input := range []string{
		``,
		`[[1, 2], [3]]`,
		`[1, "a"]`,
		`{"dict": []}`,
		`[true]`,
	} {
		_, err := DecodeJSON([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	d := Tuple{
		Must(FromFloat64([]float64{1, math.NaN(), 3, 4}, 2, 2)),
		List{Must(FromStrings([]string{"hello"}))},
	}
	raw, err := EncodeJSON(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tuple": [[[1, null], [3, 4]], {"list": [["hello"]]}]}`, string(raw))

	back, err := DecodeJSON(raw)
	require.NoError(t, err)
	assert.True(t, Equal(d, back))
}

func TestEncodeJSONRejectsInfinity(t *testing.T) {
	tests := []struct {
		name string
		d    Dataset
		at   string
	}{
		{"positive", Must(FromFloat64([]float64{1, 2, 3, math.Inf(1)}, 2, 2)), "[1 1]"},
		{"negative in tuple", Tuple{Must(FromStrings([]string{"x"})), Must(FromFloat64([]float64{math.Inf(-1), 0}))}, "[0]"},
		{"scalar", Scalar(math.Inf(1)), "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeJSON(tt.d)
			var valueErr *errors.ValueError
			require.True(t, errors.As(err, &valueErr))
			assert.Contains(t, valueErr.Message, "index "+tt.at)
		})
	}

	_, err := Must(FromFloat64([]float64{math.Inf(1)})).MarshalJSON()
	assert.Error(t, err)
}
