package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/core/node"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

const mnistYAML = `
tree:
  kind: tuple
  children:
    - kind: series
      name: images
      child:
        kind: leaf
        reshape: [4, 4]
        filters:
          - type: ApplyWithProbability
            mode: per_call
            params: {p: $p}
            inner:
              type: Rotation
              params: {angle: $angle}
          - type: Clip
            params: {min: 0, max: 255}
    - kind: leaf
      name: labels
sweep:
  seed: 3
  base: {p: 1.0}
  linspace: {angle: [0, 90]}
  grid: {std: [0, 1]}
  points: 3
  models:
    - name: predictor
      type: weighted_average
      grid: {weight: [0.5, 1.0]}
`

func TestLoadAndBuild(t *testing.T) {
	f, err := Load(strings.NewReader(mnistYAML))
	require.NoError(t, err)

	root, err := f.Tree.Build()
	require.NoError(t, err)
	assert.Equal(t, node.KindTuple, root.Kind())
	assert.Equal(t, []string{"p", "angle"}, node.Keys(root))
	assert.Contains(t, node.Describe(root), "images")

	data := tensor.Tuple{tensor.New(tensor.Float64, 2, 16), tensor.New(tensor.Float64, 2)}
	out, err := node.GenerateError(root, data, params.Params{"p": 1.0, "angle": 90.0}, node.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Describe(data), tensor.Describe(out))

	points, err := f.Sweep.ErrParams()
	require.NoError(t, err)
	require.Len(t, points, 6)
	assert.Equal(t, params.Params{"p": 1.0, "angle": 0.0, "std": 0}, points[0])
	assert.Equal(t, params.Params{"p": 1.0, "angle": 45.0, "std": 1}, points[3])

	models, err := f.Sweep.RunnerModels()
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "predictor", models[0].Name)
	assert.Len(t, models[0].ParamsList, 2)
	assert.NotNil(t, models[0].New())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	doc := `
tree:
  kind: series
  children:
    - kind: leaf
  filters:
    - type: GausianNoise
      params: {mean: 0, std: 1}
    - type: Clip
      mode: sometimes
      params: {min: 0, max: 1}
sweep:
  workers: -2
  models:
    - name: m
      type: knn
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "a series has exactly one child")
	assert.Contains(t, msg, "only leaves hold filters")
	assert.Contains(t, msg, "Workers")
	assert.Contains(t, msg, "Mode")
	assert.Contains(t, msg, "unknown model type")

	var validationErr *errors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestUnknownFilterSuggestsName(t *testing.T) {
	doc := `
tree:
  kind: leaf
  filters:
    - type: GausianNoise
      params: {mean: 0, std: 1}
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "GaussianNoise"?`)
}

func TestLoadRejectsUnknownFieldsAndEmptyInput(t *testing.T) {
	_, err := Load(strings.NewReader("tree:\n  kind: leaf\n  colour: red\n"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(""))
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestBuildFilterParams(t *testing.T) {
	tests := []struct {
		name    string
		spec    FilterSpec
		keys    []string
		wantErr string
	}{
		{
			name: "keys and values",
			spec: FilterSpec{Type: "GaussianNoise", Params: map[string]any{"mean": 0, "std": "$std"}},
			keys: []string{"std"},
		},
		{
			name:    "missing parameter",
			spec:    FilterSpec{Type: "GaussianNoise", Params: map[string]any{"mean": 0}},
			wantErr: `requires parameter "std"`,
		},
		{
			name:    "unused parameter",
			spec:    FilterSpec{Type: "Rotation", Params: map[string]any{"angle": 3, "axis": 1}},
			wantErr: `has no parameter "axis"`,
		},
		{
			name:    "wrong type",
			spec:    FilterSpec{Type: "Resolution", Params: map[string]any{"k": 1.5}},
			wantErr: "expected an integer",
		},
		{
			name: "generator",
			spec: FilterSpec{Type: "StainArea", Params: map[string]any{
				"probability": 0.01, "transparency": 0.5,
				"radius": map[string]any{"gaussian": map[string]any{"mean": 3, "std": 1}},
			}},
		},
		{
			name: "generator key",
			spec: FilterSpec{Type: "StainArea", Params: map[string]any{
				"probability": "$p", "transparency": 0.5, "radius": "$radius",
			}},
			keys: []string{"p", "radius"},
		},
		{
			name: "bad generator",
			spec: FilterSpec{Type: "StainArea", Params: map[string]any{
				"probability": 0.01, "transparency": 0.5,
				"radius": map[string]any{"poisson": map[string]any{"lambda": 3}},
			}},
			wantErr: "expected $key, a number",
		},
		{
			name: "gate with filter from params",
			spec: FilterSpec{Type: "ApplyWithProbability", Params: map[string]any{"filter": "$ocr", "p": "$p"}},
			keys: []string{"ocr", "p"},
		},
		{
			name: "combinator",
			spec: FilterSpec{Type: "Addition", Operands: []FilterSpec{
				{Type: "Identity"},
				{Type: "Constant", Params: map[string]any{"value": "$c"}},
			}},
			keys: []string{"c"},
		},
		{
			name:    "combinator arity",
			spec:    FilterSpec{Type: "Max", Operands: []FilterSpec{{Type: "Identity"}}},
			wantErr: "exactly two operands",
		},
		{
			name: "modify as data type",
			spec: FilterSpec{Type: "ModifyAsDataType", DType: "uint8", Inner: &FilterSpec{
				Type: "GaussianNoise", Params: map[string]any{"mean": 0, "std": 2},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Build(tt.spec)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.keys, nilIfEmpty(f.Keys()))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestOCRTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": [["e"], [1]]}`), 0o600))

	gate := FilterSpec{Type: "ApplyWithProbability", Params: map[string]any{"p": 1.0}, Inner: &FilterSpec{
		Type: "OCRError", Params: map[string]any{"table": path, "p": 1.0},
	}}
	f, err := Build(gate)
	require.NoError(t, err)

	leaf := node.NewLeaf(node.WithDType(tensor.String))
	require.NoError(t, leaf.AddFilter(f))
	out, err := leaf.GenerateError(tensor.Must(tensor.FromStrings([]string{"a", "b", "a"})), nil, node.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "b", "e"}, out.(*tensor.Array).Strings())

	_, err = Build(FilterSpec{Type: "OCRError", Params: map[string]any{"table": "/does/not/exist.json", "p": 1.0}})
	assert.Error(t, err)
}

func TestLeafRejectsIncompatibleFilter(t *testing.T) {
	spec := NodeSpec{Kind: "leaf", DType: "float64", Filters: []FilterSpec{
		{Type: "Uppercase", Params: map[string]any{"p": 0.5}},
	}}
	_, err := spec.Build()
	var structErr *errors.StructureError
	require.True(t, errors.As(err, &structErr))
	assert.Contains(t, err.Error(), "tree.filters[0]")
}

func TestCustomFilterRegistration(t *testing.T) {
	DefaultFilters["Negate"] = func(FilterSpec, *Args) (filters.Filter, error) {
		return filters.Subtraction(filters.Constant(params.Value(0.0)), filters.Identity()), nil
	}
	defer delete(DefaultFilters, "Negate")

	f, err := Build(FilterSpec{Type: "Negate"})
	require.NoError(t, err)
	out, err := f.Apply(tensor.Must(tensor.FromFloat64([]float64{1, -2})), filters.NewEnv(params.NewRand(1), params.NewResolver(nil), nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 2}, out.Floats())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mnistYAML), 0o600))
	f, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, f.Sweep.Seed)
	assert.Equal(t, uint64(3), f.Sweep.BaseSeed())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunnerPreprocessor(t *testing.T) {
	assert.Nil(t, (&SweepSpec{}).RunnerPreprocessor())
	assert.NotNil(t, (&SweepSpec{Preprocessor: "standardize"}).RunnerPreprocessor())
	assert.NotNil(t, (&SweepSpec{Preprocessor: "minmax"}).RunnerPreprocessor())

	_, err := Load(strings.NewReader("tree: {kind: leaf}\nsweep: {preprocessor: whiten}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Preprocessor")
}

const radiusSweepYAML = `
tree:
  kind: leaf
  reshape: [4, 4]
  filters:
    - type: StainArea
      params: {probability: 0.5, radius: $radius, transparency: 0.5}
sweep:
  seed: 0
  grid:
    radius:
      - {gaussian: {mean: 2, std: 1}}
      - {uniform: {min: 1, max: 3}}
      - 1
`

func TestSweepDecodesDictionaryValues(t *testing.T) {
	f, err := Load(strings.NewReader(radiusSweepYAML))
	require.NoError(t, err)
	require.NotNil(t, f.Sweep.Seed)
	assert.Equal(t, uint64(0), f.Sweep.BaseSeed())

	root, err := f.Tree.Build()
	require.NoError(t, err)
	points, err := f.Sweep.ErrParams()
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, params.Gaussian{Mean: 2, Std: 1}, points[0]["radius"])
	assert.Equal(t, params.Uniform{Min: 1, Max: 3}, points[1]["radius"])
	assert.Equal(t, 1, points[2]["radius"])

	data := tensor.New(tensor.Float64, 16)
	for i := range data.Floats() {
		data.Floats()[i] = 100
	}
	for _, p := range points[:2] {
		out, err := node.GenerateError(root, data, p, node.WithSeed(5))
		require.NoError(t, err)
		assert.Equal(t, tensor.Describe(data), tensor.Describe(out))
	}
}

func TestDecodeValue(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "ocr.json")
	require.NoError(t, os.WriteFile(table, []byte(`{"a": [["e"], [1]]}`), 0o600))

	p, err := DecodeParams(map[string]any{
		"table": map[string]any{"ocr_table": table},
		"inner": map[string]any{"filter": map[string]any{
			"type": "OCRError", "params": map[string]any{"table": "$table", "p": 1.0},
		}},
		"std":   2.0,
		"other": map[string]any{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, p["std"])
	assert.Equal(t, map[string]any{"a": 1}, p["other"])

	gate := filters.ApplyWithProbability(params.Key[filters.Filter]("inner"), params.Value(1.0))
	leaf := node.NewLeaf(node.WithDType(tensor.String))
	require.NoError(t, leaf.AddFilter(gate))
	out, err := leaf.GenerateError(tensor.Must(tensor.FromStrings([]string{"a", "b"})), p, node.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "b"}, out.(*tensor.Array).Strings())

	tests := []struct {
		name  string
		value any
	}{
		{name: "gaussian without std", value: map[string]any{"gaussian": map[string]any{"mean": 1}}},
		{name: "table path not a string", value: map[string]any{"ocr_table": 3}},
		{name: "missing table", value: map[string]any{"ocr_table": filepath.Join(dir, "none.json")}},
		{name: "unknown filter field", value: map[string]any{"filter": map[string]any{"type": "Identity", "bogus": 1}}},
		{name: "unknown filter type", value: map[string]any{"filter": map[string]any{"type": "Blurr"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeValue("x", tt.value)
			assert.Error(t, err)
		})
	}
}

func TestSweepRejectsBadGridValue(t *testing.T) {
	doc := strings.Replace(radiusSweepYAML, "{uniform: {min: 1, max: 3}}", "{uniform: {min: 1}}", 1)
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "radius")
}
