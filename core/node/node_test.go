package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/filters/image"
	"github.com/YuminosukeSato/dpemu/filters/text"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// recorder remembers the first value of every array it sees.
type recorder struct {
	filters.CopyOnWrite
	seen *[]float64
}

func (r recorder) Name() string   { return "recorder" }
func (r recorder) Keys() []string { return nil }
func (r recorder) Apply(data *tensor.Array, _ *filters.Env) (*tensor.Array, error) {
	*r.seen = append(*r.seen, data.Floats()[0])
	return data, nil
}

// truncate drops the last element, breaking the shape contract.
type truncate struct{ filters.CopyOnWrite }

func (truncate) Name() string   { return "truncate" }
func (truncate) Keys() []string { return nil }
func (truncate) Apply(data *tensor.Array, _ *filters.Env) (*tensor.Array, error) {
	return tensor.FromFloat64(data.Floats()[:data.Size()-1])
}

func addConstant(key string) filters.Filter {
	return filters.Addition(filters.Identity(), filters.Constant(params.Key[float64](key)))
}

func floats(vals ...float64) *tensor.Array {
	return tensor.Must(tensor.FromFloat64(vals))
}

func TestSeriesAddsConstant(t *testing.T) {
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilter(addConstant("c")))
	root := Must(NewSeries(leaf))

	out, err := root.GenerateError(floats(1, 2, 3), params.Params{"c": 1.0, "seed": 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, out.(*tensor.Array).Floats())
}

func TestLeafWithoutFiltersIsIdentity(t *testing.T) {
	data := floats(1, 2, 3)
	out, err := NewLeaf().GenerateError(data, nil, WithSeed(1))
	require.NoError(t, err)
	assert.Same(t, data, out)
}

func TestShapePreservation(t *testing.T) {
	noise := func() filters.Filter {
		return filters.GaussianNoise(params.Key[float64]("mean"), params.Key[float64]("std"))
	}
	leafWith := func(fs ...filters.Filter) *Leaf {
		l := NewLeaf()
		require.NoError(t, l.AddFilters(fs...))
		return l
	}

	images := tensor.New(tensor.Uint8, 4, 6, 6)
	labels := tensor.New(tensor.Float64, 4)
	ragged := tensor.List{floats(1, 2), floats(1, 2, 3, 4)}

	tests := []struct {
		name string
		root Node
		data tensor.Dataset
	}{
		{"leaf", leafWith(noise()), tensor.New(tensor.Float64, 3, 5)},
		{"series of images", Must(NewSeries(leafWith(image.Rotation(params.Value(30.0)), noise()))), images},
		{"tuple", Must(NewTuple(Must(NewSeries(leafWith(noise()))), NewLeaf())), tensor.Tuple{images, labels}},
		{"tuple series", Must(NewTupleSeries(leafWith(noise()), leafWith(noise()))), tensor.Tuple{images, labels}},
		{"ragged list", Must(NewSeries(leafWith(noise()))), ragged},
		{"nested", Must(NewTuple(Must(NewSeries(Must(NewSeries(leafWith(noise()))))))), tensor.Tuple{images}},
	}

	p := params.Params{"mean": 0.0, "std": 3.0, "seed": 5}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.data.DeepCopy()
			out, err := GenerateError(tt.root, tt.data, p)
			require.NoError(t, err)
			assert.Equal(t, tensor.Describe(tt.data), tensor.Describe(out))
			assert.True(t, tensor.Equal(before, tt.data), "input must be untouched")
		})
	}
}

func TestDeterminism(t *testing.T) {
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilters(
		filters.GaussianNoise(params.Value(0.0), params.Value(1.0)),
		filters.ApplyWithProbability(params.Value[filters.Filter](filters.Constant(params.Value(9.0))), params.Value(0.5)),
	))
	root := Must(NewSeries(leaf))
	data := tensor.New(tensor.Float64, 50, 3)

	a, err := root.GenerateError(data, params.Params{"seed": 7})
	require.NoError(t, err)
	b, err := root.GenerateError(data, params.Params{"seed": 7})
	require.NoError(t, err)
	c, err := root.GenerateError(data, params.Params{}, WithSeed(8))
	require.NoError(t, err)

	assert.True(t, tensor.Equal(a, b))
	assert.False(t, tensor.Equal(a, c))
}

func TestClockSizedSeedReplays(t *testing.T) {
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilter(filters.GaussianNoise(params.Value(0.0), params.Value(1.0))))
	data := tensor.New(tensor.Float64, 8)
	const seed = uint64(1760000000123456789)

	fromParam, err := GenerateError(leaf, data, params.Params{"seed": seed})
	require.NoError(t, err)
	fromOption, err := GenerateError(leaf, data, nil, WithSeed(seed))
	require.NoError(t, err)
	neighbour, err := GenerateError(leaf, data, params.Params{"seed": seed + 1})
	require.NoError(t, err)

	assert.True(t, tensor.Equal(fromParam, fromOption))
	assert.False(t, tensor.Equal(fromParam, neighbour))
}

func TestSiblingsShareOneRandomSequence(t *testing.T) {
	noise := filters.GaussianNoise(params.Value(0.0), params.Value(1.0))
	left, right := NewLeaf(), NewLeaf()
	require.NoError(t, left.AddFilter(noise))
	require.NoError(t, right.AddFilter(noise))
	root := Must(NewTuple(left, right))

	data := tensor.Tuple{tensor.New(tensor.Float64, 5), tensor.New(tensor.Float64, 5)}
	out, err := root.GenerateError(data, nil, WithSeed(3))
	require.NoError(t, err)
	tup := out.(tensor.Tuple)
	assert.False(t, tup[0].(*tensor.Array).Equal(tup[1].(*tensor.Array)))

	// the same draws in one sequence
	env := filters.NewEnv(params.NewRand(3), params.NewResolver(nil), nil)
	first, err := noise.Apply(tensor.New(tensor.Float64, 5), env)
	require.NoError(t, err)
	second, err := noise.Apply(tensor.New(tensor.Float64, 5), env)
	require.NoError(t, err)
	assert.True(t, first.Equal(tup[0].(*tensor.Array)))
	assert.True(t, second.Equal(tup[1].(*tensor.Array)))
}

func TestFilterOrderMatters(t *testing.T) {
	fill := filters.Constant(params.Value(10.0))
	clip := filters.Clip(params.Value(0.0), params.Value(5.0))

	a := NewLeaf()
	require.NoError(t, a.AddFilters(fill, clip))
	b := NewLeaf()
	require.NoError(t, b.AddFilters(clip, fill))

	data := floats(1, 2, 3)
	outA, err := a.GenerateError(data, nil, WithSeed(1))
	require.NoError(t, err)
	outB, err := b.GenerateError(data, nil, WithSeed(1))
	require.NoError(t, err)

	assert.Equal(t, []float64{5, 5, 5}, outA.(*tensor.Array).Floats())
	assert.Equal(t, []float64{10, 10, 10}, outB.(*tensor.Array).Floats())
	assert.Equal(t, []float64{1, 2, 3}, data.Floats())
}

func TestInPlaceFilterNeverTouchesCallerData(t *testing.T) {
	leaf := NewLeaf(WithReshape(2, 2))
	require.NoError(t, leaf.AddFilter(filters.Clip(params.Value(0.0), params.Value(2.0))))
	data := floats(1, 2, 3, 4)

	out, err := leaf.GenerateError(data, nil, WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 2}, out.(*tensor.Array).Floats())
	assert.Equal(t, []int{4}, out.(*tensor.Array).Shape())
	assert.Equal(t, []float64{1, 2, 3, 4}, data.Floats())
}

func TestReshape(t *testing.T) {
	img := NewLeaf(WithReshape(28, 28), WithName("digit"))
	require.NoError(t, img.AddFilter(image.Rotation(params.Key[float64]("angle"))))
	root := Must(NewSeries(img))

	out, err := root.GenerateError(tensor.New(tensor.Float64, 3, 784), params.Params{"angle": 45.0, "seed": 1})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 784}, out.(*tensor.Array).Shape())

	_, err = root.GenerateError(tensor.New(tensor.Float64, 3, 780), params.Params{"angle": 45.0, "seed": 1})
	var shapeErr *errors.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "series/[0]/digit", shapeErr.Node)
	assert.Equal(t, []int{28, 28}, shapeErr.Expected)
}

func TestTupleArityMismatch(t *testing.T) {
	root := Must(NewTuple(NewLeaf(), NewLeaf()))
	_, err := root.GenerateError(tensor.Tuple{floats(1)}, nil, WithSeed(1))

	var structErr *errors.StructureError
	require.True(t, errors.As(err, &structErr))
	assert.Equal(t, 2, structErr.Expected)
	assert.Equal(t, 1, structErr.Got)

	_, err = root.GenerateError(floats(1, 2), nil, WithSeed(1))
	assert.True(t, errors.As(err, &structErr))
}

func TestSingleOwnership(t *testing.T) {
	leaf := NewLeaf()
	_, err := NewSeries(leaf)
	require.NoError(t, err)

	_, err = NewSeries(leaf)
	var structErr *errors.StructureError
	require.True(t, errors.As(err, &structErr))
	assert.Contains(t, structErr.Reason, "already belongs")

	outer := Must(NewTuple())
	inner := Must(NewTuple())
	require.NoError(t, outer.AddChild(inner))
	err = inner.AddChild(outer)
	require.True(t, errors.As(err, &structErr))
	assert.Contains(t, structErr.Reason, "cycle")

	err = outer.AddChild(nil)
	assert.True(t, errors.As(err, &structErr))

	_, err = GenerateError(inner, tensor.Tuple{}, nil)
	assert.True(t, errors.As(err, &structErr), "only the root may generate")
}

func TestAddFilterFailsFast(t *testing.T) {
	leaf := NewLeaf(WithDType(tensor.Float64))

	var structErr *errors.StructureError
	assert.True(t, errors.As(leaf.AddFilter(nil), &structErr))

	err := leaf.AddFilter(text.OCRError(params.Key[text.OCRTable]("table"), params.Value(1.0)))
	require.True(t, errors.As(err, &structErr))
	assert.Contains(t, err.Error(), "OCRError")

	flat := NewLeaf(WithDType(tensor.Uint8), WithReshape(10))
	assert.Error(t, flat.AddFilter(image.GaussianBlur(params.Value(1.0))), "blur needs rank 2 or 3")

	assert.NoError(t, leaf.AddFilter(filters.GaussianNoise(params.Value(0.0), params.Value(1.0))))
	assert.Len(t, leaf.Filters(), 1)
}

func TestAddFilterChecksWrappedFilters(t *testing.T) {
	noise := filters.GaussianNoise(params.Value(0.0), params.Value(1.0))
	ocr := text.OCRError(params.Key[text.OCRTable]("table"), params.Value(1.0))

	tests := []struct {
		name   string
		dtype  tensor.DType
		filter filters.Filter
	}{
		{"gate around numeric filter on text", tensor.String,
			filters.ApplyWithProbability(params.Value[filters.Filter](noise), params.Value(1.0))},
		{"per element gate around text filter on numbers", tensor.Float64,
			filters.ApplyWithProbability(params.Value[filters.Filter](ocr), params.Value(1.0),
				filters.WithGateMode(filters.PerElement))},
		{"binary operand rejects", tensor.Float64, filters.Addition(filters.Identity(), ocr)},
		{"converted inner rejects", tensor.Uint8, filters.ModifyAsDataType(tensor.Float64, ocr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaf := NewLeaf(WithDType(tt.dtype))
			err := leaf.AddFilter(tt.filter)
			var structErr *errors.StructureError
			require.True(t, errors.As(err, &structErr), "got %v", err)
			assert.Empty(t, leaf.Filters())
		})
	}

	// 鍵で渡す内側フィルタは適用時まで分からない
	leaf := NewLeaf(WithDType(tensor.String))
	assert.NoError(t, leaf.AddFilter(
		filters.ApplyWithProbability(params.Key[filters.Filter]("inner"), params.Value(1.0))))
	assert.NoError(t, leaf.AddFilter(
		filters.ApplyWithProbability(params.Value[filters.Filter](ocr), params.Value(1.0))))
}

func TestFilterMustPreserveShape(t *testing.T) {
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilter(truncate{}))
	_, err := leaf.GenerateError(floats(1, 2, 3), nil, WithSeed(1))

	var shapeErr *errors.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "truncate", shapeErr.Filter)
}

func TestWrongDTypeAtGenerate(t *testing.T) {
	leaf := NewLeaf(WithDType(tensor.Uint8))
	_, err := leaf.GenerateError(floats(1), nil, WithSeed(1))
	var shapeErr *errors.ShapeError
	assert.True(t, errors.As(err, &shapeErr))

	series := Must(NewSeries(NewLeaf()))
	_, err = series.GenerateError(tensor.Scalar(1), nil, WithSeed(1))
	assert.True(t, errors.As(err, &shapeErr), "0-d arrays have no primary axis")
}

func TestMissingParameterFailsBeforeCorruption(t *testing.T) {
	var seen []float64
	first := NewLeaf(WithName("first"))
	require.NoError(t, first.AddFilter(recorder{seen: &seen}))
	second := NewLeaf(WithName("second"))
	require.NoError(t, second.AddFilter(filters.GaussianNoise(params.Key[float64]("mean"), params.Key[float64]("std"))))
	root := Must(NewTuple(first, second))

	data := tensor.Tuple{floats(1), floats(2)}
	_, err := root.GenerateError(data, params.Params{"mean": 0.0}, WithSeed(1))

	var missing *errors.MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "std", missing.Key)
	assert.Equal(t, "GaussianNoise", missing.Filter)
	assert.Contains(t, err.Error(), "tuple/[1]/second")
	assert.Empty(t, seen, "no filter may run before the check")

	_, err = root.GenerateError(data, params.Params{"mean": 0.0}, WithSeed(1), WithoutPreflight())
	require.True(t, errors.As(err, &missing))
	assert.Len(t, seen, 1)

	assert.Equal(t, []string{"mean", "std"}, Keys(root))
}

func TestTupleSeriesOrder(t *testing.T) {
	var seen []float64
	a, b := NewLeaf(), NewLeaf()
	require.NoError(t, a.AddFilter(recorder{seen: &seen}))
	require.NoError(t, b.AddFilter(recorder{seen: &seen}))
	root := Must(NewTupleSeries(a, b))

	out, err := root.GenerateError(tensor.Tuple{floats(1, 2, 3), floats(10, 20, 30)}, nil, WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10, 2, 20, 3, 30}, seen)
	assert.Equal(t, []float64{10, 20, 30}, out.(tensor.Tuple)[1].(*tensor.Array).Floats())

	_, err = root.GenerateError(tensor.Tuple{floats(1, 2), floats(1)}, nil, WithSeed(1))
	var shapeErr *errors.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestOCRScenario(t *testing.T) {
	table := text.OCRTable{'a': {Options: []string{"e"}, Weights: []float64{1}}}
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilter(filters.ApplyWithProbability(params.Key[filters.Filter]("ocr"), params.Key[float64]("p"))))
	root := Must(NewSeries(leaf))

	vals := make([]string, 10)
	for i := range vals {
		vals[i] = "a"
	}
	data := tensor.Must(tensor.FromStrings(vals, 10, 1))
	ocr := text.OCRError(params.Key[text.OCRTable]("ocr_params"), params.Key[float64]("ocr_p"))

	for _, tt := range []struct {
		p    float64
		want string
	}{{1.0, "e"}, {0.0, "a"}} {
		out, err := root.GenerateError(data, params.Params{"ocr_params": table, "ocr_p": 1.0, "ocr": ocr, "p": tt.p, "seed": 1})
		require.NoError(t, err)
		arr := out.(*tensor.Array)
		assert.Equal(t, []int{10, 1}, arr.Shape())
		for _, s := range arr.Strings() {
			assert.Equal(t, tt.want, s)
		}
	}
}

func TestNamedSeriesMapping(t *testing.T) {
	names, data := tensor.NamedTuple(map[string]tensor.Dataset{
		"humidity":    floats(40, 41),
		"temperature": floats(20, 21),
	})
	drift := NewLeaf()
	require.NoError(t, drift.AddFilter(filters.Addition(filters.Identity(), filters.Constant(params.Value(1.0)))))
	root := Must(NewTuple(NewLeaf(), drift))

	out, err := root.GenerateError(data, nil, WithSeed(1))
	require.NoError(t, err)
	m, err := out.(tensor.Tuple).ToMap(names)
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 41}, m["humidity"].(*tensor.Array).Floats())
	assert.Equal(t, []float64{21, 22}, m["temperature"].(*tensor.Array).Floats())
}

func TestLogging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	leaf := NewLeaf()
	require.NoError(t, leaf.AddFilter(filters.Identity()))
	root := Must(NewSeries(leaf))

	_, err := root.GenerateError(floats(1, 2), nil, WithSeed(4), WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, logger.ContainsField(log.NodeKey, "series/[1]/leaf"))
	assert.True(t, logger.ContainsField(log.FilterKey, "Identity"))
	assert.True(t, logger.ContainsField(log.RandomSeedKey, 4.0))
	assert.True(t, logger.ContainsMessage("error generation finished"))
}

func TestClockSeedIsLogged(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	_, err := NewLeaf().GenerateError(floats(1), nil, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("seeding from the clock"))
}

func TestDescribe(t *testing.T) {
	leaf := NewLeaf(WithReshape(28, 28))
	require.NoError(t, leaf.AddFilters(
		filters.GaussianNoise(params.Key[float64]("mean"), params.Key[float64]("std")),
		filters.Clip(params.Value(0.0), params.Value(255.0)),
	))
	root := Must(NewTuple(Must(NewSeries(leaf)), NewLeaf()))

	out := Describe(root)
	assert.Contains(t, out, "tuple")
	assert.Contains(t, out, "leaf reshape=[28 28]")
	assert.Contains(t, out, "GaussianNoise [mean std]")
	assert.Contains(t, out, "Clip (in-place)")
}

func TestWalk(t *testing.T) {
	series := Must(NewSeries(NewLeaf(WithName("digit"))))
	root := Must(NewTuple(series, NewLeaf(WithName("label"))))

	var paths []string
	require.NoError(t, Walk(root, func(path string, _ Node) error {
		paths = append(paths, path)
		return nil
	}))
	assert.Equal(t, []string{
		"tuple",
		"tuple/[0]/series",
		"tuple/[0]/series/[*]/digit",
		"tuple/[1]/label",
	}, paths)

	stop := errors.New("stop")
	visited := 0
	err := Walk(root, func(string, Node) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}
