package filters

import (
	"math"

	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// BinaryFilter combines the outputs of two filters element-wise. Both
// filters see their own copy of the input; a runs before b, so the draws
// they consume keep that order.
type BinaryFilter struct {
	CopyOnWrite
	Numeric
	name string
	op   func(x, y float64) float64
	a, b Filter
}

func newBinary(name string, op func(x, y float64) float64, a, b Filter) *BinaryFilter {
	return &BinaryFilter{name: name, op: op, a: a, b: b}
}

// Addition returns a(data) + b(data).
func Addition(a, b Filter) *BinaryFilter {
	return newBinary("Addition", func(x, y float64) float64 { return x + y }, a, b)
}

// Subtraction returns a(data) - b(data).
func Subtraction(a, b Filter) *BinaryFilter {
	return newBinary("Subtraction", func(x, y float64) float64 { return x - y }, a, b)
}

// Multiplication returns a(data) * b(data).
func Multiplication(a, b Filter) *BinaryFilter {
	return newBinary("Multiplication", func(x, y float64) float64 { return x * y }, a, b)
}

// Division returns a(data) / b(data).
func Division(a, b Filter) *BinaryFilter {
	return newBinary("Division", func(x, y float64) float64 { return x / y }, a, b)
}

// Max returns the element-wise maximum of a(data) and b(data).
func Max(a, b Filter) *BinaryFilter {
	return newBinary("Max", math.Max, a, b)
}

// Min returns the element-wise minimum of a(data) and b(data).
func Min(a, b Filter) *BinaryFilter {
	return newBinary("Min", math.Min, a, b)
}

func (f *BinaryFilter) Name() string   { return f.name }
func (f *BinaryFilter) Keys() []string { return KeysOf(f.a, f.b) }

// Accepts implements Constrained: numeric data both operands accept.
func (f *BinaryFilter) Accepts(dtype tensor.DType, rank int) error {
	if err := f.Numeric.Accepts(dtype, rank); err != nil {
		return err
	}
	return acceptsAll(dtype, rank, f.a, f.b)
}

// Operands returns the two combined filters.
func (f *BinaryFilter) Operands() (Filter, Filter) { return f.a, f.b }

func (f *BinaryFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	if f.a == nil || f.b == nil {
		return nil, errors.NewValidationError(f.name, "both operands are required", nil)
	}
	x, err := f.operand(f.a, data, env)
	if err != nil {
		return nil, err
	}
	y, err := f.operand(f.b, data, env)
	if err != nil {
		return nil, err
	}

	out := tensor.New(tensor.Float64, data.Shape()...)
	buf, xs, ys := out.Floats(), x.Floats(), y.Floats()
	for i := range buf {
		buf[i] = f.op(xs[i], ys[i])
	}
	if data.DType() == tensor.Uint8 {
		return out.AsType(tensor.Uint8)
	}
	return out, nil
}

func (f *BinaryFilter) operand(g Filter, data *tensor.Array, env *Env) (*tensor.Array, error) {
	if err := CheckAccepts(g, env.Path(), data.DType(), data.Shape()); err != nil {
		return nil, err
	}
	res, err := applyCopy(g, data, env)
	if err != nil {
		return nil, err
	}
	if !res.SameShape(data) {
		return nil, errors.NewFilterShapeError(f.name, env.Path(), g.Name(), data.Shape(), res.Shape(),
			"operand changed shape")
	}
	return res, nil
}
