// Package tensor defines the datasets the error-generation tree walks:
// dense n-dimensional arrays and the Tuple and List containers that nest
// them.
//
// Arrays are row-major. Numeric arrays (Float64, Uint8) store their values
// as float64; Uint8 arrays are saturated (rounded and clipped to [0, 255])
// whenever values are written through Set or Saturate, so filters can
// compute in floating point and convert once at the end.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// DType is the element type family of an Array.
type DType int

const (
	Float64 DType = iota
	Uint8
	String
)

func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Uint8:
		return "uint8"
	case String:
		return "string"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// ParseDType parses the names printed by DType.String.
func ParseDType(s string) (DType, error) {
	switch s {
	case "float64":
		return Float64, nil
	case "uint8":
		return Uint8, nil
	case "string":
		return String, nil
	}
	return Float64, errors.NewValidationError("dtype", "must be float64, uint8 or string", s)
}

// IsNumeric reports whether values are stored in the float64 buffer.
func (d DType) IsNumeric() bool { return d == Float64 || d == Uint8 }

// Array is an n-dimensional row-major array.
type Array struct {
	shape []int
	dtype DType
	num   []float64
	str   []string
}

// New returns a zero-filled array.
func New(dtype DType, shape ...int) *Array {
	n := sizeOf(shape)
	a := &Array{shape: append([]int(nil), shape...), dtype: dtype}
	if dtype == String {
		a.str = make([]string, n)
	} else {
		a.num = make([]float64, n)
	}
	return a
}

// FromFloat64 copies values into a Float64 array. Without a shape the array
// is one-dimensional.
func FromFloat64(values []float64, shape ...int) (*Array, error) {
	shape, err := checkShape("tensor.FromFloat64", len(values), shape)
	if err != nil {
		return nil, err
	}
	return &Array{shape: shape, dtype: Float64, num: append([]float64(nil), values...)}, nil
}

// FromUint8 copies values into a Uint8 array.
func FromUint8(values []uint8, shape ...int) (*Array, error) {
	shape, err := checkShape("tensor.FromUint8", len(values), shape)
	if err != nil {
		return nil, err
	}
	num := make([]float64, len(values))
	for i, v := range values {
		num[i] = float64(v)
	}
	return &Array{shape: shape, dtype: Uint8, num: num}, nil
}

// FromStrings copies values into a String array.
func FromStrings(values []string, shape ...int) (*Array, error) {
	shape, err := checkShape("tensor.FromStrings", len(values), shape)
	if err != nil {
		return nil, err
	}
	return &Array{shape: shape, dtype: String, str: append([]string(nil), values...)}, nil
}

// FromDense copies a gonum matrix into a two-dimensional Float64 array.
func FromDense(m mat.Matrix) *Array {
	r, c := m.Dims()
	a := New(Float64, r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.num[i*c+j] = m.At(i, j)
		}
	}
	return a
}

// Scalar returns a zero-dimensional Float64 array holding v.
func Scalar(v float64) *Array {
	return &Array{shape: []int{}, dtype: Float64, num: []float64{v}}
}

// Must panics if err is non-nil. It is intended for literals in tests and
// examples.
func Must(a *Array, err error) *Array {
	if err != nil {
		panic(err)
	}
	return a
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func checkShape(op string, n int, shape []int) ([]int, error) {
	if len(shape) == 0 {
		return []int{n}, nil
	}
	for _, d := range shape {
		if d < 0 {
			return nil, errors.NewShapeError(op, nil, shape, "negative dimension")
		}
	}
	if sizeOf(shape) != n {
		return nil, errors.NewShapeError(op, nil, shape,
			fmt.Sprintf("shape holds %d elements, got %d values", sizeOf(shape), n))
	}
	return append([]int(nil), shape...), nil
}

// Kind implements Dataset.
func (a *Array) Kind() Kind { return KindArray }

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.shape) }

// Len returns the length of the primary axis, or 0 for a scalar.
func (a *Array) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

// Size returns the total number of elements.
func (a *Array) Size() int { return sizeOf(a.shape) }

// DType returns the element type family.
func (a *Array) DType() DType { return a.dtype }

// Floats returns the numeric backing buffer. Writes through it bypass
// saturation; call Saturate afterwards for Uint8 arrays.
func (a *Array) Floats() []float64 { return a.num }

// Strings returns the string backing buffer.
func (a *Array) Strings() []string { return a.str }

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("tensor: index %v has %d dimensions, array has %d", idx, len(idx), len(a.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, a.shape))
		}
		off = off*a.shape[i] + x
	}
	return off
}

// At returns the numeric element at idx.
func (a *Array) At(idx ...int) float64 { return a.num[a.offset(idx)] }

// Set stores v at idx, saturating it for Uint8 arrays.
func (a *Array) Set(v float64, idx ...int) {
	if a.dtype == Uint8 {
		v = SaturateUint8(v)
	}
	a.num[a.offset(idx)] = v
}

// StringAt returns the string element at idx.
func (a *Array) StringAt(idx ...int) string { return a.str[a.offset(idx)] }

// SetString stores s at idx.
func (a *Array) SetString(s string, idx ...int) { a.str[a.offset(idx)] = s }

// SaturateUint8 rounds v half away from zero and clips it to [0, 255].
// NaN becomes 0.
func SaturateUint8(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return errors.ClipValue(math.Round(v), 0, 255)
}

// Saturate rounds and clips every element of a Uint8 array in place.
func (a *Array) Saturate() {
	if a.dtype != Uint8 {
		return
	}
	for i, v := range a.num {
		a.num[i] = SaturateUint8(v)
	}
}

// Reshape returns a view with a new shape sharing storage with a. One
// dimension may be -1 and is inferred.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	shape = append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d < 0:
			return nil, errors.NewShapeError("tensor.Reshape", a.Shape(), shape, "invalid dimension")
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || a.Size()%known != 0 {
			return nil, errors.NewShapeError("tensor.Reshape", a.Shape(), shape,
				fmt.Sprintf("cannot infer dimension for %d elements", a.Size()))
		}
		shape[infer] = a.Size() / known
	}
	if sizeOf(shape) != a.Size() {
		return nil, errors.NewShapeError("tensor.Reshape", a.Shape(), shape,
			fmt.Sprintf("element count mismatch: %d vs %d", a.Size(), sizeOf(shape)))
	}
	return &Array{shape: shape, dtype: a.dtype, num: a.num, str: a.str}, nil
}

// Index returns a copy of the i-th slice along the primary axis.
func (a *Array) Index(i int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, errors.NewShapeError("tensor.Index", nil, a.Shape(), "cannot index a 0-d array")
	}
	if i < 0 || i >= a.shape[0] {
		return nil, errors.NewShapeError("tensor.Index", nil, a.Shape(),
			fmt.Sprintf("index %d out of range", i))
	}
	inner := a.shape[1:]
	n := sizeOf(inner)
	out := &Array{shape: append([]int(nil), inner...), dtype: a.dtype}
	if a.dtype == String {
		out.str = append([]string(nil), a.str[i*n:(i+1)*n]...)
	} else {
		out.num = append([]float64(nil), a.num[i*n:(i+1)*n]...)
	}
	return out, nil
}

// Stack joins equally shaped arrays of one dtype along a new primary axis.
func Stack(parts []*Array) (*Array, error) {
	if len(parts) == 0 {
		return nil, errors.NewShapeError("tensor.Stack", nil, nil, "no arrays to stack")
	}
	first := parts[0]
	shape := append([]int{len(parts)}, first.shape...)
	out := New(first.dtype, shape...)
	n := first.Size()
	for i, p := range parts {
		if p.dtype != first.dtype {
			return nil, errors.NewShapeError("tensor.Stack", first.Shape(), p.Shape(),
				fmt.Sprintf("part %d has dtype %s, want %s", i, p.dtype, first.dtype))
		}
		if !sameShape(p.shape, first.shape) {
			return nil, errors.NewShapeError("tensor.Stack", first.Shape(), p.Shape(),
				fmt.Sprintf("part %d has a different shape", i))
		}
		if first.dtype == String {
			copy(out.str[i*n:], p.str)
		} else {
			copy(out.num[i*n:], p.num)
		}
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SameShape reports whether a and b have identical shapes.
func (a *Array) SameShape(b *Array) bool { return sameShape(a.shape, b.shape) }

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	out := &Array{shape: append([]int(nil), a.shape...), dtype: a.dtype}
	if a.num != nil {
		out.num = append([]float64(nil), a.num...)
	}
	if a.str != nil {
		out.str = append([]string(nil), a.str...)
	}
	return out
}

// DeepCopy implements Dataset.
func (a *Array) DeepCopy() Dataset { return a.Clone() }

// AsType converts between numeric dtypes. Converting to Uint8 saturates.
func (a *Array) AsType(dt DType) (*Array, error) {
	if dt == a.dtype {
		return a.Clone(), nil
	}
	if !dt.IsNumeric() || !a.dtype.IsNumeric() {
		return nil, errors.NewValueError("tensor.AsType",
			fmt.Sprintf("cannot convert %s to %s", a.dtype, dt))
	}
	out := a.Clone()
	out.dtype = dt
	out.Saturate()
	return out, nil
}

// Equal reports whether a and b have the same dtype, shape and elements.
// NaN compares equal to NaN.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || !sameShape(a.shape, b.shape) {
		return false
	}
	if a.dtype == String {
		for i := range a.str {
			if a.str[i] != b.str[i] {
				return false
			}
		}
		return true
	}
	for i := range a.num {
		x, y := a.num[i], b.num[i]
		if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns the largest absolute element-wise difference between
// two numeric arrays of the same shape.
func (a *Array) MaxAbsDiff(b *Array) (float64, error) {
	if !sameShape(a.shape, b.shape) {
		return 0, errors.NewShapeError("tensor.MaxAbsDiff", a.Shape(), b.Shape(), "shapes differ")
	}
	if !a.dtype.IsNumeric() || !b.dtype.IsNumeric() {
		return 0, errors.NewValueError("tensor.MaxAbsDiff", "arrays must be numeric")
	}
	maxDiff := 0.0
	for i := range a.num {
		if d := math.Abs(a.num[i] - b.num[i]); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff, nil
}

// SharesStorage reports whether a and b are views of the same buffer.
func (a *Array) SharesStorage(b *Array) bool {
	if len(a.num) > 0 && len(b.num) > 0 {
		return &a.num[0] == &b.num[0]
	}
	if len(a.str) > 0 && len(b.str) > 0 {
		return &a.str[0] == &b.str[0]
	}
	return false
}

// ToDense copies a numeric array of rank 1 (as a column) or rank 2 into a
// gonum matrix.
func (a *Array) ToDense() (*mat.Dense, error) {
	if !a.dtype.IsNumeric() {
		return nil, errors.NewValueError("tensor.ToDense", "array must be numeric")
	}
	switch len(a.shape) {
	case 1:
		if a.shape[0] == 0 {
			return nil, errors.ErrEmptyData
		}
		return mat.NewDense(a.shape[0], 1, append([]float64(nil), a.num...)), nil
	case 2:
		if a.Size() == 0 {
			return nil, errors.ErrEmptyData
		}
		return mat.NewDense(a.shape[0], a.shape[1], append([]float64(nil), a.num...)), nil
	default:
		return nil, errors.NewShapeError("tensor.ToDense", nil, a.Shape(), "rank must be 1 or 2")
	}
}

func (a *Array) String() string {
	if a.dtype == String {
		return fmt.Sprintf("Array(%s, %v, %q)", a.dtype, a.shape, a.str)
	}
	return fmt.Sprintf("Array(%s, %v, %v)", a.dtype, a.shape, a.num)
}
