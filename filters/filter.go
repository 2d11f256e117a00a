// Package filters defines the Filter contract of the error-generation tree
// together with the probability gate and the general purpose corruptions
// that work on any numeric array.
//
// A filter receives the leaf array and an Env carrying the run's random
// source and parameter resolver. Filters are copy-on-write: they return a
// new array and leave their input untouched. A filter that writes into its
// input instead embeds Mutating, and the leaf hands it a private copy.
package filters

import (
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Filter is one corruption step applied to a leaf array.
type Filter interface {
	// Name identifies the filter in logs and errors.
	Name() string

	// Keys returns the dictionary keys the filter resolves at apply time,
	// in declaration order. Fixed parameters are not listed.
	Keys() []string

	// InPlace reports whether Apply may write into its input.
	InPlace() bool

	// Apply returns the corrupted array. The result must have the shape
	// and dtype of data.
	Apply(data *tensor.Array, env *Env) (*tensor.Array, error)
}

// Constrained is implemented by filters that only accept some dtypes or
// ranks. rank is -1 when it is not known yet.
type Constrained interface {
	Accepts(dtype tensor.DType, rank int) error
}

// CopyOnWrite marks a filter that never writes into its input.
type CopyOnWrite struct{}

// InPlace implements Filter.
func (CopyOnWrite) InPlace() bool { return false }

// Mutating marks a filter that writes into its input.
type Mutating struct{}

// InPlace implements Filter.
func (Mutating) InPlace() bool { return true }

// Numeric restricts a filter to Float64 and Uint8 arrays.
type Numeric struct{}

// Accepts implements Constrained.
func (Numeric) Accepts(dtype tensor.DType, _ int) error {
	if !dtype.IsNumeric() {
		return errors.Newf("requires numeric data, got %s", dtype)
	}
	return nil
}

// Text restricts a filter to String arrays.
type Text struct{}

// Accepts implements Constrained.
func (Text) Accepts(dtype tensor.DType, _ int) error {
	if dtype != tensor.String {
		return errors.Newf("requires string data, got %s", dtype)
	}
	return nil
}

// CheckAccepts runs f's constraint, if any, and wraps a rejection in a
// ShapeError naming the filter.
func CheckAccepts(f Filter, node string, dtype tensor.DType, shape []int) error {
	c, ok := f.(Constrained)
	if !ok {
		return nil
	}
	rank := -1
	if shape != nil {
		rank = len(shape)
	}
	if err := c.Accepts(dtype, rank); err != nil {
		return errors.NewFilterShapeError("filters.Accepts", node, f.Name(), nil, shape, err.Error())
	}
	return nil
}

// acceptsAll runs the constraints of wrapped filters so that a wrapper
// rejects whatever its inner filters would.
func acceptsAll(dtype tensor.DType, rank int, fs ...Filter) error {
	for _, f := range fs {
		c, ok := f.(Constrained)
		if !ok {
			continue
		}
		if err := c.Accepts(dtype, rank); err != nil {
			return errors.Wrapf(err, "wrapped filter %s", f.Name())
		}
	}
	return nil
}

// KeysOf collects the keys of a set of filters without duplicates.
func KeysOf(fs ...Filter) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range fs {
		if f == nil {
			continue
		}
		for _, k := range f.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
