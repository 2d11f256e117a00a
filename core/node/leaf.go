package node

import (
	"context"
	"fmt"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// Leaf wraps one array and applies an ordered chain of filters to it.
type Leaf struct {
	base
	reshape []int
	dtype   tensor.DType
	typed   bool
	filters []filters.Filter
}

// LeafOption configures a Leaf.
type LeafOption func(*Leaf)

// WithReshape makes the leaf reshape its array before running the filters
// and restore the original shape afterwards, e.g. a flat 784-vector to a
// 28x28 image. One dimension may be -1.
func WithReshape(shape ...int) LeafOption {
	return func(l *Leaf) { l.reshape = append([]int(nil), shape...) }
}

// WithDType declares the dtype the leaf accepts. Filters that cannot
// handle it are rejected by AddFilter, and data of another dtype fails
// with a ShapeError.
func WithDType(dtype tensor.DType) LeafOption {
	return func(l *Leaf) {
		l.dtype = dtype
		l.typed = true
	}
}

// WithName labels the leaf in error paths and logs.
func WithName(name string) LeafOption {
	return func(l *Leaf) { l.name = name }
}

// NewLeaf returns a leaf without filters. Such a leaf returns its input
// unchanged.
func NewLeaf(opts ...LeafOption) *Leaf {
	l := &Leaf{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Leaf) Kind() Kind       { return KindLeaf }
func (l *Leaf) Name() string     { return l.label(KindLeaf) }
func (l *Leaf) Children() []Node { return nil }

// Filters returns the attached filters in application order.
func (l *Leaf) Filters() []filters.Filter {
	return append([]filters.Filter(nil), l.filters...)
}

// AddFilter appends f to the chain. It fails with a StructureError when f
// is nil or cannot handle the dtype and rank the leaf declares.
func (l *Leaf) AddFilter(f filters.Filter) error {
	if f == nil {
		return errors.NewStructureError("Leaf.AddFilter", l.Name(), "filter is nil")
	}
	if l.typed {
		var shape []int
		if l.reshape != nil && !contains(l.reshape, -1) {
			shape = l.reshape
		}
		if err := filters.CheckAccepts(f, l.Name(), l.dtype, shape); err != nil {
			var shapeErr *errors.ShapeError
			reason := err.Error()
			if errors.As(err, &shapeErr) {
				reason = shapeErr.Reason
			}
			return errors.NewStructureError("Leaf.AddFilter", l.Name(),
				fmt.Sprintf("filter %q cannot be hosted: %s", f.Name(), reason))
		}
	}
	l.filters = append(l.filters, f)
	return nil
}

// AddFilters appends several filters, stopping at the first rejection.
func (l *Leaf) AddFilters(fs ...filters.Filter) error {
	for _, f := range fs {
		if err := l.AddFilter(f); err != nil {
			return err
		}
	}
	return nil
}

// GenerateError implements Node.
func (l *Leaf) GenerateError(data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error) {
	return GenerateError(l, data, p, opts...)
}

func (l *Leaf) expects(path string, data tensor.Dataset) error {
	arr, ok := data.(*tensor.Array)
	if !ok {
		return errors.NewStructureError("Leaf.apply", path,
			fmt.Sprintf("leaf expects an array, got %s", tensor.Describe(data)))
	}
	if l.typed && arr.DType() != l.dtype {
		return errors.NewFilterShapeError("Leaf.apply", path, "", nil, arr.Shape(),
			fmt.Sprintf("leaf expects dtype %s, got %s", l.dtype, arr.DType()))
	}
	return nil
}

func (l *Leaf) apply(data tensor.Dataset, env *filters.Env) (tensor.Dataset, error) {
	in := data.(*tensor.Array)
	if len(l.filters) == 0 {
		return in, nil
	}
	path := env.Path()

	work := in
	if l.reshape != nil {
		r, err := in.Reshape(l.reshape...)
		if err != nil {
			return nil, errors.NewFilterShapeError("Leaf.apply", path, "", l.reshape, in.Shape(),
				"element count is incompatible with the reshape")
		}
		work = r
	}

	for _, f := range l.filters {
		if err := filters.CheckAccepts(f, path, work.DType(), work.Shape()); err != nil {
			return nil, err
		}
		if f.InPlace() && work.SharesStorage(in) {
			work = work.Clone()
		}
		if env.Logger.Enabled(context.Background(), log.LevelDebug) {
			env.Logger.Debug("applying filter",
				log.NodeKey, path,
				log.FilterKey, f.Name(),
				log.ShapeKey, work.Shape(),
				log.DTypeKey, work.DType().String(),
			)
		}
		res, err := f.Apply(work, env)
		if err != nil {
			return nil, errors.Wrapf(err, "node %q: filter %q", path, f.Name())
		}
		if res == nil || !res.SameShape(work) || res.DType() != work.DType() {
			got := []int(nil)
			if res != nil {
				got = res.Shape()
			}
			return nil, errors.NewFilterShapeError("Leaf.apply", path, f.Name(), work.Shape(), got,
				"filter must preserve shape and dtype")
		}
		work = res
	}

	if l.reshape != nil {
		back, err := work.Reshape(in.Shape()...)
		if err != nil {
			return nil, err
		}
		work = back
	}
	return work, nil
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
