package node

import (
	"fmt"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Series applies its child independently to every element along the
// primary axis of an array, or to every element of a List.
type Series struct {
	base
	child Node
}

// NewSeries returns a Series owning child.
func NewSeries(child Node) (*Series, error) {
	s := &Series{}
	if err := attach("NewSeries", s, child); err != nil {
		return nil, err
	}
	s.child = child
	return s, nil
}

func (s *Series) Kind() Kind       { return KindSeries }
func (s *Series) Name() string     { return s.label(KindSeries) }
func (s *Series) Children() []Node { return []Node{s.child} }

// GenerateError implements Node.
func (s *Series) GenerateError(data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error) {
	return GenerateError(s, data, p, opts...)
}

func (s *Series) expects(path string, data tensor.Dataset) error {
	return expectSequence("Series.apply", path, data)
}

func (s *Series) apply(data tensor.Dataset, env *filters.Env) (tensor.Dataset, error) {
	elems, err := elements(env.Path(), data)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return data, nil
	}
	out := make([]tensor.Dataset, len(elems))
	for i, e := range elems {
		env.Push(fmt.Sprintf("[%d]", i))
		out[i], err = run(s.child, e, env)
		env.Pop()
		if err != nil {
			return nil, err
		}
	}
	return assemble(env.Path(), data, out)
}

func expectSequence(op, path string, data tensor.Dataset) error {
	switch d := data.(type) {
	case *tensor.Array:
		if d.NDim() == 0 {
			return errors.NewFilterShapeError(op, path, "", nil, d.Shape(), "a 0-d array has no primary axis")
		}
		return nil
	case tensor.List:
		return nil
	}
	return errors.NewStructureError(op, path,
		fmt.Sprintf("expected an array or a list, got %s", tensor.Describe(data)))
}

// elements splits an array along its primary axis or returns the items of
// a list.
func elements(path string, data tensor.Dataset) ([]tensor.Dataset, error) {
	switch d := data.(type) {
	case *tensor.Array:
		out := make([]tensor.Dataset, d.Len())
		for i := range out {
			e, err := d.Index(i)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case tensor.List:
		return append([]tensor.Dataset(nil), d...), nil
	}
	return nil, errors.NewStructureError("node.elements", path, "dataset is not a sequence")
}

// assemble rebuilds a dataset of the same kind as like from its elements.
func assemble(path string, like tensor.Dataset, parts []tensor.Dataset) (tensor.Dataset, error) {
	if _, ok := like.(tensor.List); ok {
		return tensor.List(parts), nil
	}
	arrs := make([]*tensor.Array, len(parts))
	for i, p := range parts {
		a, ok := p.(*tensor.Array)
		if !ok {
			return nil, errors.NewStructureError("node.assemble", path, "element is no longer an array")
		}
		arrs[i] = a
	}
	out, err := tensor.Stack(arrs)
	if err != nil {
		return nil, errors.Wrapf(err, "node %q", path)
	}
	return out, nil
}
