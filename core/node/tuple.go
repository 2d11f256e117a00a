package node

import (
	"fmt"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Tuple applies its i-th child to the i-th element of a tuple dataset.
type Tuple struct {
	base
	children []Node
}

// NewTuple returns a Tuple owning children in positional order.
func NewTuple(children ...Node) (*Tuple, error) {
	t := &Tuple{}
	for _, c := range children {
		if err := t.AddChild(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddChild appends a positional child.
func (t *Tuple) AddChild(child Node) error {
	if err := attach("Tuple.AddChild", t, child); err != nil {
		return err
	}
	t.children = append(t.children, child)
	return nil
}

func (t *Tuple) Kind() Kind       { return KindTuple }
func (t *Tuple) Name() string     { return t.label(KindTuple) }
func (t *Tuple) Children() []Node { return append([]Node(nil), t.children...) }

// GenerateError implements Node.
func (t *Tuple) GenerateError(data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error) {
	return GenerateError(t, data, p, opts...)
}

func (t *Tuple) expects(path string, data tensor.Dataset) error {
	return expectTuple("Tuple.apply", path, len(t.children), data)
}

func (t *Tuple) apply(data tensor.Dataset, env *filters.Env) (tensor.Dataset, error) {
	in := data.(tensor.Tuple)
	out := make(tensor.Tuple, len(in))
	for i, c := range t.children {
		env.Push(fmt.Sprintf("[%d]", i))
		res, err := run(c, in[i], env)
		env.Pop()
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func expectTuple(op, path string, arity int, data tensor.Dataset) error {
	tup, ok := data.(tensor.Tuple)
	if !ok {
		return errors.NewStructureError(op, path,
			fmt.Sprintf("expected a tuple, got %s", tensor.Describe(data)))
	}
	if len(tup) != arity {
		return errors.NewArityError(op, path, arity, len(tup))
	}
	for i, e := range tup {
		if e == nil {
			return errors.NewStructureError(op, path, fmt.Sprintf("tuple element %d is nil", i))
		}
	}
	return nil
}

// TupleSeries walks a tuple of equally long sequences, e.g. (inputs,
// labels), one step at a time: at step t the i-th child is applied to the
// t-th element of the i-th sequence.
type TupleSeries struct {
	base
	children []Node
}

// NewTupleSeries returns a TupleSeries owning children in positional order.
func NewTupleSeries(children ...Node) (*TupleSeries, error) {
	t := &TupleSeries{}
	for _, c := range children {
		if err := t.AddChild(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddChild appends a positional child.
func (t *TupleSeries) AddChild(child Node) error {
	if err := attach("TupleSeries.AddChild", t, child); err != nil {
		return err
	}
	t.children = append(t.children, child)
	return nil
}

func (t *TupleSeries) Kind() Kind       { return KindTupleSeries }
func (t *TupleSeries) Name() string     { return t.label(KindTupleSeries) }
func (t *TupleSeries) Children() []Node { return append([]Node(nil), t.children...) }

// GenerateError implements Node.
func (t *TupleSeries) GenerateError(data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error) {
	return GenerateError(t, data, p, opts...)
}

func (t *TupleSeries) expects(path string, data tensor.Dataset) error {
	if err := expectTuple("TupleSeries.apply", path, len(t.children), data); err != nil {
		return err
	}
	tup := data.(tensor.Tuple)
	n := -1
	for i, e := range tup {
		if err := expectSequence("TupleSeries.apply", path, e); err != nil {
			return err
		}
		l := seqLen(e)
		if n >= 0 && l != n {
			return errors.NewFilterShapeError("TupleSeries.apply", path, "", []int{n}, []int{l},
				fmt.Sprintf("sequence %d has a different length", i))
		}
		n = l
	}
	return nil
}

func (t *TupleSeries) apply(data tensor.Dataset, env *filters.Env) (tensor.Dataset, error) {
	in := data.(tensor.Tuple)
	if len(in) == 0 {
		return tensor.Tuple{}, nil
	}
	cols := make([][]tensor.Dataset, len(in))
	for i, e := range in {
		elems, err := elements(env.Path(), e)
		if err != nil {
			return nil, err
		}
		cols[i] = elems
	}

	steps := len(cols[0])
	outCols := make([][]tensor.Dataset, len(in))
	for i := range outCols {
		outCols[i] = make([]tensor.Dataset, steps)
	}
	for step := 0; step < steps; step++ {
		for i, c := range t.children {
			env.Push(fmt.Sprintf("[%d][%d]", step, i))
			res, err := run(c, cols[i][step], env)
			env.Pop()
			if err != nil {
				return nil, err
			}
			outCols[i][step] = res
		}
	}

	out := make(tensor.Tuple, len(in))
	for i := range in {
		if steps == 0 {
			out[i] = in[i]
			continue
		}
		res, err := assemble(env.Path(), in[i], outCols[i])
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func seqLen(d tensor.Dataset) int {
	switch x := d.(type) {
	case *tensor.Array:
		return x.Len()
	case tensor.List:
		return len(x)
	}
	return 0
}
