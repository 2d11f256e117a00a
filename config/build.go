package config

import (
	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/node"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/preprocessing"
	"github.com/YuminosukeSato/dpemu/runner"
)

// Build constructs the tree n describes.
func (n NodeSpec) Build() (node.Node, error) {
	return n.build("tree")
}

func (n NodeSpec) build(path string) (node.Node, error) {
	var (
		out node.Node
		err error
	)
	switch n.Kind {
	case "leaf":
		out, err = n.buildLeaf(path)
	case "series":
		if n.Child == nil {
			return nil, errors.NewValidationError(path, "a series has exactly one child", n.Kind)
		}
		var child node.Node
		if child, err = n.Child.build(path + ".child"); err != nil {
			return nil, err
		}
		var s *node.Series
		if s, err = node.NewSeries(child); err == nil {
			s.SetName(n.Name)
			out = s
		}
	case "tuple":
		var children []node.Node
		if children, err = n.buildChildren(path); err != nil {
			return nil, err
		}
		var t *node.Tuple
		if t, err = node.NewTuple(children...); err == nil {
			t.SetName(n.Name)
			out = t
		}
	case "tuple_series":
		var children []node.Node
		if children, err = n.buildChildren(path); err != nil {
			return nil, err
		}
		var t *node.TupleSeries
		if t, err = node.NewTupleSeries(children...); err == nil {
			t.SetName(n.Name)
			out = t
		}
	default:
		return nil, errors.NewValidationError(path+".kind", "unknown node kind", n.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return out, nil
}

func (n NodeSpec) buildChildren(path string) ([]node.Node, error) {
	children := make([]node.Node, len(n.Children))
	for i, c := range n.Children {
		child, err := c.build(path + ".children[" + itoa(i) + "]")
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return children, nil
}

func (n NodeSpec) buildLeaf(path string) (node.Node, error) {
	var opts []node.LeafOption
	if n.Name != "" {
		opts = append(opts, node.WithName(n.Name))
	}
	if len(n.Reshape) > 0 {
		opts = append(opts, node.WithReshape(n.Reshape...))
	}
	if n.DType != "" {
		dt, err := tensor.ParseDType(n.DType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, node.WithDType(dt))
	}
	leaf := node.NewLeaf(opts...)
	for i, fs := range n.Filters {
		f, err := Build(fs)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.filters[%d]", path, i)
		}
		if err := leaf.AddFilter(f); err != nil {
			return nil, errors.Wrapf(err, "%s.filters[%d]", path, i)
		}
	}
	return leaf, nil
}

// ErrParams expands the sweep into error parameter sets: the cross product
// of Grid and the Linspace ranges (each expanded to Points values), each
// merged over Base. Without grids the sweep is the single set Base. Values
// of Base and Grid go through DecodeValue.
func (s *SweepSpec) ErrParams() ([]params.Params, error) {
	values := make(map[string][]any, len(s.Grid)+len(s.Linspace))
	for _, k := range sortedKeys(s.Grid) {
		decoded := make([]any, len(s.Grid[k]))
		for i, v := range s.Grid[k] {
			d, err := DecodeValue(k, v)
			if err != nil {
				return nil, errors.Wrapf(err, "grid %s[%d]", k, i)
			}
			decoded[i] = d
		}
		values[k] = decoded
	}
	for k, bounds := range s.Linspace {
		if _, dup := values[k]; dup {
			return nil, errors.NewValidationError(k, "parameter appears in both grid and linspace", bounds)
		}
		span, err := params.ExpandToLinspace(bounds, s.Points)
		if err != nil {
			return nil, errors.Wrapf(err, "linspace %s", k)
		}
		values[k] = params.Floats(span)
	}
	base, err := DecodeParams(s.Base)
	if err != nil {
		return nil, errors.Wrap(err, "base")
	}
	points := params.Grid(values)
	for i, p := range points {
		points[i] = base.With(p)
	}
	return points, nil
}

// RunnerModels converts the model entries for runner.Config.
func (s *SweepSpec) RunnerModels() ([]runner.ModelSpec, error) {
	out := make([]runner.ModelSpec, 0, len(s.Models))
	for i, m := range s.Models {
		factory, ok := DefaultModels[m.Type]
		if !ok {
			return nil, errors.NewValidationError("sweep.models["+itoa(i)+"].type",
				"unknown model type"+suggest(m.Type, modelNames()), m.Type)
		}
		out = append(out, runner.ModelSpec{
			Name:              m.Name,
			New:               factory,
			ParamsList:        params.Grid(m.Grid),
			UseCleanTrainData: m.UseCleanTrainData,
		})
	}
	return out, nil
}

// RunnerPreprocessor returns the configured preprocessor, or nil.
func (s *SweepSpec) RunnerPreprocessor() model.Preprocessor {
	switch s.Preprocessor {
	case "standardize":
		return preprocessing.Standardize()
	case "minmax":
		return preprocessing.MinMax(0, 1)
	}
	return nil
}

// BaseSeed returns the sweep's seed, or 0 when the file sets none.
func (s *SweepSpec) BaseSeed() uint64 {
	if s.Seed == nil {
		return 0
	}
	return *s.Seed
}
