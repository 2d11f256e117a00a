// Package config reads error-generation trees and sweeps from YAML.
//
// A file has a tree and an optional sweep:
//
//	tree:
//	  kind: series
//	  child:
//	    kind: leaf
//	    reshape: [28, 28]
//	    filters:
//	      - type: ApplyWithProbability
//	        params: {p: $p}
//	        inner:
//	          type: Rotation
//	          params: {angle: $angle}
//	sweep:
//	  seed: 42
//	  base: {p: 0.5}
//	  linspace: {angle: [0, 180]}
//	  points: 10
//	  models:
//	    - name: predictor
//	      type: weighted_average
//	      grid: {weight: [0.1, 0.5, 1.0]}
//
// Filter parameters written as "$name" are looked up in the parameter
// dictionary at generation time; anything else is fixed when the tree is
// built.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

var specValidate = validator.New()

// File is the top-level document.
type File struct {
	Tree  NodeSpec   `yaml:"tree"`
	Sweep *SweepSpec `yaml:"sweep,omitempty"`
}

// NodeSpec describes one tree node. Series nodes use Child, Tuple and
// TupleSeries nodes use Children, leaves use Filters.
type NodeSpec struct {
	Kind     string       `yaml:"kind" validate:"required,oneof=leaf series tuple tuple_series"`
	Name     string       `yaml:"name,omitempty"`
	DType    string       `yaml:"dtype,omitempty" validate:"omitempty,oneof=float64 uint8 string"`
	Reshape  []int        `yaml:"reshape,omitempty" validate:"omitempty,dive,gte=-1,ne=0"`
	Filters  []FilterSpec `yaml:"filters,omitempty" validate:"dive"`
	Child    *NodeSpec    `yaml:"child,omitempty"`
	Children []NodeSpec   `yaml:"children,omitempty" validate:"dive"`
}

// FilterSpec describes one filter. Inner is the wrapped filter of
// ApplyWithProbability and ModifyAsDataType; Operands are the two filters
// of a binary combinator.
type FilterSpec struct {
	Type     string         `yaml:"type" validate:"required"`
	Params   map[string]any `yaml:"params,omitempty"`
	Mode     string         `yaml:"mode,omitempty" validate:"omitempty,oneof=per_call per_element"`
	DType    string         `yaml:"dtype,omitempty" validate:"omitempty,oneof=float64 uint8"`
	Inner    *FilterSpec    `yaml:"inner,omitempty"`
	Operands []FilterSpec   `yaml:"operands,omitempty" validate:"omitempty,len=2,dive"`
}

// SweepSpec describes the error parameter sets of a sweep and the models
// scored at each of them.
type SweepSpec struct {
	Seed     *uint64              `yaml:"seed,omitempty"`
	Workers  int                  `yaml:"workers" validate:"gte=0"`
	Base     map[string]any       `yaml:"base,omitempty"`
	Grid     map[string][]any     `yaml:"grid,omitempty" validate:"dive,min=1"`
	Linspace map[string][]float64 `yaml:"linspace,omitempty" validate:"dive,min=1,max=2"`
	Points   int                  `yaml:"points" validate:"gte=0"`
	Models   []ModelSpec          `yaml:"models,omitempty" validate:"dive"`

	// Preprocessor scales the feature matrix before the models run.
	Preprocessor string `yaml:"preprocessor,omitempty" validate:"omitempty,oneof=standardize minmax"`
}

// ModelSpec names a registered model and the grid of its parameters.
type ModelSpec struct {
	Name              string           `yaml:"name" validate:"required"`
	Type              string           `yaml:"type" validate:"required"`
	Grid              map[string][]any `yaml:"grid,omitempty" validate:"dive,min=1"`
	UseCleanTrainData bool             `yaml:"use_clean_train_data"`
}

// Load decodes and validates a document. Unknown fields are errors.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.NewValueError("config.Load", "document is empty")
		}
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads path with Load.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	f, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return f, nil
}

// Validate reports every problem with f at once: struct rule violations,
// misplaced children and unknown filter types.
func (f *File) Validate() error {
	var result *multierror.Error
	if err := specValidate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(err, "config: validate")
		}
		for _, fe := range fieldErrs {
			result = multierror.Append(result,
				errors.NewValidationError(fe.Namespace(), "failed on the '"+fe.Tag()+"' rule", fe.Value()))
		}
	}
	result = multierror.Append(result, f.Tree.check("tree")...)
	if f.Sweep != nil && result.ErrorOrNil() == nil {
		if _, err := f.Sweep.ErrParams(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if f.Sweep != nil {
		for i, m := range f.Sweep.Models {
			if _, ok := DefaultModels[m.Type]; !ok {
				result = multierror.Append(result, errors.NewValidationError(
					"sweep.models["+itoa(i)+"].type", "unknown model type"+suggest(m.Type, modelNames()), m.Type))
			}
		}
	}
	return result.ErrorOrNil()
}

// check validates the shape of the tree below n.
func (n NodeSpec) check(path string) []error {
	var errs []error
	switch n.Kind {
	case "leaf":
		if n.Child != nil || len(n.Children) > 0 {
			errs = append(errs, errors.NewValidationError(path, "a leaf has no children", n.Kind))
		}
		for i, fs := range n.Filters {
			errs = append(errs, fs.check(path+".filters["+itoa(i)+"]")...)
		}
	case "series":
		if n.Child == nil || len(n.Children) > 0 {
			errs = append(errs, errors.NewValidationError(path, "a series has exactly one child", n.Kind))
		}
	case "tuple", "tuple_series":
		if n.Child != nil {
			errs = append(errs, errors.NewValidationError(path, "use children for "+n.Kind, n.Kind))
		}
	}
	if n.Kind != "leaf" && len(n.Filters) > 0 {
		errs = append(errs, errors.NewValidationError(path, "only leaves hold filters", n.Kind))
	}
	if n.Child != nil {
		errs = append(errs, n.Child.check(path+".child")...)
	}
	for i, c := range n.Children {
		errs = append(errs, c.check(path+".children["+itoa(i)+"]")...)
	}
	return errs
}

func (fs FilterSpec) check(path string) []error {
	var errs []error
	if _, ok := DefaultFilters[fs.Type]; !ok {
		errs = append(errs, errors.NewValidationError(path+".type",
			"unknown filter type"+suggest(fs.Type, filterNames()), fs.Type))
	}
	if fs.Inner != nil {
		errs = append(errs, fs.Inner.check(path+".inner")...)
	}
	for i, op := range fs.Operands {
		errs = append(errs, op.check(path+".operands["+itoa(i)+"]")...)
	}
	return errs
}
