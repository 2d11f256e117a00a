// Package model defines what the sweep runner runs: models that are scored
// on corrupted data and the optional preprocessing step in front of them.
package model

import (
	"context"
	"sort"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
)

// Scores maps a score name such as "MSE" to its value.
type Scores map[string]float64

// Names returns the score names in sorted order.
func (s Scores) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Merge copies other into s, overwriting equal names.
func (s Scores) Merge(other Scores) Scores {
	if s == nil {
		s = make(Scores, len(other))
	}
	for k, v := range other {
		s[k] = v
	}
	return s
}

// Model is trained on train and scored on test, both possibly corrupted.
// train is nil when the sweep has no training data.
type Model interface {
	Run(ctx context.Context, train, test tensor.Dataset, p params.Params) (Scores, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, train, test tensor.Dataset, p params.Params) (Scores, error)

// Run calls f.
func (f ModelFunc) Run(ctx context.Context, train, test tensor.Dataset, p params.Params) (Scores, error) {
	return f(ctx, train, test, p)
}

// Preprocessor runs between error generation and the models. Its scores
// are attached to every result of the sweep point.
type Preprocessor interface {
	Run(ctx context.Context, train, test tensor.Dataset, p params.Params) (tensor.Dataset, tensor.Dataset, Scores, error)
}

// PreprocessorFunc adapts a function to Preprocessor.
type PreprocessorFunc func(ctx context.Context, train, test tensor.Dataset, p params.Params) (tensor.Dataset, tensor.Dataset, Scores, error)

// Run calls f.
func (f PreprocessorFunc) Run(ctx context.Context, train, test tensor.Dataset, p params.Params) (tensor.Dataset, tensor.Dataset, Scores, error) {
	return f(ctx, train, test, p)
}

// Passthrough is a Preprocessor that returns its inputs unchanged.
var Passthrough Preprocessor = PreprocessorFunc(
	func(_ context.Context, train, test tensor.Dataset, _ params.Params) (tensor.Dataset, tensor.Dataset, Scores, error) {
		return train, test, nil, nil
	})
