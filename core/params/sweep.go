package params

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// DefaultLinspacePoints is the number of values a [lo, hi] range expands to.
const DefaultLinspacePoints = 50

// Grid returns the cross product of the value lists as parameter
// dictionaries. Keys vary in sorted order with the last key fastest, so
// the result is stable across runs.
func Grid(values map[string][]any) []Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []Params{{}}
	for _, k := range keys {
		next := make([]Params, 0, len(out)*len(values[k]))
		for _, base := range out {
			for _, v := range values[k] {
				p := base.With(nil)
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

// ExpandToLinspace turns a one-element list into itself and a [lo, hi]
// pair into n evenly spaced values, both ends included. n <= 0 means
// DefaultLinspacePoints.
func ExpandToLinspace(bounds []float64, n int) ([]float64, error) {
	switch len(bounds) {
	case 1:
		return []float64{bounds[0]}, nil
	case 2:
	default:
		return nil, errors.NewValidationError("bounds",
			fmt.Sprintf("expected 1 or 2 values, got %d", len(bounds)), bounds)
	}
	if n <= 0 {
		n = DefaultLinspacePoints
	}
	if n == 1 {
		return []float64{bounds[0]}, nil
	}
	return floats.Span(make([]float64, n), bounds[0], bounds[1]), nil
}

// Floats converts a float slice for use as a Grid value list.
func Floats(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
