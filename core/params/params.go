// Package params holds the parameter dictionary supplied to an error
// generation run and the resolver filters use to look names up in it.
//
// Filters never read the dictionary directly. A filter parameter is a
// Param[T] that is either fixed when the tree is built or bound to a key
// resolved at apply time; only the latter touch the dictionary. Values
// that are themselves random (a radius distribution, for example) are
// Generators, and the resolver returns them unevaluated.
package params

import (
	"fmt"
	"math"
	"sort"

	"github.com/agext/levenshtein"
	"github.com/mitchellh/copystructure"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// SeedKey is the reserved key that seeds the random source of a run.
const SeedKey = "seed"

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 3

// Params is the flat parameter dictionary of one generation run.
type Params map[string]any

// Clone returns a deep copy of p. Generators are copied as values where
// possible, so a sweep point never shares mutable state with another.
func (p Params) Clone() (Params, error) {
	if p == nil {
		return Params{}, nil
	}
	c, err := copystructure.Copy(map[string]any(p))
	if err != nil {
		return nil, errors.Wrap(err, "params: clone")
	}
	return Params(c.(map[string]any)), nil
}

// With returns a copy of p with the entries of other added on top.
func (p Params) With(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the keys of p in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Seed returns the integer seed stored under SeedKey. Integer values are
// used exactly; a float64 must be integral and at most 2^53.
func (p Params) Seed() (uint64, bool, error) {
	v, ok := p[SeedKey]
	if !ok {
		return 0, false, nil
	}
	seed, ok := toUint64(v)
	if !ok {
		return 0, true, errors.NewValidationError(SeedKey, "seed must be a non-negative integer", v)
	}
	return seed, true, nil
}

// maxExactFloat is the largest float64 below which every integer is exact.
const maxExactFloat = 1 << 53

// toUint64 converts a non-negative integer without going through float64.
func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case int:
		return uint64(x), x >= 0
	case int64:
		return uint64(x), x >= 0
	case int32:
		return uint64(x), x >= 0
	case int16:
		return uint64(x), x >= 0
	case int8:
		return uint64(x), x >= 0
	case float64:
		if x < 0 || x > maxExactFloat || x != math.Trunc(x) {
			return 0, false
		}
		return uint64(x), true
	case float32:
		return toUint64(float64(x))
	}
	return 0, false
}

// toInt64 is toUint64 for signed targets.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case float64:
		if math.Abs(x) > maxExactFloat || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case float32:
		return toInt64(float64(x))
	}
	u, ok := toUint64(v)
	if !ok || u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

// Resolver maps symbolic parameter names to dictionary values. It only
// looks names up; it never evaluates what it finds.
type Resolver struct {
	params Params
}

// NewResolver returns a resolver over p. The dictionary is treated as
// read-only for the lifetime of the resolver.
func NewResolver(p Params) *Resolver {
	if p == nil {
		p = Params{}
	}
	return &Resolver{params: p}
}

// Lookup returns the value stored under name or a MissingParameterError
// attributed to filter.
func (r *Resolver) Lookup(filter, name string) (any, error) {
	v, ok := r.params[name]
	if !ok {
		return nil, errors.NewMissingParameterError(filter, name, r.suggest(name))
	}
	return v, nil
}

// Resolve looks up names in declaration order and returns a same-length
// slice of values.
func (r *Resolver) Resolve(filter string, names ...string) ([]any, error) {
	out := make([]any, len(names))
	for i, name := range names {
		v, err := r.Lookup(filter, name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Has reports whether name is present.
func (r *Resolver) Has(name string) bool {
	_, ok := r.params[name]
	return ok
}

// Params returns the underlying dictionary.
func (r *Resolver) Params() Params { return r.params }

func (r *Resolver) suggest(name string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, k := range r.params.Keys() {
		if d := levenshtein.Distance(name, k, nil); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%T is not numeric", v)
}
