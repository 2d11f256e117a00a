package params

import (
	"fmt"
	"math"
	"reflect"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Param is a typed filter parameter. It is either fixed when the tree is
// built (Value) or bound to a dictionary key resolved on every apply (Key).
type Param[T any] struct {
	key   string
	value T
	fixed bool
}

// Value returns a parameter fixed to v.
func Value[T any](v T) Param[T] {
	return Param[T]{value: v, fixed: true}
}

// Key returns a parameter looked up under name at apply time.
func Key[T any](name string) Param[T] {
	return Param[T]{key: name}
}

// Key returns the dictionary key, or "" for a fixed parameter.
func (p Param[T]) Key() string { return p.key }

// IsFixed reports whether the value was supplied at construction.
func (p Param[T]) IsFixed() bool { return p.fixed }

// IsZero reports whether p was never initialised.
func (p Param[T]) IsZero() bool { return !p.fixed && p.key == "" }

// Get returns the parameter value. Numeric dictionary values are coerced
// to T when T is a numeric type; any other mismatch is a ValidationError.
func (p Param[T]) Get(r *Resolver, filter string) (T, error) {
	var zero T
	if p.fixed {
		return p.value, nil
	}
	if p.key == "" {
		return zero, errors.NewValidationError("<unset>", fmt.Sprintf("filter %q has an unset parameter", filter), nil)
	}
	raw, err := r.Lookup(filter, p.key)
	if err != nil {
		return zero, err
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	if v, ok := coerce[T](raw); ok {
		return v, nil
	}
	return zero, errors.NewValidationError(p.key,
		fmt.Sprintf("filter %q expects %v, got %T", filter, reflect.TypeFor[T](), raw), raw)
}

func (p Param[T]) String() string {
	if p.fixed {
		return fmt.Sprintf("%v", p.value)
	}
	return "$" + p.key
}

func coerce[T any](raw any) (T, bool) {
	var zero T
	var out any
	switch any(zero).(type) {
	case int:
		i, ok := toInt64(raw)
		if !ok || i > math.MaxInt || i < math.MinInt {
			return zero, false
		}
		out = int(i)
	case int64:
		i, ok := toInt64(raw)
		if !ok {
			return zero, false
		}
		out = i
	case uint64:
		u, ok := toUint64(raw)
		if !ok {
			return zero, false
		}
		out = u
	case float64, float32:
		f, err := toFloat(raw)
		if err != nil {
			return zero, false
		}
		if _, ok := any(zero).(float32); ok {
			out = float32(f)
		} else {
			out = f
		}
	default:
		return zero, false
	}
	return out.(T), true
}

// Ref is implemented by every Param and exposes the key it depends on.
type Ref interface {
	Key() string
	IsFixed() bool
}

// KeysOf returns the dictionary keys referenced by refs, in order, without
// fixed parameters.
func KeysOf(refs ...Ref) []string {
	var keys []string
	for _, r := range refs {
		if !r.IsFixed() && r.Key() != "" {
			keys = append(keys, r.Key())
		}
	}
	return keys
}
