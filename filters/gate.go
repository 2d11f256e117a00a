package filters

import (
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// GateMode selects how often a probability gate draws.
type GateMode int

const (
	// PerCall draws once per Apply and either runs the wrapped filter on
	// the whole array or returns the array unchanged.
	PerCall GateMode = iota

	// PerElement draws once per element and keeps the wrapped filter's
	// output only for elements whose draw fired.
	PerElement
)

func (m GateMode) String() string {
	switch m {
	case PerCall:
		return "per_call"
	case PerElement:
		return "per_element"
	default:
		return fmt.Sprintf("GateMode(%d)", int(m))
	}
}

// ParseGateMode parses "per_call" or "per_element".
func ParseGateMode(s string) (GateMode, error) {
	switch s {
	case "", "per_call":
		return PerCall, nil
	case "per_element":
		return PerElement, nil
	}
	return PerCall, errors.NewValidationError("mode", "must be per_call or per_element", s)
}

// GateOption configures ApplyWithProbability.
type GateOption func(*Gate)

// WithGateMode sets the firing granularity. The default is PerCall.
func WithGateMode(m GateMode) GateOption {
	return func(g *Gate) { g.mode = m }
}

// Gate applies a wrapped filter with a probability.
type Gate struct {
	CopyOnWrite
	inner params.Param[Filter]
	p     params.Param[float64]
	mode  GateMode
}

// ApplyWithProbability wraps inner so that it only runs when a uniform draw
// from the run's random source falls below p. The wrapped filter may be
// given directly or looked up in the parameter dictionary.
func ApplyWithProbability(inner params.Param[Filter], p params.Param[float64], opts ...GateOption) *Gate {
	g := &Gate{inner: inner, p: p}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Filter.
func (g *Gate) Name() string { return "ApplyWithProbability" }

// Mode returns the firing granularity.
func (g *Gate) Mode() GateMode { return g.mode }

// Keys implements Filter. The keys of a fixed inner filter are included.
func (g *Gate) Keys() []string {
	keys := params.KeysOf(g.inner, g.p)
	if g.inner.IsFixed() {
		if f, err := g.inner.Get(nil, g.Name()); err == nil && f != nil {
			keys = append(keys, f.Keys()...)
		}
	}
	return keys
}

// Accepts implements Constrained for a fixed inner filter. A looked-up
// inner filter is checked when it is resolved.
func (g *Gate) Accepts(dtype tensor.DType, rank int) error {
	if !g.inner.IsFixed() {
		return nil
	}
	inner, err := g.inner.Get(nil, g.Name())
	if err != nil || inner == nil {
		return nil
	}
	return acceptsAll(dtype, rank, inner)
}

// Fires reports whether a single draw from rng falls below p.
func Fires(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// Apply implements Filter.
func (g *Gate) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	inner, err := g.inner.Get(env.Params, g.Name())
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, errors.NewValidationError(g.inner.Key(), "wrapped filter is nil", nil)
	}
	p, err := Probability(g.p, env, g.Name())
	if err != nil {
		return nil, err
	}
	if err := CheckAccepts(inner, env.Path(), data.DType(), data.Shape()); err != nil {
		return nil, err
	}

	if g.mode == PerElement {
		return g.applyPerElement(inner, p, data, env)
	}

	fired := Fires(env.Rand, p)
	env.Logger.Debug("probability gate evaluated",
		log.NodeKey, env.Path(),
		log.FilterKey, inner.Name(),
		log.GateFiredKey, fired,
	)
	if !fired {
		return data, nil
	}
	return applyCopy(inner, data, env)
}

func (g *Gate) applyPerElement(inner Filter, p float64, data *tensor.Array, env *Env) (*tensor.Array, error) {
	candidate, err := applyCopy(inner, data, env)
	if err != nil {
		return nil, err
	}
	if !candidate.SameShape(data) || candidate.DType() != data.DType() {
		return nil, errors.NewFilterShapeError("Gate.Apply", env.Path(), inner.Name(),
			data.Shape(), candidate.Shape(), "wrapped filter changed shape or dtype")
	}

	out := data.Clone()
	fired := 0
	if data.DType() == tensor.String {
		dst, src := out.Strings(), candidate.Strings()
		for i := range dst {
			if Fires(env.Rand, p) {
				dst[i] = src[i]
				fired++
			}
		}
	} else {
		dst, src := out.Floats(), candidate.Floats()
		for i := range dst {
			if Fires(env.Rand, p) {
				dst[i] = src[i]
				fired++
			}
		}
	}
	env.Logger.Debug("probability gate evaluated per element",
		log.NodeKey, env.Path(),
		log.FilterKey, inner.Name(),
		"fired_elements", fired,
		log.SamplesKey, data.Size(),
	)
	return out, nil
}

// applyCopy runs f without letting it write into data.
func applyCopy(f Filter, data *tensor.Array, env *Env) (*tensor.Array, error) {
	if f.InPlace() {
		data = data.Clone()
	}
	return f.Apply(data, env)
}
