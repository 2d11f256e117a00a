package filters

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// IdentityFilter returns its input.
type IdentityFilter struct{ CopyOnWrite }

// Identity returns a filter that leaves data unchanged.
func Identity() *IdentityFilter { return &IdentityFilter{} }

func (f *IdentityFilter) Name() string   { return "Identity" }
func (f *IdentityFilter) Keys() []string { return nil }

func (f *IdentityFilter) Apply(data *tensor.Array, _ *Env) (*tensor.Array, error) {
	return data, nil
}

// ConstantFilter replaces every element with a value.
type ConstantFilter struct {
	CopyOnWrite
	Numeric
	value params.Param[float64]
}

// Constant returns a filter that fills the array with value.
func Constant(value params.Param[float64]) *ConstantFilter {
	return &ConstantFilter{value: value}
}

func (f *ConstantFilter) Name() string   { return "Constant" }
func (f *ConstantFilter) Keys() []string { return params.KeysOf(f.value) }

func (f *ConstantFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	v, err := f.value.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	out := data.Clone()
	buf := out.Floats()
	for i := range buf {
		buf[i] = v
	}
	out.Saturate()
	return out, nil
}

// MissingFilter overwrites elements with a missing-value marker.
type MissingFilter struct {
	Mutating
	Numeric
	probability  params.Param[float64]
	missingValue params.Param[float64]
}

// Missing returns a filter that replaces each element with missingValue
// with the given probability. It writes into its input.
func Missing(probability, missingValue params.Param[float64]) *MissingFilter {
	return &MissingFilter{probability: probability, missingValue: missingValue}
}

func (f *MissingFilter) Name() string { return "Missing" }
func (f *MissingFilter) Keys() []string {
	return params.KeysOf(f.probability, f.missingValue)
}

func (f *MissingFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	p, err := Probability(f.probability, env, f.Name())
	if err != nil {
		return nil, err
	}
	mv, err := f.missingValue.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if p == 0 {
		return data, nil
	}
	buf := data.Floats()
	for i := range buf {
		if Fires(env.Rand, p) {
			buf[i] = mv
		}
	}
	data.Saturate()
	return data, nil
}

// ClipFilter limits values to [min, max].
type ClipFilter struct {
	Mutating
	Numeric
	min, max params.Param[float64]
}

// Clip returns a filter that clips values to [min, max] in place.
func Clip(min, max params.Param[float64]) *ClipFilter {
	return &ClipFilter{min: min, max: max}
}

func (f *ClipFilter) Name() string   { return "Clip" }
func (f *ClipFilter) Keys() []string { return params.KeysOf(f.min, f.max) }

func (f *ClipFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	lo, err := f.min.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	hi, err := f.max.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, errors.NewValidationError("min", fmt.Sprintf("min %g exceeds max %g", lo, hi), lo)
	}
	buf := data.Floats()
	for i, v := range buf {
		buf[i] = errors.ClipValue(v, lo, hi)
	}
	return data, nil
}

// GaussianNoiseFilter adds normally distributed noise to every element.
type GaussianNoiseFilter struct {
	CopyOnWrite
	Numeric
	mean, std params.Param[float64]
}

// GaussianNoise returns a filter adding N(mean, std) noise element-wise.
// Uint8 data is saturated afterwards.
func GaussianNoise(mean, std params.Param[float64]) *GaussianNoiseFilter {
	return &GaussianNoiseFilter{mean: mean, std: std}
}

func (f *GaussianNoiseFilter) Name() string   { return "GaussianNoise" }
func (f *GaussianNoiseFilter) Keys() []string { return params.KeysOf(f.mean, f.std) }

func (f *GaussianNoiseFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	mean, err := f.mean.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	std, err := nonNegative(f.std, env, f.Name())
	if err != nil {
		return nil, err
	}
	out := data.Clone()
	addNoise(out.Floats(), mean, std, env.Rand)
	out.Saturate()
	return out, nil
}

func addNoise(buf []float64, mean, std float64, rng *rand.Rand) {
	if std == 0 {
		if mean != 0 {
			for i := range buf {
				buf[i] += mean
			}
		}
		return
	}
	n := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	for i := range buf {
		buf[i] += n.Rand()
	}
}

// GaussianNoiseTimeDependentFilter adds noise whose mean and standard
// deviation grow linearly along the primary axis.
type GaussianNoiseTimeDependentFilter struct {
	CopyOnWrite
	Numeric
	mean, meanIncrease, std, stdIncrease params.Param[float64]
}

// GaussianNoiseTimeDependent returns a filter adding N(mean + t*meanIncrease,
// std + t*stdIncrease) noise to the t-th primary-axis slice.
func GaussianNoiseTimeDependent(mean, meanIncrease, std, stdIncrease params.Param[float64]) *GaussianNoiseTimeDependentFilter {
	return &GaussianNoiseTimeDependentFilter{mean: mean, meanIncrease: meanIncrease, std: std, stdIncrease: stdIncrease}
}

func (f *GaussianNoiseTimeDependentFilter) Name() string { return "GaussianNoiseTimeDependent" }
func (f *GaussianNoiseTimeDependentFilter) Keys() []string {
	return params.KeysOf(f.mean, f.meanIncrease, f.std, f.stdIncrease)
}

func (f *GaussianNoiseTimeDependentFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	vals, err := getAll(env, f.Name(), f.mean, f.meanIncrease, f.std, f.stdIncrease)
	if err != nil {
		return nil, err
	}
	mean, meanInc, std, stdInc := vals[0], vals[1], vals[2], vals[3]

	out := data.Clone()
	buf := out.Floats()
	steps := out.Len()
	if steps == 0 {
		steps = 1
	}
	stride := len(buf) / steps
	for t := 0; t < steps; t++ {
		s := std + float64(t)*stdInc
		if s < 0 {
			return nil, errors.NewValidationError(f.std.String(), fmt.Sprintf("standard deviation at step %d is negative", t), s)
		}
		addNoise(buf[t*stride:(t+1)*stride], mean+float64(t)*meanInc, s, env.Rand)
	}
	out.Saturate()
	return out, nil
}

// ElementFunc transforms a single value using the run's random source.
type ElementFunc func(x float64, rng *rand.Rand) float64

// StrangeBehaviourFilter applies a caller-supplied function to each element.
type StrangeBehaviourFilter struct {
	CopyOnWrite
	Numeric
	fn params.Param[ElementFunc]
}

// StrangeBehaviour returns a filter mapping every element through fn. A
// panic inside fn is reported as an error.
func StrangeBehaviour(fn params.Param[ElementFunc]) *StrangeBehaviourFilter {
	return &StrangeBehaviourFilter{fn: fn}
}

func (f *StrangeBehaviourFilter) Name() string   { return "StrangeBehaviour" }
func (f *StrangeBehaviourFilter) Keys() []string { return params.KeysOf(f.fn) }

func (f *StrangeBehaviourFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	fn, err := f.fn.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.NewValidationError(f.fn.String(), "function is nil", nil)
	}
	out := data.Clone()
	err = errors.SafeExecute(f.Name(), func() error {
		buf := out.Floats()
		for i, v := range buf {
			buf[i] = fn(v, env.Rand)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Saturate()
	return out, nil
}

// ModifyAsDataTypeFilter runs a filter on a converted copy of the data.
type ModifyAsDataTypeFilter struct {
	CopyOnWrite
	Numeric
	dtype tensor.DType
	inner Filter
}

// ModifyAsDataType converts the data to dtype, applies inner and converts
// the result back. When the conversion back loses information a
// DataConversionWarning is raised.
func ModifyAsDataType(dtype tensor.DType, inner Filter) *ModifyAsDataTypeFilter {
	return &ModifyAsDataTypeFilter{dtype: dtype, inner: inner}
}

func (f *ModifyAsDataTypeFilter) Name() string   { return "ModifyAsDataType" }
func (f *ModifyAsDataTypeFilter) Keys() []string { return KeysOf(f.inner) }

// Accepts implements Constrained. The inner filter is checked against the
// converted dtype.
func (f *ModifyAsDataTypeFilter) Accepts(dtype tensor.DType, rank int) error {
	if err := f.Numeric.Accepts(dtype, rank); err != nil {
		return err
	}
	return acceptsAll(f.dtype, rank, f.inner)
}

func (f *ModifyAsDataTypeFilter) Apply(data *tensor.Array, env *Env) (*tensor.Array, error) {
	converted, err := data.AsType(f.dtype)
	if err != nil {
		return nil, err
	}
	res, err := f.inner.Apply(converted, env)
	if err != nil {
		return nil, err
	}
	if res.DType() == data.DType() {
		return res, nil
	}
	back, err := res.AsType(data.DType())
	if err != nil {
		return nil, err
	}
	if data.DType() == tensor.Uint8 {
		if d, _ := back.MaxAbsDiff(res); d > 0.5 {
			errors.Warn(errors.NewDataConversionWarning(res.DType().String(), data.DType().String(),
				fmt.Sprintf("%s output was rounded or clipped (max change %g)", f.inner.Name(), d)))
		}
	}
	return back, nil
}

// Probability resolves p and checks that it lies in [0, 1]. NaN is rejected.
func Probability(p params.Param[float64], env *Env, filter string) (float64, error) {
	v, err := p.Get(env.Params, filter)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.NewValidationError(p.String(), fmt.Sprintf("filter %q: probability must be within [0, 1]", filter), v)
	}
	return v, nil
}

func nonNegative(p params.Param[float64], env *Env, filter string) (float64, error) {
	v, err := p.Get(env.Params, filter)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 {
		return 0, errors.NewValidationError(p.String(), "must be non-negative", v)
	}
	return v, nil
}

func getAll(env *Env, filter string, ps ...params.Param[float64]) ([]float64, error) {
	out := make([]float64, len(ps))
	for i, p := range ps {
		v, err := p.Get(env.Params, filter)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
