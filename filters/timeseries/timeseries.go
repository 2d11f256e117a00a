// Package timeseries implements sensor-style corruptions that evolve along
// the primary (time) axis of an array.
package timeseries

import (
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
)

// GapFilter simulates a sensor that fails and recovers.
type GapFilter struct {
	filters.CopyOnWrite
	filters.Numeric
	probBreak, probRecover, missingValue params.Param[float64]
}

// Gap walks the time axis with a two-state chain. The sensor starts
// working; after each step a working sensor breaks with probability
// probBreak and a broken one recovers with probability probRecover.
// Steps recorded while broken are overwritten with missingValue.
func Gap(probBreak, probRecover, missingValue params.Param[float64]) *GapFilter {
	return &GapFilter{probBreak: probBreak, probRecover: probRecover, missingValue: missingValue}
}

func (f *GapFilter) Name() string { return "Gap" }
func (f *GapFilter) Keys() []string {
	return params.KeysOf(f.probBreak, f.probRecover, f.missingValue)
}

func (f *GapFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	pb, err := filters.Probability(f.probBreak, env, f.Name())
	if err != nil {
		return nil, err
	}
	pr, err := filters.Probability(f.probRecover, env, f.Name())
	if err != nil {
		return nil, err
	}
	mv, err := f.missingValue.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if pb == 0 || data.Len() == 0 {
		return data, nil
	}

	out := data.Clone()
	buf := out.Floats()
	stride := len(buf) / out.Len()
	working := true
	for t := 0; t < out.Len(); t++ {
		if !working {
			for i := t * stride; i < (t+1)*stride; i++ {
				buf[i] = mv
			}
		}
		if working {
			working = !filters.Fires(env.Rand, pb)
		} else {
			working = filters.Fires(env.Rand, pr)
		}
	}
	out.Saturate()
	return out, nil
}

// DriftFilter adds a linearly growing offset.
type DriftFilter struct {
	filters.CopyOnWrite
	filters.Numeric
	magnitude params.Param[float64]
}

// SensorDrift adds magnitude*(t+1) to the t-th step of the time axis.
func SensorDrift(magnitude params.Param[float64]) *DriftFilter {
	return &DriftFilter{magnitude: magnitude}
}

func (f *DriftFilter) Name() string   { return "SensorDrift" }
func (f *DriftFilter) Keys() []string { return params.KeysOf(f.magnitude) }

func (f *DriftFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	m, err := f.magnitude.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if m == 0 || data.Len() == 0 {
		return data, nil
	}
	out := data.Clone()
	buf := out.Floats()
	stride := len(buf) / out.Len()
	for t := 0; t < out.Len(); t++ {
		for i := t * stride; i < (t+1)*stride; i++ {
			buf[i] += m * float64(t+1)
		}
	}
	out.Saturate()
	return out, nil
}
