package params

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Generator draws values lazily from the run's random source. Filters that
// accept a generator call Next themselves; the resolver never does.
type Generator interface {
	Next(rng *rand.Rand) float64
}

// Gaussian draws from a normal distribution.
type Gaussian struct {
	Mean float64
	Std  float64
}

// Next implements Generator.
func (g Gaussian) Next(rng *rand.Rand) float64 {
	if g.Std == 0 {
		return g.Mean
	}
	return distuv.Normal{Mu: g.Mean, Sigma: g.Std, Src: rng}.Rand()
}

// Uniform draws from [Min, Max).
type Uniform struct {
	Min float64
	Max float64
}

// Next implements Generator.
func (u Uniform) Next(rng *rand.Rand) float64 {
	if u.Min == u.Max {
		return u.Min
	}
	return distuv.Uniform{Min: u.Min, Max: u.Max, Src: rng}.Rand()
}

// Constant always returns its value and consumes no entropy.
type Constant float64

// Next implements Generator.
func (c Constant) Next(*rand.Rand) float64 { return float64(c) }

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(rng *rand.Rand) float64

// Next implements Generator.
func (f GeneratorFunc) Next(rng *rand.Rand) float64 { return f(rng) }

// NewRand returns the deterministic random source used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
