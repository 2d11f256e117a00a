package image

import (
	"math"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// StainFilter darkens random circular areas of an image.
type StainFilter struct {
	filters.CopyOnWrite
	imageOnly
	probability  params.Param[float64]
	radius       params.Param[params.Generator]
	transparency params.Param[float64]
}

// StainArea starts a stain at each pixel with the given probability. Each
// stain's radius is drawn from the radius generator. Pixels inside a stain
// are multiplied by transparency, so 1 leaves them visible and 0 paints
// them black.
func StainArea(probability params.Param[float64], radius params.Param[params.Generator], transparency params.Param[float64]) *StainFilter {
	return &StainFilter{probability: probability, radius: radius, transparency: transparency}
}

func (f *StainFilter) Name() string { return "StainArea" }
func (f *StainFilter) Keys() []string {
	return params.KeysOf(f.probability, f.radius, f.transparency)
}

func (f *StainFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	p, err := filters.Probability(f.probability, env, f.Name())
	if err != nil {
		return nil, err
	}
	gen, err := f.radius.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, errors.NewValidationError(f.radius.String(), "radius generator is nil", nil)
	}
	alpha, err := filters.Probability(f.transparency, env, f.Name())
	if err != nil {
		return nil, err
	}
	d, err := imageDims(f.Name(), data)
	if err != nil {
		return nil, err
	}
	if p == 0 {
		return data, nil
	}

	stained := make([]bool, d.h*d.w)
	for y := 0; y < d.h; y++ {
		for x := 0; x < d.w; x++ {
			if !filters.Fires(env.Rand, p) {
				continue
			}
			r := gen.Next(env.Rand)
			if r < 0 || math.IsNaN(r) {
				continue
			}
			paintDisc(stained, d, x, y, r)
		}
	}

	out := data.Clone()
	buf := out.Floats()
	for i, s := range stained {
		if !s {
			continue
		}
		for ch := 0; ch < d.c; ch++ {
			buf[i*d.c+ch] *= alpha
		}
	}
	out.Saturate()
	return out, nil
}

func paintDisc(mask []bool, d dims, cx, cy int, r float64) {
	ir := int(math.Ceil(r))
	for y := max(0, cy-ir); y <= min(d.h-1, cy+ir); y++ {
		for x := max(0, cx-ir); x <= min(d.w-1, cx+ir); x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy <= r*r {
				mask[y*d.w+x] = true
			}
		}
	}
}
