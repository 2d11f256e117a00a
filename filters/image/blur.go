package image

import (
	"math"

	"github.com/YuminosukeSato/dpemu/core/parallel"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
)

// BlurFilter smooths every channel with a Gaussian kernel.
type BlurFilter struct {
	filters.CopyOnWrite
	imageOnly
	std params.Param[float64]
}

// GaussianBlur returns a filter convolving each channel with a Gaussian of
// standard deviation std, truncated at three deviations. Edges are
// extended by repeating the border pixel. std = 0 leaves the image as is.
func GaussianBlur(std params.Param[float64]) *BlurFilter {
	return &BlurFilter{std: std}
}

func (f *BlurFilter) Name() string   { return "GaussianBlur" }
func (f *BlurFilter) Keys() []string { return params.KeysOf(f.std) }

func (f *BlurFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	std, err := nonNegative(f.std, env, f.Name())
	if err != nil {
		return nil, err
	}
	d, err := imageDims(f.Name(), data)
	if err != nil {
		return nil, err
	}
	if std == 0 || d.h == 0 || d.w == 0 {
		return data, nil
	}

	kernel := gaussianKernel(std)
	radius := len(kernel) / 2
	src := data.Floats()
	tmp := make([]float64, len(src))
	out := data.Clone()
	dst := out.Floats()

	parallel.Rows(d.h, func(y int) {
		for x := 0; x < d.w; x++ {
			for ch := 0; ch < d.c; ch++ {
				sum := 0.0
				for k, wk := range kernel {
					xx := clampInt(x+k-radius, 0, d.w-1)
					sum += wk * src[d.at(y, xx, ch)]
				}
				tmp[d.at(y, x, ch)] = sum
			}
		}
	})
	parallel.Rows(d.h, func(y int) {
		for x := 0; x < d.w; x++ {
			for ch := 0; ch < d.c; ch++ {
				sum := 0.0
				for k, wk := range kernel {
					yy := clampInt(y+k-radius, 0, d.h-1)
					sum += wk * tmp[d.at(yy, x, ch)]
				}
				dst[d.at(y, x, ch)] = sum
			}
		}
	})
	out.Saturate()
	return out, nil
}

func gaussianKernel(std float64) []float64 {
	radius := int(math.Ceil(3 * std))
	kernel := make([]float64, 2*radius+1)
	total := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * std * std))
		total += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= total
	}
	return kernel
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
