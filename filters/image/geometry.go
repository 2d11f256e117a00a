package image

import (
	"math"

	"github.com/YuminosukeSato/dpemu/core/parallel"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// RotationFilter rotates an image about its centre.
type RotationFilter struct {
	filters.CopyOnWrite
	imageOnly
	angle params.Param[float64]
}

// Rotation rotates the image counter-clockwise by angle degrees using
// bilinear interpolation. Areas rotated in from outside the image are 0.
// Multiples of 360 leave the image as is.
func Rotation(angle params.Param[float64]) *RotationFilter {
	return &RotationFilter{angle: angle}
}

func (f *RotationFilter) Name() string   { return "Rotation" }
func (f *RotationFilter) Keys() []string { return params.KeysOf(f.angle) }

func (f *RotationFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	angle, err := f.angle.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil, errors.NewValidationError(f.angle.String(), "angle must be finite", angle)
	}
	d, err := imageDims(f.Name(), data)
	if err != nil {
		return nil, err
	}
	if math.Mod(angle, 360) == 0 {
		return data, nil
	}

	theta := angle * math.Pi / 180
	sin, cos := math.Sincos(theta)
	cx, cy := float64(d.w-1)/2, float64(d.h-1)/2
	src := data.Floats()
	out := tensor.New(data.DType(), data.Shape()...)
	dst := out.Floats()

	parallel.Rows(d.h, func(y int) {
		dy := float64(y) - cy
		for x := 0; x < d.w; x++ {
			dx := float64(x) - cx
			// inverse mapping: the source pixel that lands on (x, y)
			sx := cos*dx - sin*dy + cx
			sy := sin*dx + cos*dy + cy
			for ch := 0; ch < d.c; ch++ {
				dst[d.at(y, x, ch)] = bilinear(src, d, sx, sy, ch)
			}
		}
	})
	out.Saturate()
	return out, nil
}

func bilinear(src []float64, d dims, x, y float64, ch int) float64 {
	if x < -0.5 || y < -0.5 || x > float64(d.w)-0.5 || y > float64(d.h)-0.5 {
		return 0
	}
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	pix := func(xx, yy int) float64 {
		if xx < 0 || yy < 0 || xx >= d.w || yy >= d.h {
			return 0
		}
		return src[d.at(yy, xx, ch)]
	}
	top := pix(x0, y0)*(1-fx) + pix(x0+1, y0)*fx
	bottom := pix(x0, y0+1)*(1-fx) + pix(x0+1, y0+1)*fx
	return top*(1-fy) + bottom*fy
}

// ResolutionFilter lowers the effective resolution of an image.
type ResolutionFilter struct {
	filters.CopyOnWrite
	imageOnly
	k params.Param[int]
}

// Resolution replaces every k-by-k block with its top-left pixel, keeping
// the image size. k = 1 leaves the image as is.
func Resolution(k params.Param[int]) *ResolutionFilter {
	return &ResolutionFilter{k: k}
}

func (f *ResolutionFilter) Name() string   { return "Resolution" }
func (f *ResolutionFilter) Keys() []string { return params.KeysOf(f.k) }

func (f *ResolutionFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	k, err := f.k.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, errors.NewValidationError(f.k.String(), "k must be at least 1", k)
	}
	d, err := imageDims(f.Name(), data)
	if err != nil {
		return nil, err
	}
	if k == 1 {
		return data, nil
	}

	src := data.Floats()
	out := data.Clone()
	dst := out.Floats()
	for y := 0; y < d.h; y++ {
		for x := 0; x < d.w; x++ {
			for ch := 0; ch < d.c; ch++ {
				dst[d.at(y, x, ch)] = src[d.at(y/k*k, x/k*k, ch)]
			}
		}
	}
	return out, nil
}
