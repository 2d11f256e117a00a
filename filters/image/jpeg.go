package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/jpeg"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// JPEGFilter simulates compression artifacts.
type JPEGFilter struct {
	filters.CopyOnWrite
	imageOnly
	quality params.Param[int]
}

// JPEGCompression round-trips the image through a JPEG encoder at the given
// quality (1-100). Values are read as 0-255 intensities. Grayscale, RGB and
// RGBA images are supported; alpha is carried over unchanged.
func JPEGCompression(quality params.Param[int]) *JPEGFilter {
	return &JPEGFilter{quality: quality}
}

func (f *JPEGFilter) Name() string   { return "JPEGCompression" }
func (f *JPEGFilter) Keys() []string { return params.KeysOf(f.quality) }

func (f *JPEGFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	q, err := f.quality.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if q < 1 || q > 100 {
		return nil, errors.NewValidationError(f.quality.String(), "quality must be within [1, 100]", q)
	}
	d, err := imageDims(f.Name(), data)
	if err != nil {
		return nil, err
	}
	if d.c != 1 && d.c != 3 && d.c != 4 {
		return nil, errors.NewShapeError(f.Name(), nil, data.Shape(), "JPEG needs 1, 3 or 4 channels")
	}
	if d.h == 0 || d.w == 0 {
		return data, nil
	}

	src := data.Floats()
	var img stdimage.Image
	if d.c == 1 {
		g := stdimage.NewGray(stdimage.Rect(0, 0, d.w, d.h))
		for y := 0; y < d.h; y++ {
			for x := 0; x < d.w; x++ {
				g.SetGray(x, y, color.Gray{Y: toByte(src[d.at(y, x, 0)])})
			}
		}
		img = g
	} else {
		rgba := stdimage.NewRGBA(stdimage.Rect(0, 0, d.w, d.h))
		for y := 0; y < d.h; y++ {
			for x := 0; x < d.w; x++ {
				i := d.at(y, x, 0)
				rgba.SetRGBA(x, y, color.RGBA{R: toByte(src[i]), G: toByte(src[i+1]), B: toByte(src[i+2]), A: 255})
			}
		}
		img = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, errors.Wrap(err, "image: jpeg encode")
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "image: jpeg decode")
	}

	out := data.Clone()
	dst := out.Floats()
	for y := 0; y < d.h; y++ {
		for x := 0; x < d.w; x++ {
			c := decoded.At(x, y)
			i := d.at(y, x, 0)
			if d.c == 1 {
				dst[i] = float64(color.GrayModel.Convert(c).(color.Gray).Y)
				continue
			}
			r, g, b, _ := c.RGBA()
			dst[i], dst[i+1], dst[i+2] = float64(r>>8), float64(g>>8), float64(b>>8)
		}
	}
	return out, nil
}

func toByte(v float64) uint8 {
	return uint8(tensor.SaturateUint8(v))
}
