// Package image implements corruptions of images stored as arrays of shape
// (height, width) for grayscale or (height, width, channels) for colour.
// Colour filters read the first three channels as RGB and leave any further
// channel (alpha) untouched.
package image

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

type dims struct {
	h, w, c int
}

func (d dims) at(y, x, ch int) int { return (y*d.w+x)*d.c + ch }

func imageDims(op string, a *tensor.Array) (dims, error) {
	s := a.Shape()
	switch len(s) {
	case 2:
		return dims{h: s[0], w: s[1], c: 1}, nil
	case 3:
		if s[2] == 0 {
			return dims{}, errors.NewShapeError(op, nil, s, "image has no channels")
		}
		return dims{h: s[0], w: s[1], c: s[2]}, nil
	}
	return dims{}, errors.NewShapeError(op, nil, s, "image must have shape (h, w) or (h, w, c)")
}

// imageOnly restricts a filter to numeric rank 2 or rank 3 arrays.
type imageOnly struct{}

func (imageOnly) Accepts(dtype tensor.DType, rank int) error {
	if !dtype.IsNumeric() {
		return fmt.Errorf("requires numeric image data, got %s", dtype)
	}
	if rank >= 0 && rank != 2 && rank != 3 {
		return fmt.Errorf("requires an image of rank 2 or 3, got rank %d", rank)
	}
	return nil
}

func nonNegative(p params.Param[float64], env *filters.Env, filter string) (float64, error) {
	v, err := p.Get(env.Params, filter)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 {
		return 0, errors.NewValidationError(p.String(), "must be non-negative", v)
	}
	return v, nil
}
