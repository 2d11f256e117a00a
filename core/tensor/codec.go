package tensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// JSON representation:
//
//	array  nested rectangular JSON arrays of numbers or strings
//	tuple  {"tuple": [<dataset>, ...]}
//	list   {"list": [<dataset>, ...]}
//
// A bare number or string decodes to a 0-d array. Numeric arrays decode as
// Float64; use AsType to obtain Uint8 data. NaN, the value the Missing
// filter writes, is encoded as null. ±Inf has no JSON form and fails with a
// ValueError naming its index.

type container struct {
	Tuple []json.RawMessage `json:"tuple,omitempty"`
	List  []json.RawMessage `json:"list,omitempty"`
}

// DecodeJSON parses a dataset.
func DecodeJSON(data []byte) (Dataset, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.ErrEmptyData
	}
	if data[0] == '{' {
		var c container
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, errors.Wrap(err, "tensor: decode container")
		}
		switch {
		case c.Tuple != nil && c.List != nil:
			return nil, errors.NewValueError("tensor.DecodeJSON", `object must hold exactly one of "tuple" or "list"`)
		case c.Tuple != nil:
			items, err := decodeItems(c.Tuple)
			return Tuple(items), err
		case c.List != nil:
			items, err := decodeItems(c.List)
			return List(items), err
		default:
			return nil, errors.NewValueError("tensor.DecodeJSON", `object must hold "tuple" or "list"`)
		}
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "tensor: decode array")
	}
	return fromNested(v)
}

func decodeItems(raw []json.RawMessage) ([]Dataset, error) {
	items := make([]Dataset, len(raw))
	for i, r := range raw {
		d, err := DecodeJSON(r)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		items[i] = d
	}
	return items, nil
}

func fromNested(v interface{}) (*Array, error) {
	var shape []int
	for cur := v; ; {
		arr, ok := cur.([]interface{})
		if !ok {
			break
		}
		shape = append(shape, len(arr))
		if len(arr) == 0 {
			break
		}
		cur = arr[0]
	}

	var nums []float64
	var strs []string
	dtype := Float64
	var walk func(x interface{}, depth int) error
	walk = func(x interface{}, depth int) error {
		if depth == len(shape) {
			switch e := x.(type) {
			case float64, nil:
				if strs != nil {
					return errors.NewValueError("tensor.DecodeJSON", "mixed numbers and strings")
				}
				f, ok := e.(float64)
				if !ok {
					f = math.NaN()
				}
				nums = append(nums, f)
			case string:
				if nums != nil {
					return errors.NewValueError("tensor.DecodeJSON", "mixed numbers and strings")
				}
				dtype = String
				strs = append(strs, e)
			default:
				return errors.NewValueError("tensor.DecodeJSON", fmt.Sprintf("unsupported element %v", x))
			}
			return nil
		}
		arr, ok := x.([]interface{})
		if !ok || len(arr) != shape[depth] {
			return errors.NewShapeError("tensor.DecodeJSON", shape, nil, "array is not rectangular")
		}
		for _, e := range arr {
			if err := walk(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, err
	}

	if dtype == String {
		return &Array{shape: shape, dtype: String, str: strs}, nil
	}
	if nums == nil {
		nums = []float64{}
	}
	if shape == nil {
		shape = []int{}
	}
	return &Array{shape: shape, dtype: Float64, num: nums}, nil
}

// EncodeJSON renders a dataset in the format read by DecodeJSON.
func EncodeJSON(d Dataset) ([]byte, error) {
	v, err := toJSONValue(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// MarshalJSON implements json.Marshaler.
func (a *Array) MarshalJSON() ([]byte, error) {
	v, err := a.nested()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func toJSONValue(d Dataset) (interface{}, error) {
	switch x := d.(type) {
	case *Array:
		return x.nested()
	case Tuple:
		items, err := toJSONItems(x)
		return map[string]interface{}{"tuple": items}, err
	case List:
		items, err := toJSONItems(x)
		return map[string]interface{}{"list": items}, err
	}
	return nil, errors.NewValueError("tensor.EncodeJSON", fmt.Sprintf("unsupported dataset %T", d))
}

func toJSONItems(items []Dataset) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, d := range items {
		v, err := toJSONValue(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a *Array) nested() (interface{}, error) {
	pos := 0
	idx := make([]int, len(a.shape))
	var build func(depth int) (interface{}, error)
	build = func(depth int) (interface{}, error) {
		if depth == len(a.shape) {
			var v interface{}
			if a.dtype == String {
				v = a.str[pos]
			} else if f := a.num[pos]; math.IsInf(f, 0) {
				return nil, errors.NewValueError("tensor.EncodeJSON",
					fmt.Sprintf("JSON has no encoding for %v at index %v", f, idx))
			} else if !math.IsNaN(f) {
				v = f
			}
			pos++
			return v, nil
		}
		out := make([]interface{}, a.shape[depth])
		for i := range out {
			idx[depth] = i
			v, err := build(depth + 1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return build(0)
}
