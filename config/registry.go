package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/hashicorp/go-multierror"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/filters/image"
	"github.com/YuminosukeSato/dpemu/filters/text"
	"github.com/YuminosukeSato/dpemu/filters/timeseries"
	"github.com/YuminosukeSato/dpemu/linear"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// FilterConstructor builds a filter from its YAML description.
type FilterConstructor func(fs FilterSpec, a *Args) (filters.Filter, error)

// DefaultFilters maps YAML filter types to constructors. Callers may add
// their own before loading a file.
var DefaultFilters map[string]FilterConstructor

func init() {
	DefaultFilters = map[string]FilterConstructor{
		"Identity": func(FilterSpec, *Args) (filters.Filter, error) { return filters.Identity(), nil },
		"Constant": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return filters.Constant(a.Float("value")), nil
		},
		"Missing": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return filters.Missing(a.Float("probability"), a.Float("missing_value")), nil
		},
		"Clip": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return filters.Clip(a.Float("min"), a.Float("max")), nil
		},
		"GaussianNoise": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return filters.GaussianNoise(a.Float("mean"), a.Float("std")), nil
		},
		"GaussianNoiseTimeDependent": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return filters.GaussianNoiseTimeDependent(
				a.Float("mean"), a.Float("mean_increase"), a.Float("std"), a.Float("std_increase")), nil
		},
		"ApplyWithProbability": func(fs FilterSpec, a *Args) (filters.Filter, error) {
			mode, err := filters.ParseGateMode(fs.Mode)
			if err != nil {
				return nil, err
			}
			inner, err := a.Filter(fs.Inner, "filter")
			if err != nil {
				return nil, err
			}
			return filters.ApplyWithProbability(inner, a.Float("p"), filters.WithGateMode(mode)), nil
		},
		"ModifyAsDataType": func(fs FilterSpec, a *Args) (filters.Filter, error) {
			dt, err := tensor.ParseDType(fs.DType)
			if err != nil {
				return nil, err
			}
			if fs.Inner == nil {
				return nil, errors.NewValidationError("inner", "ModifyAsDataType needs an inner filter", nil)
			}
			inner, err := Build(*fs.Inner)
			if err != nil {
				return nil, err
			}
			return filters.ModifyAsDataType(dt, inner), nil
		},
		"Addition":       binary(filters.Addition),
		"Subtraction":    binary(filters.Subtraction),
		"Multiplication": binary(filters.Multiplication),
		"Division":       binary(filters.Division),
		"Max":            binary(filters.Max),
		"Min":            binary(filters.Min),

		"Brightness":           color(image.Brightness),
		"BrightnessVectorized": color(image.BrightnessVectorized),
		"Saturation":           color(image.Saturation),
		"SaturationVectorized": color(image.SaturationVectorized),
		"GaussianBlur": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return image.GaussianBlur(a.Float("std")), nil
		},
		"JPEGCompression": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return image.JPEGCompression(a.Int("quality")), nil
		},
		"Rotation": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return image.Rotation(a.Float("angle")), nil
		},
		"Resolution": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return image.Resolution(a.Int("k")), nil
		},
		"StainArea": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return image.StainArea(a.Float("probability"), a.Generator("radius"), a.Float("transparency")), nil
		},

		"OCRError": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return text.OCRError(a.OCRTable("table"), a.Float("p")), nil
		},
		"Uppercase": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return text.Uppercase(a.Float("p")), nil
		},

		"Gap": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return timeseries.Gap(a.Float("prob_break"), a.Float("prob_recover"), a.Float("missing_value")), nil
		},
		"SensorDrift": func(_ FilterSpec, a *Args) (filters.Filter, error) {
			return timeseries.SensorDrift(a.Float("magnitude")), nil
		},
	}
}

// DefaultModels maps YAML model types to model factories.
var DefaultModels = map[string]func() model.Model{
	"weighted_average":  func() model.Model { return linear.WeightedAveragePredictor{} },
	"linear_regression": func() model.Model { return linear.RegressionModel{} },
}

func binary(mk func(a, b filters.Filter) *filters.BinaryFilter) FilterConstructor {
	return func(fs FilterSpec, _ *Args) (filters.Filter, error) {
		if len(fs.Operands) != 2 {
			return nil, errors.NewValidationError("operands",
				fmt.Sprintf("%s needs exactly two operands", fs.Type), len(fs.Operands))
		}
		a, err := Build(fs.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := Build(fs.Operands[1])
		if err != nil {
			return nil, err
		}
		return mk(a, b), nil
	}
}

func color(mk func(tar, rat, valueRange params.Param[float64]) *image.ColorFilter) FilterConstructor {
	return func(_ FilterSpec, a *Args) (filters.Filter, error) {
		return mk(a.Float("tar"), a.Float("rat"), a.Float("range")), nil
	}
}

// Build constructs the filter fs describes.
func Build(fs FilterSpec) (filters.Filter, error) {
	ctor, ok := DefaultFilters[fs.Type]
	if !ok {
		return nil, errors.NewValidationError("type", "unknown filter type"+suggest(fs.Type, filterNames()), fs.Type)
	}
	a := &Args{filter: fs.Type, raw: fs.Params, used: map[string]bool{}}
	f, err := ctor(fs, a)
	if err != nil {
		return nil, errors.Wrapf(err, "filter %s", fs.Type)
	}
	if err := a.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Args reads the params of a FilterSpec. Errors are collected and reported
// by Err, together with any params no constructor asked for.
type Args struct {
	filter string
	raw    map[string]any
	used   map[string]bool
	errs   []error
}

func (a *Args) lookup(name string) (any, string, bool) {
	a.used[name] = true
	v, ok := a.raw[name]
	if !ok {
		a.errs = append(a.errs, errors.NewValidationError(name,
			fmt.Sprintf("filter %s requires parameter %q", a.filter, name), nil))
		return nil, "", false
	}
	if s, isStr := v.(string); isStr && strings.HasPrefix(s, "$") && len(s) > 1 {
		return nil, s[1:], true
	}
	return v, "", true
}

func (a *Args) fail(name, reason string, v any) {
	a.errs = append(a.errs, errors.NewValidationError(name,
		fmt.Sprintf("filter %s: %s", a.filter, reason), v))
}

// Float reads a number or a "$key" reference.
func (a *Args) Float(name string) params.Param[float64] {
	v, key, ok := a.lookup(name)
	switch {
	case !ok:
		return params.Param[float64]{}
	case key != "":
		return params.Key[float64](key)
	}
	switch x := v.(type) {
	case int:
		return params.Value(float64(x))
	case float64:
		return params.Value(x)
	}
	a.fail(name, "expected a number or $key", v)
	return params.Param[float64]{}
}

// Int reads an integer or a "$key" reference.
func (a *Args) Int(name string) params.Param[int] {
	v, key, ok := a.lookup(name)
	switch {
	case !ok:
		return params.Param[int]{}
	case key != "":
		return params.Key[int](key)
	}
	if x, isInt := v.(int); isInt {
		return params.Value(x)
	}
	a.fail(name, "expected an integer or $key", v)
	return params.Param[int]{}
}

// Generator reads a "$key" reference, a number (a constant generator) or
// one of {gaussian: {mean, std}} and {uniform: {min, max}}.
func (a *Args) Generator(name string) params.Param[params.Generator] {
	v, key, ok := a.lookup(name)
	switch {
	case !ok:
		return params.Param[params.Generator]{}
	case key != "":
		return params.Key[params.Generator](key)
	}
	switch x := v.(type) {
	case int:
		return params.Value[params.Generator](params.Constant(float64(x)))
	case float64:
		return params.Value[params.Generator](params.Constant(x))
	case map[string]any:
		if g, ok := generatorFromMap(x); ok {
			return params.Value(g)
		}
	}
	a.fail(name, "expected $key, a number, {gaussian: {mean, std}} or {uniform: {min, max}}", v)
	return params.Param[params.Generator]{}
}

func generatorFromMap(m map[string]any) (params.Generator, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for kind, body := range m {
		fields, ok := body.(map[string]any)
		if !ok {
			return nil, false
		}
		num := func(k string) (float64, bool) {
			switch x := fields[k].(type) {
			case int:
				return float64(x), true
			case float64:
				return x, true
			}
			return 0, false
		}
		switch kind {
		case "gaussian":
			mean, ok1 := num("mean")
			std, ok2 := num("std")
			return params.Gaussian{Mean: mean, Std: std}, ok1 && ok2 && len(fields) == 2
		case "uniform":
			lo, ok1 := num("min")
			hi, ok2 := num("max")
			return params.Uniform{Min: lo, Max: hi}, ok1 && ok2 && len(fields) == 2
		}
	}
	return nil, false
}

// OCRTable reads a "$key" reference or the path of a JSON table.
func (a *Args) OCRTable(name string) params.Param[text.OCRTable] {
	v, key, ok := a.lookup(name)
	switch {
	case !ok:
		return params.Param[text.OCRTable]{}
	case key != "":
		return params.Key[text.OCRTable](key)
	}
	path, isStr := v.(string)
	if !isStr {
		a.fail(name, "expected $key or the path of a JSON table", v)
		return params.Param[text.OCRTable]{}
	}
	table, err := loadOCRTable(path)
	if err != nil {
		a.errs = append(a.errs, errors.Wrapf(err, "filter %s", a.filter))
		return params.Param[text.OCRTable]{}
	}
	return params.Value(table)
}

// Filter builds inner, or reads a "$key" reference from param when inner
// is nil.
func (a *Args) Filter(inner *FilterSpec, param string) (params.Param[filters.Filter], error) {
	if inner != nil {
		f, err := Build(*inner)
		if err != nil {
			return params.Param[filters.Filter]{}, err
		}
		return params.Value(f), nil
	}
	_, key, ok := a.lookup(param)
	if ok && key == "" {
		a.fail(param, "expected an inner filter or $key", a.raw[param])
	}
	return params.Key[filters.Filter](key), nil
}

// Err reports the collected problems and any unused params.
func (a *Args) Err() error {
	errs := a.errs
	for _, name := range sortedKeys(a.raw) {
		if !a.used[name] {
			errs = append(errs, errors.NewValidationError(name,
				fmt.Sprintf("filter %s has no parameter %q", a.filter, name), a.raw[name]))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return joinErrors(errs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func filterNames() []string { return sortedKeys(DefaultFilters) }
func modelNames() []string  { return sortedKeys(DefaultModels) }

// suggest returns a " (did you mean ...?)" hint or "".
func suggest(name string, candidates []string) string {
	best, bestDist := "", 4
	for _, c := range candidates {
		if d := levenshtein.Distance(strings.ToLower(name), strings.ToLower(c), nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func itoa(i int) string { return strconv.Itoa(i) }

func joinErrors(errs []error) error {
	return multierror.Append(nil, errs...).ErrorOrNil()
}
