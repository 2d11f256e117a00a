// Package text implements corruptions of string arrays, such as OCR-style
// character confusions.
package text

import (
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Replacements lists what a character may be misread as, with relative
// weights.
type Replacements struct {
	Options []string
	Weights []float64
}

// OCRTable maps a character to its possible misreadings.
type OCRTable map[rune]Replacements

// Validate checks that every entry has matching, positive weights.
func (t OCRTable) Validate() error {
	for c, r := range t {
		if len(r.Options) == 0 || len(r.Options) != len(r.Weights) {
			return errors.NewValidationError(string(c), "options and weights must be non-empty and of equal length", r)
		}
		total := 0.0
		for _, w := range r.Weights {
			if w < 0 {
				return errors.NewValidationError(string(c), "weights must be non-negative", r.Weights)
			}
			total += w
		}
		if total == 0 {
			return errors.NewValidationError(string(c), "weights must not all be zero", r.Weights)
		}
	}
	return nil
}

// LoadOCRTable reads a table in the JSON layout
//
//	{"a": [["e", "o"], [0.7, 0.3]], ...}
//
// where keys are single characters.
func LoadOCRTable(r io.Reader) (OCRTable, error) {
	var raw map[string][2]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "text: decode OCR table")
	}
	t := make(OCRTable, len(raw))
	for key, pair := range raw {
		if utf8.RuneCountInString(key) != 1 {
			return nil, errors.NewValidationError(key, "OCR table keys must be single characters", key)
		}
		var rep Replacements
		if err := json.Unmarshal(pair[0], &rep.Options); err != nil {
			return nil, errors.Wrapf(err, "text: options of %q", key)
		}
		if err := json.Unmarshal(pair[1], &rep.Weights); err != nil {
			return nil, errors.Wrapf(err, "text: weights of %q", key)
		}
		c, _ := utf8.DecodeRuneInString(key)
		t[c] = rep
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// OCRFilter substitutes characters according to an OCRTable.
type OCRFilter struct {
	filters.CopyOnWrite
	filters.Text
	table params.Param[OCRTable]
	p     params.Param[float64]
}

// OCRError returns a filter that, for each character found in the table,
// replaces it with probability p by one of its options drawn by weight.
func OCRError(table params.Param[OCRTable], p params.Param[float64]) *OCRFilter {
	return &OCRFilter{table: table, p: p}
}

func (f *OCRFilter) Name() string   { return "OCRError" }
func (f *OCRFilter) Keys() []string { return params.KeysOf(f.table, f.p) }

func (f *OCRFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	table, err := f.table.Get(env.Params, f.Name())
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	p, err := filters.Probability(f.p, env, f.Name())
	if err != nil {
		return nil, err
	}
	if p == 0 || len(table) == 0 {
		return data, nil
	}

	pickers := make(map[rune]distuv.Categorical, len(table))
	for c, r := range table {
		pickers[c] = distuv.NewCategorical(r.Weights, env.Rand)
	}

	out := data.Clone()
	strs := out.Strings()
	var b strings.Builder
	for i, s := range strs {
		b.Reset()
		for j := 0; j < len(s); {
			c, size := utf8.DecodeRuneInString(s[j:])
			picker, ok := pickers[c]
			if !ok || invalidRune(c, size) || !filters.Fires(env.Rand, p) {
				b.WriteString(s[j : j+size])
			} else {
				b.WriteString(table[c].Options[int(picker.Rand())])
			}
			j += size
		}
		strs[i] = b.String()
	}
	return out, nil
}

// UppercaseFilter randomly uppercases characters.
type UppercaseFilter struct {
	filters.CopyOnWrite
	filters.Text
	p params.Param[float64]
}

// Uppercase returns a filter that uppercases each character with
// probability p.
func Uppercase(p params.Param[float64]) *UppercaseFilter {
	return &UppercaseFilter{p: p}
}

func (f *UppercaseFilter) Name() string   { return "Uppercase" }
func (f *UppercaseFilter) Keys() []string { return params.KeysOf(f.p) }

func (f *UppercaseFilter) Apply(data *tensor.Array, env *filters.Env) (*tensor.Array, error) {
	p, err := filters.Probability(f.p, env, f.Name())
	if err != nil {
		return nil, err
	}
	if p == 0 {
		return data, nil
	}
	out := data.Clone()
	strs := out.Strings()
	var b strings.Builder
	for i, s := range strs {
		b.Reset()
		for j := 0; j < len(s); {
			c, size := utf8.DecodeRuneInString(s[j:])
			if filters.Fires(env.Rand, p) && !invalidRune(c, size) {
				b.WriteString(strings.ToUpper(string(c)))
			} else {
				b.WriteString(s[j : j+size])
			}
			j += size
		}
		strs[i] = b.String()
	}
	return out, nil
}

// invalidRune reports a byte that is not valid UTF-8. Such bytes are copied
// through unchanged.
func invalidRune(c rune, size int) bool { return c == utf8.RuneError && size == 1 }
