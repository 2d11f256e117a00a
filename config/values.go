package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/filters/text"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Dictionary values that are not plain scalars are written as one-key
// maps:
//
//	radius: {gaussian: {mean: 2, std: 1}}
//	radius: {uniform: {min: 1, max: 3}}
//	table:  {ocr_table: tables/ocr.json}
//	noise:  {filter: {type: GaussianNoise, params: {mean: 0, std: 2}}}
//
// DecodeValue turns them into the params.Generator, text.OCRTable and
// filters.Filter values that "$key" filter parameters look up. Scalars,
// lists and other maps are returned unchanged.
func DecodeValue(name string, v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v, nil
	}
	switch {
	case m["gaussian"] != nil, m["uniform"] != nil:
		g, ok := generatorFromMap(m)
		if !ok {
			return nil, errors.NewValidationError(name,
				"expected {gaussian: {mean, std}} or {uniform: {min, max}}", v)
		}
		return g, nil
	case m["ocr_table"] != nil:
		path, ok := m["ocr_table"].(string)
		if !ok {
			return nil, errors.NewValidationError(name, "ocr_table must be a file path", v)
		}
		return loadOCRTable(path)
	case m["filter"] != nil:
		var fs FilterSpec
		if err := remarshal(m["filter"], &fs); err != nil {
			return nil, errors.Wrapf(err, "parameter %s", name)
		}
		if err := specValidate.Struct(fs); err != nil {
			return nil, errors.Wrapf(err, "parameter %s", name)
		}
		f, err := Build(fs)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", name)
		}
		return f, nil
	}
	return v, nil
}

// DecodeParams applies DecodeValue to every entry of p.
func DecodeParams(p map[string]any) (params.Params, error) {
	out := make(params.Params, len(p))
	for _, k := range sortedKeys(p) {
		v, err := DecodeValue(k, p[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func loadOCRTable(path string) (text.OCRTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open OCR table")
	}
	defer f.Close()
	table, err := text.LoadOCRTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "OCR table %s", path)
	}
	return table, nil
}

// remarshal decodes a generic YAML value into out, rejecting unknown fields.
func remarshal(in, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "config: decode")
	}
	return nil
}
