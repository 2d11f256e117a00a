// Package plotting presents sweep results: as text tables grouped by
// model, and as gonum/plot charts of a score against an error parameter.
package plotting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/runner"
)

// PrintResults writes one table per model, in the order the models first
// appear in results. Columns named in ignore are left out.
func PrintResults(w io.Writer, results []runner.Result, ignore ...string) error {
	skip := make(map[string]bool, len(ignore))
	for _, col := range ignore {
		skip[col] = true
	}

	for i, name := range modelNames(results) {
		rows := byModel(results, name)
		errCols := unionKeys(rows, func(r runner.Result) params.Params { return r.ErrParams })
		modelCols := unionKeys(rows, func(r runner.Result) params.Params { return r.ModelParams })
		scoreCols := scoreNames(rows)

		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "Model: %s\n", name); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		var header []string
		for _, col := range concat(errCols, modelCols, scoreCols) {
			if !skip[col] {
				header = append(header, col)
			}
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, r := range rows {
			var cells []string
			for _, col := range errCols {
				if !skip[col] {
					cells = append(cells, cell(r.ErrParams, col))
				}
			}
			for _, col := range modelCols {
				if !skip[col] {
					cells = append(cells, cell(r.ModelParams, col))
				}
			}
			for _, col := range scoreCols {
				if !skip[col] {
					cells = append(cells, formatValue(r.Scores[col]))
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func cell(p params.Params, key string) string {
	v, ok := p[key]
	if !ok {
		return "-"
	}
	return formatValue(v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4g", x)
	case float32:
		return fmt.Sprintf("%.4g", x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

func modelNames(results []runner.Result) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range results {
		if !seen[r.Model] {
			seen[r.Model] = true
			names = append(names, r.Model)
		}
	}
	return names
}

func byModel(results []runner.Result, name string) []runner.Result {
	var out []runner.Result
	for _, r := range results {
		if r.Model == name {
			out = append(out, r)
		}
	}
	return out
}

func unionKeys(rows []runner.Result, get func(runner.Result) params.Params) []string {
	seen := map[string]bool{}
	var keys []string
	for _, r := range rows {
		for k := range get(r) {
			if k == params.SeedKey || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func scoreNames(rows []runner.Result) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range rows {
		for _, k := range r.Scores.Names() {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
