package plotting

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/runner"
)

// ScoreOptions selects what VisualizeScores draws.
type ScoreOptions struct {
	Score    string // score on the y axis
	ErrParam string // error parameter on the x axis
	Title    string
}

// VisualizeScores draws one line per model and model parameter set,
// showing Score against ErrParam.
func VisualizeScores(results []runner.Result, opts ScoreOptions) (*plot.Plot, error) {
	series := map[string]plotter.XYs{}
	var labels []string
	for _, r := range results {
		score, ok := r.Scores[opts.Score]
		if !ok {
			continue
		}
		x, err := numeric(r.ErrParams, opts.ErrParam)
		if err != nil {
			return nil, err
		}
		label := seriesLabel(r)
		if _, ok := series[label]; !ok {
			labels = append(labels, label)
		}
		series[label] = append(series[label], plotter.XY{X: x, Y: score})
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("VisualizeScores", fmt.Sprintf("no result has score %q", opts.Score))
	}

	p := newPlot(opts.Title, opts.ErrParam, opts.Score)
	for i, label := range labels {
		if err := addLine(p, i, label, series[label]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// BestParamOptions selects what VisualizeBestModelParams draws.
type BestParamOptions struct {
	Model          string
	ModelParam     string
	Score          string
	HigherIsBetter bool
	ErrParam       string
	Title          string
}

// VisualizeBestModelParams draws, for each value of ErrParam, the value of
// ModelParam that gave Model its best Score there.
func VisualizeBestModelParams(results []runner.Result, opts BestParamOptions) (*plot.Plot, error) {
	xys, err := BestModelParams(results, opts)
	if err != nil {
		return nil, err
	}
	p := newPlot(opts.Title, opts.ErrParam, opts.ModelParam)
	if err := addLine(p, 0, opts.Model, xys); err != nil {
		return nil, err
	}
	return p, nil
}

// BestModelParams returns the points VisualizeBestModelParams draws,
// sorted by the error parameter.
func BestModelParams(results []runner.Result, opts BestParamOptions) (plotter.XYs, error) {
	type best struct {
		x, param, score float64
	}
	byPoint := map[int]*best{}
	for _, r := range results {
		score, ok := r.Scores[opts.Score]
		if r.Model != opts.Model || !ok {
			continue
		}
		x, err := numeric(r.ErrParams, opts.ErrParam)
		if err != nil {
			return nil, err
		}
		param, err := numeric(r.ModelParams, opts.ModelParam)
		if err != nil {
			return nil, err
		}
		b, seen := byPoint[r.Point]
		if !seen || (opts.HigherIsBetter && score > b.score) || (!opts.HigherIsBetter && score < b.score) {
			byPoint[r.Point] = &best{x: x, param: param, score: score}
		}
	}
	if len(byPoint) == 0 {
		return nil, errors.NewValueError("BestModelParams",
			fmt.Sprintf("no result of model %q has score %q", opts.Model, opts.Score))
	}

	xys := make(plotter.XYs, 0, len(byPoint))
	for _, b := range byPoint {
		xys = append(xys, plotter.XY{X: b.x, Y: b.param})
	}
	sort.Slice(xys, func(a, b int) bool { return xys[a].X < xys[b].X })
	return xys, nil
}

// Save writes p to path; the extension picks the format (png, svg, pdf...).
func Save(p *plot.Plot, path string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, i int, label string, xys plotter.XYs) error {
	sort.Slice(xys, func(a, b int) bool { return xys[a].X < xys[b].X })
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return errors.Wrapf(err, "plotting %s", label)
	}
	line.Color = plotutil.Color(i)
	points.Color = plotutil.Color(i)
	points.Shape = plotutil.Shape(i)
	p.Add(line, points)
	p.Legend.Add(label, line, points)
	return nil
}

func seriesLabel(r runner.Result) string {
	keys := r.ModelParams.Keys()
	if len(keys) == 0 {
		return r.Model
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, formatValue(r.ModelParams[k]))
	}
	return r.Model + " (" + strings.Join(parts, ", ") + ")"
}

func numeric(p params.Params, key string) (float64, error) {
	return params.Key[float64](key).Get(params.NewResolver(p), "plotting")
}
