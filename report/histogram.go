// Package report renders evaluation charts with gonum/plot.
package report

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultBins は決定関数ヒストグラムのビン数
const DefaultBins = 30

var classColors = map[float64]color.Color{
	0: color.RGBA{R: 66, G: 133, B: 244, A: 160},
	1: color.RGBA{R: 219, G: 68, B: 55, A: 160},
}

// DecisionHistogram writes a PNG histogram of decision-function values split
// by true label. scores and labels must have the same length.
func DecisionHistogram(path string, scores, labels []float64, bins int) error {
	if len(scores) != len(labels) {
		return errors.NewDimensionError("report.DecisionHistogram", len(scores), len(labels), 0)
	}
	if len(scores) == 0 {
		return errors.NewValueError("report.DecisionHistogram", "no scores to plot")
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	byClass := map[float64]plotter.Values{}
	for i, s := range scores {
		byClass[labels[i]] = append(byClass[labels[i]], s)
	}

	p := plot.New()
	p.Title.Text = "SVC decision function on the test split"
	p.X.Label.Text = "decision value"
	p.Y.Label.Text = "count"
	p.Legend.Top = true

	plotted := 0
	for _, class := range []float64{0, 1} {
		vals := byClass[class]
		if len(vals) == 0 {
			continue
		}
		h, err := plotter.NewHist(vals, bins)
		if err != nil {
			return errors.Wrap(err, "build histogram")
		}
		h.FillColor = classColors[class]
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		plotted++
		if class == 1 {
			p.Legend.Add("clicked", h)
		} else {
			p.Legend.Add("not clicked", h)
		}
	}
	if plotted == 0 {
		return errors.NewValueError("report.DecisionHistogram", "labels must be 0 or 1")
	}
	p.Add(plotter.NewGrid())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create report dir for %s", path)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save report %s", path)
	}
	return nil
}
