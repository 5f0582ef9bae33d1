package output

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotResidualHistory saves a semi-log plot of the residual norm against
// iteration. The format follows the file extension.
func PlotResidualHistory(path, title string, history []float64) (err error) {
	if len(history) == 0 {
		return fmt.Errorf("empty residual history")
	}
	pts := make(plotter.XYs, 0, len(history))
	for i, r := range history {
		if r <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: r})
	}
	if len(pts) == 0 {
		return fmt.Errorf("residual history has no positive entries")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Residual"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("residual plot: %w", err)
	}
	p.Add(line, points)
	if err = p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving residual plot: %w", err)
	}
	return
}
