// Package report renders post-run charts of the error history.
package report

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/droplet-sim/droplet-sim/sim"
)

// ErrNoRecords is returned when there is nothing to plot.
var ErrNoRecords = errors.New("no error records")

// ErrorHistoryPlot charts max, mean and rms deviation against time.
func ErrorHistoryPlot(records []sim.ErrorRecord, title string) (*plot.Plot, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	maxXY := make(plotter.XYs, len(records))
	meanXY := make(plotter.XYs, len(records))
	rmsXY := make(plotter.XYs, len(records))
	for i, r := range records {
		maxXY[i] = plotter.XY{X: r.Time, Y: r.Max}
		meanXY[i] = plotter.XY{X: r.Time, Y: r.Mean}
		rmsXY[i] = plotter.XY{X: r.Time, Y: r.RMS}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "|u - u_ref| [m/s]"
	p.Legend.Top = true
	if err := plotutil.AddLines(p, "max", maxXY, "mean", meanXY, "rms", rmsXY); err != nil {
		return nil, fmt.Errorf("add lines: %w", err)
	}
	return p, nil
}

// WritePNG renders p to name on fs.
func WritePNG(fs billy.Filesystem, name string, p *plot.Plot) (err error) {
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
