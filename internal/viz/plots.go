package viz

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/bottlecap/internal/storage"
)

var ErrEmptySeries = errors.New("viz: no recorded ticks")

// SaveRunPlots writes contact angle, torque norm and end-effector position
// plots of a recorded run into dir and returns the file paths.
func SaveRunPlots(series *storage.Series, dir string) ([]string, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrEmptySeries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	z := make([]float64, series.Len())
	zDes := make([]float64, series.Len())
	errMM := make([]float64, series.Len())
	for i := range series.X {
		z[i] = series.X[i].Z
		zDes[i] = series.XDes[i].Z
		errMM[i] = series.X[i].Sub(series.XDes[i]).Norm() * 1000
	}

	charts := []struct {
		file, title, ylabel string
		lines               []namedLine
	}{
		{"theta.png", "Contact angle", "theta (rad)", []namedLine{{"theta", series.Theta}}},
		{"torque.png", "Commanded torque", "|tau| (Nm)", []namedLine{{"|tau|", series.TorqueNorm}}},
		{"height.png", "End-effector height", "z (m)", []namedLine{{"z", z}, {"z_des", zDes}}},
		{"tracking.png", "Position error", "error (mm)", []namedLine{{"error", errMM}}},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		path := filepath.Join(dir, c.file)
		if err := saveLinePlot(path, c.title, "time (s)", c.ylabel, series.Time, c.lines); err != nil {
			return paths, fmt.Errorf("%s: %w", c.file, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type namedLine struct {
	name string
	ys   []float64
}

func saveLinePlot(path, title, xlabel, ylabel string, xs []float64, lines []namedLine) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	var args []interface{}
	for _, l := range lines {
		if len(l.ys) != len(xs) {
			return fmt.Errorf("line %s has %d points, want %d", l.name, len(l.ys), len(xs))
		}
		pts := make(plotter.XYs, len(xs))
		for i := range xs {
			pts[i].X = xs[i]
			pts[i].Y = l.ys[i]
		}
		args = append(args, l.name, pts)
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return err
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
