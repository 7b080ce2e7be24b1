// Package output writes the products of a PNP run: field snapshots as PNG
// line plots and the per level history as CSV.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/pnp"
)

// Field is one curve set of a snapshot, Exact is drawn alongside when set.
type Field struct {
	Name  string
	F     *fem.Function
	Exact func(x float64) float64
}

type Snapshots struct {
	Dir           string
	Width, Height vg.Length
}

func NewSnapshots(dir string) (s *Snapshots, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	s = &Snapshots{
		Dir:    dir,
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
	}
	return
}

// FileName is the snapshot path of a field, iteration < 0 marks the final
// solution of a level. Time dependent runs carry the step in the name.
func (s *Snapshots) FileName(field string, stage pnp.Stage, iteration int) string {
	name := field
	if stage.Step > 0 {
		name += fmt.Sprintf("_S%03d", stage.Step)
	}
	name += fmt.Sprintf("_L%02d", stage.Level)
	if iteration >= 0 {
		name += fmt.Sprintf("_it%02d", iteration)
	}
	return filepath.Join(s.Dir, name+".png")
}

// Write plots every field to its own file and returns the file names.
func (s *Snapshots) Write(stage pnp.Stage, iteration int, fields []Field) (files []string, err error) {
	for _, fld := range fields {
		var p *plot.Plot
		if p, err = fieldPlot(fld, stage, iteration); err != nil {
			return
		}
		name := s.FileName(fld.Name, stage, iteration)
		if err = p.Save(s.Width, s.Height, name); err != nil {
			err = fmt.Errorf("saving %s: %w", name, err)
			return
		}
		files = append(files, name)
	}
	return
}

func fieldPlot(fld Field, stage pnp.Stage, iteration int) (p *plot.Plot, err error) {
	p = plot.New()
	if iteration < 0 {
		p.Title.Text = fmt.Sprintf("%s, level %d, %d cells", fld.Name, stage.Level, fld.F.Mesh.NumCells())
	} else {
		p.Title.Text = fmt.Sprintf("%s, level %d, Newton iteration %d", fld.Name, stage.Level, iteration)
	}
	if stage.Step > 0 {
		p.Title.Text += fmt.Sprintf(", t = %g", stage.Time)
	}
	p.X.Label.Text = "x"
	p.Y.Label.Text = fld.Name
	var (
		vx  = fld.F.Mesh.VX
		pts = make(plotter.XYs, len(vx))
	)
	for i, x := range vx {
		pts[i].X, pts[i].Y = x, fld.F.Values[i]
	}
	var line *plotter.Line
	if line, err = plotter.NewLine(pts); err != nil {
		return
	}
	line.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add("computed", line)
	if fld.Exact != nil {
		ex := make(plotter.XYs, len(vx))
		for i, x := range vx {
			ex[i].X, ex[i].Y = x, fld.Exact(x)
		}
		var el *plotter.Line
		if el, err = plotter.NewLine(ex); err != nil {
			return
		}
		el.Color = plotutil.Color(1)
		el.Dashes = plotutil.Dashes(1)
		p.Add(el)
		p.Legend.Add("exact", el)
	}
	p.Add(plotter.NewGrid())
	return
}
