package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Default image size.
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

var axisColors = [3]color.Color{
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
}

var axisNames = [3]string{"x", "y", "z"}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// Plot builds a chart with one raw and one filtered line per axis.
func Plot(t Trajectory) (*plot.Plot, error) {
	if len(t.Points) == 0 {
		return nil, ErrEmpty
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s: raw vs filtered", t.Handedness, t.Keypoint)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Position (m)"
	p.Add(plotter.NewGrid())

	for axis := range axisNames {
		raw := make(plotter.XYs, len(t.Points))
		filtered := make(plotter.XYs, len(t.Points))
		for i, pt := range t.Points {
			raw[i] = plotter.XY{X: pt.Seconds, Y: component(pt.Raw, axis)}
			filtered[i] = plotter.XY{X: pt.Seconds, Y: component(pt.Filtered, axis)}
		}

		rawLine, err := plotter.NewLine(raw)
		if err != nil {
			return nil, err
		}
		rawLine.Color = axisColors[axis]
		rawLine.Width = vg.Points(0.5)
		rawLine.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}

		filteredLine, err := plotter.NewLine(filtered)
		if err != nil {
			return nil, err
		}
		filteredLine.Color = axisColors[axis]
		filteredLine.Width = vg.Points(1.5)

		p.Add(rawLine, filteredLine)
		p.Legend.Add(axisNames[axis]+" raw", rawLine)
		p.Legend.Add(axisNames[axis]+" filtered", filteredLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Legend.ThumbnailWidth = vg.Points(20)
	return p, nil
}

// WritePNG renders the trajectory chart as a PNG.
func WritePNG(w io.Writer, t Trajectory, width, height vg.Length) error {
	p, err := Plot(t)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}
