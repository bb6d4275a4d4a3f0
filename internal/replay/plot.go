package replay

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotTrajectory writes a PNG of the horizontal position over time: the
// raw detection anchor, the ground truth when known and the primary
// track's smoothed position.
func PlotTrajectory(r Result, path string) error {
	p := plot.New()
	p.Title.Text = "Overlay trajectory"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "X (display px)"

	primary := r.PrimaryTrack()
	raw := make(plotter.XYs, 0, len(r.Frames))
	truth := make(plotter.XYs, 0, len(r.Frames))
	smooth := make(plotter.XYs, 0, len(r.Frames))
	for _, fr := range r.Frames {
		x := float64(fr.Index)
		if fr.Raw != nil {
			raw = append(raw, plotter.XY{X: x, Y: fr.Raw.X})
		}
		if fr.Truth != nil {
			truth = append(truth, plotter.XY{X: x, Y: fr.Truth.X})
		}
		if st, ok := stateFor(fr.States, primary); ok && st.Visible {
			smooth = append(smooth, plotter.XY{X: x, Y: st.Position.X})
		}
	}

	series := []struct {
		name string
		pts  plotter.XYs
		c    color.RGBA
		w    vg.Length
	}{
		{"raw", raw, color.RGBA{R: 200, G: 200, B: 200, A: 255}, vg.Points(1)},
		{"truth", truth, color.RGBA{R: 46, G: 204, B: 113, A: 255}, vg.Points(1)},
		{"smoothed", smooth, color.RGBA{R: 192, G: 57, B: 43, A: 255}, vg.Points(1.5)},
	}
	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("%s line: %w", s.name, err)
		}
		line.Color = s.c
		line.Width = s.w
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
