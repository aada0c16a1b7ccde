/*
Copyright © 2025 the floodmask authors.
This file is part of floodmask.

floodmask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

floodmask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with floodmask.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package debugplot draws the refinement band and mesh of a mask run so
// that their placement can be checked by eye.
package debugplot

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/floodmask"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // png format
)

// FileName is the name of the image written by Plotter.
const FileName = "band_mesh.png"

// maxPoints is the number of points per layer above which the points
// are thinned before plotting.
const maxPoints = 20000

// Plotter writes an image of the band and the mesh to Dir. It
// satisfies floodmask.Visualizer.
type Plotter struct {
	Dir string

	// Width and Height are the image size. Zero selects 6 inches.
	Width, Height vg.Length
}

// Visualize draws the band points in grey and the mesh points in blue
// with the outline of each.
func (pl *Plotter) Visualize(b *floodmask.Band, m *floodmask.RefinedMesh) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("band (%s) and mesh rotated by %.2f°", b.Orientation, m.Angle*180/math.Pi)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	bandPts, err := plotter.NewScatter(points(b.X, b.Y))
	if err != nil {
		return fmt.Errorf("debugplot: band points: %w", err)
	}
	bandPts.Color = color.NRGBA{127, 127, 127, 255}
	bandPts.Radius = 0.75
	bandPts.Shape = draw.CircleGlyph{}

	meshPts, err := plotter.NewScatter(points(m.X, m.Y))
	if err != nil {
		return fmt.Errorf("debugplot: mesh points: %w", err)
	}
	meshPts.Color = color.NRGBA{0, 0, 255, 255}
	meshPts.Radius = 0.5
	meshPts.Shape = draw.CircleGlyph{}

	bandLine, err := plotter.NewLine(outline(floodmask.BandOutline(b)))
	if err != nil {
		return fmt.Errorf("debugplot: band outline: %w", err)
	}
	bandLine.Color = color.NRGBA{0, 0, 0, 255}
	meshLine, err := plotter.NewLine(outline(floodmask.MeshOutline(m)))
	if err != nil {
		return fmt.Errorf("debugplot: mesh outline: %w", err)
	}
	meshLine.Color = color.NRGBA{255, 0, 0, 255}

	p.Add(bandPts, meshPts, bandLine, meshLine)
	p.Legend.Add("band", bandPts)
	p.Legend.Add("mesh", meshPts)
	p.Legend.Add("band outline", bandLine)
	p.Legend.Add("mesh outline", meshLine)
	p.Legend.Top = true

	w, h := pl.Width, pl.Height
	if w == 0 {
		w = 6 * vg.Inch
	}
	if h == 0 {
		h = 6 * vg.Inch
	}
	if err := p.Save(w, h, filepath.Join(pl.Dir, FileName)); err != nil {
		return fmt.Errorf("debugplot: %w", err)
	}
	return nil
}

// points returns the x/y pairs of a coordinate array, thinned to at most
// about maxPoints.
func points(x, y *sparse.DenseArray) plotter.XYs {
	step := len(x.Elements)/maxPoints + 1
	xy := make(plotter.XYs, 0, len(x.Elements)/step+1)
	for i := 0; i < len(x.Elements); i += step {
		xy = append(xy, plotter.XY{X: x.Elements[i], Y: y.Elements[i]})
	}
	return xy
}

// outline returns the outer ring of a polygon.
func outline(p geom.Polygon) plotter.XYs {
	if len(p) == 0 {
		return nil
	}
	xy := make(plotter.XYs, len(p[0]))
	for i, pt := range p[0] {
		xy[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	return xy
}
