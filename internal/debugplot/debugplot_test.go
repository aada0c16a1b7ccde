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

package debugplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/floodmask"
)

func TestPlotter(t *testing.T) {
	g := &floodmask.DTMGrid{
		X: sparse.ZerosDense(4, 5),
		Y: sparse.ZerosDense(4, 5),
		Z: sparse.ZerosDense(4, 5),
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			g.X.Set(float64(j), i, j)
			g.Y.Set(float64(i), i, j)
			g.Z.Set(float64(i), i, j)
		}
	}
	b, err := floodmask.ExtractBand(g, [2]float64{0.5, 2.5}, floodmask.WE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := floodmask.AlignAndRefine(b.X, b.Y, g.Bounds(), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	var v floodmask.Visualizer = &Plotter{Dir: dir}
	if err := v.Visualize(b, m); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty image")
	}
}

func TestPoints(t *testing.T) {
	x := sparse.ZerosDense(3*maxPoints + 7)
	y := sparse.ZerosDense(3*maxPoints + 7)
	if n := len(points(x, y)); n > maxPoints+1 {
		t.Errorf("have %d points, want at most %d", n, maxPoints+1)
	}
}
