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

package floodmask

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateGrid is returned when a grid or point set has no usable
// extent, for example when all of its corners coincide.
var ErrDegenerateGrid = errors.New("floodmask: degenerate grid")

// degenerateLength is the edge length below which a grid edge vector is
// considered to have no direction.
const degenerateLength = 1e-12

// RefinedMesh is a regular analysis mesh rotated to follow the source
// grid. X and Y have shape [ny, nx].
type RefinedMesh struct {
	X, Y  *sparse.DenseArray
	Angle float64
}

// Len returns the number of mesh points.
func (m *RefinedMesh) Len() int { return len(m.X.Elements) }

// Shape returns the mesh dimensions as [ny, nx].
func (m *RefinedMesh) Shape() []int { return m.X.Shape }

// GridAngle returns the rotation of a gridded coordinate set in radians,
// measured counter-clockwise from the x axis. The longer of the first-row
// edge and the first-column edge defines the orientation. The result lies
// in (-π/2, π/2].
func GridAngle(x, y *sparse.DenseArray) (float64, error) {
	if len(x.Shape) != 2 || len(y.Shape) != 2 {
		return math.NaN(), fmt.Errorf("floodmask: grid coordinates must be 2-D")
	}
	rows, cols := x.Shape[0], x.Shape[1]
	hx := x.Get(0, cols-1) - x.Get(0, 0)
	hy := y.Get(0, cols-1) - y.Get(0, 0)
	vx := x.Get(rows-1, 0) - x.Get(0, 0)
	vy := y.Get(rows-1, 0) - y.Get(0, 0)
	hn, vn := math.Hypot(hx, hy), math.Hypot(vx, vy)

	var angle float64
	switch {
	case hn < degenerateLength && vn < degenerateLength, math.IsNaN(hn + vn):
		return math.NaN(), ErrDegenerateGrid
	case hn >= vn:
		angle = math.Atan2(hy, hx)
	default:
		angle = math.Atan2(vy, vx) - math.Pi/2
	}
	return foldHalfTurn(angle), nil
}

// foldHalfTurn maps an angle into (-π/2, π/2]. A regular mesh looks the
// same after a half turn.
func foldHalfTurn(a float64) float64 {
	for a > math.Pi/2 {
		a -= math.Pi
	}
	for a <= -math.Pi/2 {
		a += math.Pi
	}
	return a
}

// AlignAndRefine builds a regular mesh with the given spacing that is
// centered on bounds, spans its width and height and is rotated to the
// orientation of the x/y grid.
func AlignAndRefine(x, y *sparse.DenseArray, bounds *geom.Bounds, spacing float64) (*RefinedMesh, error) {
	if !(spacing > 0) {
		return nil, &ConfigError{Field: "refinement_size", Value: spacing, Reason: "must be > 0"}
	}
	angle, err := GridAngle(x, y)
	if err != nil {
		return nil, err
	}
	w := bounds.Max.X - bounds.Min.X
	h := bounds.Max.Y - bounds.Min.Y
	if math.IsNaN(w) || math.IsNaN(h) || w < 0 || h < 0 {
		return nil, ErrDegenerateGrid
	}
	nx, ny := MeshSize(bounds, spacing)
	cx := (bounds.Min.X + bounds.Max.X) / 2
	cy := (bounds.Min.Y + bounds.Max.Y) / 2

	xs, ys := linspace(-w/2, w/2, nx), linspace(-h/2, h/2, ny)
	local := mat.NewDense(2, nx*ny, nil)
	for i, ly := range ys {
		for j, lx := range xs {
			local.Set(0, i*nx+j, lx)
			local.Set(1, i*nx+j, ly)
		}
	}
	sin, cos := math.Sincos(angle)
	rot := mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})
	var rotated mat.Dense
	rotated.Mul(rot, local)

	m := &RefinedMesh{
		X:     sparse.ZerosDense(ny, nx),
		Y:     sparse.ZerosDense(ny, nx),
		Angle: angle,
	}
	for k := 0; k < nx*ny; k++ {
		m.X.Elements[k] = rotated.At(0, k) + cx
		m.Y.Elements[k] = rotated.At(1, k) + cy
	}
	return m, nil
}

// MeshSize returns the number of mesh points along x and y for a mesh
// spanning bounds at the given spacing.
func MeshSize(bounds *geom.Bounds, spacing float64) (nx, ny int) {
	nx = int(math.Floor((bounds.Max.X-bounds.Min.X)/spacing)) + 1
	ny = int(math.Floor((bounds.Max.Y-bounds.Min.Y)/spacing)) + 1
	return nx, ny
}

// linspace returns n evenly spaced values from start to end inclusive.
func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = (start + end) / 2
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}
