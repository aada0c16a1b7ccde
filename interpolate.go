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
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"
	"github.com/fogleman/delaunay"
)

// ErrNoOverlap is returned when no mesh point falls inside the band, so
// the refined surface would be undefined everywhere.
var ErrNoOverlap = errors.New("floodmask: refined mesh does not overlap band")

// baryTol is the barycentric coordinate slack that still counts a point
// as inside a triangle.
const baryTol = 1e-9

// Triangulation is a Delaunay triangulation of the band sample
// locations together with a spatial index of its triangles. It only
// depends on the sample locations, so one Triangulation can interpolate
// any number of elevation sets sampled at the same points.
type Triangulation struct {
	x, y  []float64
	index *rtree.Rtree
}

// triangle is a Delaunay triangle indexed by the R-tree. The embedded
// ring satisfies geom.Geom; Bounds is cached.
type triangle struct {
	geom.Polygon
	v     [3]int
	b     *geom.Bounds
	x3    float64
	y3    float64
	t     [4]float64 // inverse of the barycentric transform
	valid bool
}

func (t *triangle) Bounds() *geom.Bounds { return t.b }

// weights returns the barycentric weights of (x, y) and whether the point
// is inside the triangle.
func (t *triangle) weights(x, y float64) (w [3]float64, in bool) {
	dx, dy := x-t.x3, y-t.y3
	w[0] = t.t[0]*dx + t.t[1]*dy
	w[1] = t.t[2]*dx + t.t[3]*dy
	w[2] = 1 - w[0] - w[1]
	return w, w[0] >= -baryTol && w[1] >= -baryTol && w[2] >= -baryTol
}

// NewTriangulation triangulates the sample locations of a band.
func NewTriangulation(b *Band) (*Triangulation, error) {
	if b == nil || b.Len() == 0 {
		return nil, ErrEmptyBand
	}
	tr := &Triangulation{
		x:     make([]float64, 0, b.Len()),
		y:     make([]float64, 0, b.Len()),
		index: rtree.NewTree(25, 50),
	}
	pts := make([]delaunay.Point, 0, b.Len())
	for i := range b.X.Elements {
		x, y := b.X.Elements[i], b.Y.Elements[i]
		tr.x = append(tr.x, x)
		tr.y = append(tr.y, y)
		pts = append(pts, delaunay.Point{X: x, Y: y})
	}
	d, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: triangulating %d band points: %v", ErrDegenerateGrid, len(pts), err)
	}
	n := 0
	for i := 0; i+2 < len(d.Triangles); i += 3 {
		t := newTriangle(tr.x, tr.y, d.Triangles[i], d.Triangles[i+1], d.Triangles[i+2])
		if !t.valid {
			continue
		}
		tr.index.Insert(t)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: band points are collinear", ErrDegenerateGrid)
	}
	return tr, nil
}

func newTriangle(x, y []float64, a, b, c int) *triangle {
	t := &triangle{v: [3]int{a, b, c}, x3: x[c], y3: y[c]}
	det := (y[b]-y[c])*(x[a]-x[c]) + (x[c]-x[b])*(y[a]-y[c])
	if math.Abs(det) < degenerateLength*degenerateLength || math.IsNaN(det) {
		return t
	}
	t.t = [4]float64{
		(y[b] - y[c]) / det, (x[c] - x[b]) / det,
		(y[c] - y[a]) / det, (x[a] - x[c]) / det,
	}
	t.Polygon = geom.Polygon{{
		{X: x[a], Y: y[a]}, {X: x[b], Y: y[b]}, {X: x[c], Y: y[c]}, {X: x[a], Y: y[a]},
	}}
	t.b = t.Polygon.Bounds()
	t.valid = true
	return t
}

// locate returns the triangle containing (x, y) with the barycentric
// weights of the point, or nil if the point is outside the convex hull.
func (tr *Triangulation) locate(x, y float64) (*triangle, [3]float64) {
	p := geom.Point{X: x, Y: y}
	for _, s := range tr.index.SearchIntersect(p.Bounds()) {
		t := s.(*triangle)
		if w, in := t.weights(x, y); in {
			return t, w
		}
	}
	return nil, [3]float64{}
}

// Interpolator is a piecewise linear interpolator over a band. It
// returns NaN outside the convex hull of the band samples.
type Interpolator struct {
	tri *Triangulation
	z   []float64
}

// NewInterpolator creates an interpolator over the band cells of g.
func NewInterpolator(g *DTMGrid, b *Band) (*Interpolator, error) {
	tr, err := NewTriangulation(b)
	if err != nil {
		return nil, err
	}
	return tr.Interpolator(g, b)
}

// Interpolator returns an interpolator for the elevations of g sampled
// at the band cells.
func (tr *Triangulation) Interpolator(g *DTMGrid, b *Band) (*Interpolator, error) {
	z, err := b.Select(g)
	if err != nil {
		return nil, err
	}
	if len(z.Elements) != len(tr.x) {
		return nil, fmt.Errorf("floodmask: band has %d points but triangulation has %d",
			len(z.Elements), len(tr.x))
	}
	return &Interpolator{tri: tr, z: z.Elements}, nil
}

// At returns the interpolated elevation at (x, y).
func (ip *Interpolator) At(x, y float64) float64 {
	t, w := ip.tri.locate(x, y)
	if t == nil {
		return math.NaN()
	}
	return w[0]*ip.z[t.v[0]] + w[1]*ip.z[t.v[1]] + w[2]*ip.z[t.v[2]]
}

// Grid evaluates the interpolator at every mesh point. The result has the
// shape of the mesh.
func (ip *Interpolator) Grid(m *RefinedMesh) (*sparse.DenseArray, error) {
	out := sparse.ZerosDense(m.X.Shape[0], m.X.Shape[1])
	defined := 0
	for i := range m.X.Elements {
		v := ip.At(m.X.Elements[i], m.Y.Elements[i])
		if !math.IsNaN(v) {
			defined++
		}
		out.Elements[i] = v
	}
	if defined == 0 {
		return nil, ErrNoOverlap
	}
	return out, nil
}

// Refine resamples the band cells of g onto the mesh.
func Refine(g *DTMGrid, b *Band, m *RefinedMesh) (*sparse.DenseArray, error) {
	ip, err := NewInterpolator(g, b)
	if err != nil {
		return nil, err
	}
	return ip.Grid(m)
}
