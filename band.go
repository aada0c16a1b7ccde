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

	"github.com/ctessum/sparse"
)

// ErrEmptyBand is returned when no grid cell lies inside the band levels.
var ErrEmptyBand = errors.New("floodmask: empty band")

// Orientation is the axis along which a band is stretched.
type Orientation string

// Supported band orientations.
const (
	// WE stretches the band along rows.
	WE Orientation = "WE"
	// NS stretches the band along columns.
	NS Orientation = "NS"
)

// Valid reports whether o is a known orientation.
func (o Orientation) Valid() bool { return o == WE || o == NS }

// Band is the set of grid lines (rows for WE, columns for NS) that hold at
// least one cell inside an elevation interval.
type Band struct {
	// Mask flags the grid cells that belong to the band, in the
	// row-major order of the source grid.
	Mask        []bool
	Orientation Orientation

	// Lines holds the indices of the included rows or columns in
	// increasing order.
	Lines []int

	// X and Y hold the coordinates of the band cells with shape
	// [len(Lines), line length].
	X, Y *sparse.DenseArray

	// Z holds the band elevations of the grid the band was extracted
	// from, in the same shape as X and Y.
	Z *sparse.DenseArray
}

// Len returns the number of cells in the band.
func (b *Band) Len() int { return len(b.X.Elements) }

// ExtractBand flags the cells of g with levels[0] < z < levels[1] and
// widens the selection to whole rows (WE) or whole columns (NS).
func ExtractBand(g *DTMGrid, levels [2]float64, o Orientation) (*Band, error) {
	if !o.Valid() {
		return nil, &ConfigError{Field: "stretch_orientation", Value: string(o), Reason: "must be WE or NS"}
	}
	if err := g.check(); err != nil {
		return nil, err
	}
	rows, cols := g.Rows(), g.Cols()
	nLines, lineLen := rows, cols
	if o == NS {
		nLines, lineLen = cols, rows
	}
	// cell returns the flat index of cell k along line l.
	cell := func(l, k int) int {
		if o == WE {
			return l*cols + k
		}
		return k*cols + l
	}

	var lines []int
	for l := 0; l < nLines; l++ {
		for k := 0; k < lineLen; k++ {
			z := g.Z.Elements[cell(l, k)]
			if levels[0] < z && z < levels[1] {
				lines = append(lines, l)
				break
			}
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no cell between %g and %g", ErrEmptyBand, levels[0], levels[1])
	}

	b := &Band{
		Mask:        make([]bool, rows*cols),
		Orientation: o,
		Lines:       lines,
		X:           sparse.ZerosDense(len(lines), lineLen),
		Y:           sparse.ZerosDense(len(lines), lineLen),
		Z:           sparse.ZerosDense(len(lines), lineLen),
	}
	for i, l := range lines {
		for k := 0; k < lineLen; k++ {
			c := cell(l, k)
			b.Mask[c] = true
			n := i*lineLen + k
			b.X.Elements[n] = g.X.Elements[c]
			b.Y.Elements[n] = g.Y.Elements[c]
			b.Z.Elements[n] = g.Z.Elements[c]
		}
	}
	return b, nil
}

// Select returns the elevations of g at the cells of the band, in the
// same order as b.X and b.Y.
func (b *Band) Select(g *DTMGrid) (*sparse.DenseArray, error) {
	if len(g.Z.Elements) != len(b.Mask) {
		return nil, fmt.Errorf("floodmask: grid has %d cells but band mask has %d",
			len(g.Z.Elements), len(b.Mask))
	}
	cols := g.Cols()
	lineLen := b.X.Shape[1]
	z := sparse.ZerosDense(len(b.Lines), lineLen)
	for i, l := range b.Lines {
		for k := 0; k < lineLen; k++ {
			c := l*cols + k
			if b.Orientation == NS {
				c = k*cols + l
			}
			z.Elements[i*lineLen+k] = g.Z.Elements[c]
		}
	}
	return z, nil
}
