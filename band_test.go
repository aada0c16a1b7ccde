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
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestExtractBandWE(t *testing.T) {
	g := rotatedGrid(10, 10, 1, 0, func(i, j int) float64 { return float64(i) + float64(j)/10 })
	b, err := ExtractBand(g, [2]float64{2.5, 4.5}, WE)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 3, 4}; !reflect.DeepEqual(b.Lines, want) {
		t.Errorf("lines: have %v, want %v", b.Lines, want)
	}
	if b.X.Shape[0] != 3 || b.X.Shape[1] != 10 {
		t.Errorf("shape: have %v, want [3 10]", b.X.Shape)
	}
	for j := 0; j < 10; j++ {
		if b.X.Get(0, j) != g.X.Get(2, j) || b.Y.Get(2, j) != g.Y.Get(4, j) {
			t.Errorf("coordinates of line cell %d do not match the grid", j)
		}
	}
}

func TestExtractBandNS(t *testing.T) {
	g := rotatedGrid(8, 6, 1, 0, func(i, j int) float64 { return float64(j) })
	b, err := ExtractBand(g, [2]float64{0.5, 2.5}, NS)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 2}; !reflect.DeepEqual(b.Lines, want) {
		t.Errorf("lines: have %v, want %v", b.Lines, want)
	}
	// NS lines are columns.
	if b.X.Shape[0] != 2 || b.X.Shape[1] != 8 {
		t.Errorf("shape: have %v, want [2 8]", b.X.Shape)
	}
	for k := 0; k < 8; k++ {
		if b.Y.Get(1, k) != g.Y.Get(k, 2) {
			t.Errorf("y of column cell %d: have %g, want %g", k, b.Y.Get(1, k), g.Y.Get(k, 2))
		}
	}
}

// Every line with a cell inside the levels is fully included and every
// other line is fully excluded.
func TestExtractBandContiguity(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		rows, cols := 3+r.Intn(10), 3+r.Intn(10)
		g := rotatedGrid(rows, cols, 1, 0, func(i, j int) float64 { return r.Float64() * 10 })
		levels := [2]float64{r.Float64() * 5, 5 + r.Float64()*5}
		for _, o := range []Orientation{WE, NS} {
			b, err := ExtractBand(g, levels, o)
			if errors.Is(err, ErrEmptyBand) {
				continue
			}
			if err != nil {
				t.Fatal(err)
			}
			nLines, lineLen := rows, cols
			if o == NS {
				nLines, lineLen = cols, rows
			}
			cell := func(l, k int) int {
				if o == WE {
					return l*cols + k
				}
				return k*cols + l
			}
			for l := 0; l < nLines; l++ {
				hit := false
				for k := 0; k < lineLen; k++ {
					z := g.Z.Elements[cell(l, k)]
					hit = hit || (levels[0] < z && z < levels[1])
				}
				for k := 0; k < lineLen; k++ {
					if b.Mask[cell(l, k)] != hit {
						t.Fatalf("trial %d %s line %d cell %d: mask %v, want %v", trial, o, l, k, b.Mask[cell(l, k)], hit)
					}
				}
			}
		}
	}
}

func TestExtractBandStrict(t *testing.T) {
	g := rotatedGrid(4, 4, 1, 0, func(i, j int) float64 {
		if i == 1 {
			return math.NaN()
		}
		return 2.5
	})
	_, err := ExtractBand(g, [2]float64{2.5, 3}, WE)
	if !errors.Is(err, ErrEmptyBand) {
		t.Errorf("have %v, want %v", err, ErrEmptyBand)
	}
	_, err = ExtractBand(g, [2]float64{2, 2.5}, WE)
	if !errors.Is(err, ErrEmptyBand) {
		t.Errorf("have %v, want %v", err, ErrEmptyBand)
	}
}

func TestExtractBandOrientation(t *testing.T) {
	g := rotatedGrid(4, 4, 1, 0, func(i, j int) float64 { return 1 })
	_, err := ExtractBand(g, [2]float64{0, 2}, Orientation("SW"))
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("have %v, want configuration error", err)
	}
}

func TestBandSelect(t *testing.T) {
	g := rotatedGrid(5, 4, 1, 0, func(i, j int) float64 { return float64(i*4 + j) })
	b, err := ExtractBand(g, [2]float64{4.5, 5.5}, NS)
	if err != nil {
		t.Fatal(err)
	}
	z, err := b.Select(g)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(z.Elements, b.Z.Elements) {
		t.Errorf("have %v, want %v", z.Elements, b.Z.Elements)
	}
	if want := []float64{1, 5, 9, 13, 17}; !reflect.DeepEqual(z.Elements, want) {
		t.Errorf("have %v, want %v", z.Elements, want)
	}
}
