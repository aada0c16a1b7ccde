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
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats/scalar"
)

const testTolerance = 1e-9

func absDifferent(a, b, tolerance float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return !scalar.EqualWithinAbs(a, b, tolerance)
}

// rotatedGrid returns a rows x cols grid with the given spacing whose
// rows run along angle, counter-clockwise from the x axis.
func rotatedGrid(rows, cols int, spacing, angle float64, z func(i, j int) float64) *DTMGrid {
	g := &DTMGrid{
		X: sparse.ZerosDense(rows, cols),
		Y: sparse.ZerosDense(rows, cols),
		Z: sparse.ZerosDense(rows, cols),
	}
	sin, cos := math.Sincos(angle)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			u, v := float64(j)*spacing, float64(i)*spacing
			g.X.Set(1000+u*cos-v*sin, i, j)
			g.Y.Set(2000+u*sin+v*cos, i, j)
			if z != nil {
				g.Z.Set(z(i, j), i, j)
			}
		}
	}
	return g
}

// ascText renders z as an ESRI ASCII grid with unit cells and the lower
// left corner at the origin. NaN cells are written as NODATA.
func ascText(z [][]float64) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "ncols %d\nnrows %d\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n",
		len(z[0]), len(z))
	for _, row := range z {
		vals := make([]string, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				vals[j] = "-9999"
			} else {
				vals[j] = fmt.Sprintf("%g", v)
			}
		}
		b.WriteString(strings.Join(vals, " "))
		b.WriteString("\n")
	}
	return b.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ensemble describes a synthetic set of simulations that share one DTM
// per date.
type ensemble struct {
	sims   int
	dates  []string
	levels [][]float64 // per date: slr, surge, total_water_level
	z      [][]float64
	rp     string // levels_rp_tH.csv content, optional
}

// write creates the simulation directories under dir and returns a run
// configuration that points at them.
func (en ensemble) write(t *testing.T, dir string) *RunConfig {
	t.Helper()
	dtmDir := filepath.Join(dir, "dtm")
	for sim := 1; sim <= en.sims; sim++ {
		simDir := SimDir(dtmDir, sim)
		var lv strings.Builder
		for i, d := range en.dates {
			writeFile(t, filepath.Join(simDir, fmt.Sprintf("dtm_%s.asc", d)), ascText(en.z))
			vals := make([]string, len(en.levels[i]))
			for k, v := range en.levels[i] {
				vals[k] = fmt.Sprintf("%g", v)
			}
			fmt.Fprintf(&lv, "%s,%s\n", d, strings.Join(vals, ","))
		}
		writeFile(t, filepath.Join(simDir, "levels.csv"), lv.String())
		if en.rp != "" {
			writeFile(t, filepath.Join(simDir, "levels_rp_tH.csv"), en.rp)
		}
	}
	return &RunConfig{
		Index:      []string{string(FloodedArea)},
		InputDTM:   filepath.Join(SimDir(dtmDir, 1), fmt.Sprintf("dtm_%s.asc", en.dates[0])),
		NumSims:    en.sims,
		DTMDir:     dtmDir,
		OutputPath: filepath.Join(dir, "out"),
		TempFolder: "tmp",
	}
}

// rampZ returns an n x n elevation ramp from 0 to just under 2.
func rampZ(n int) [][]float64 {
	z := make([][]float64, n)
	for i := range z {
		z[i] = make([]float64, n)
		for j := range z[i] {
			z[i][j] = float64(i*n+j) / 50
		}
	}
	return z
}
