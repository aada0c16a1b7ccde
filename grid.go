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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/klauspost/compress/gzip"
)

// DTMGrid holds a gridded elevation surface. X, Y and Z all have
// shape [rows, cols]; the coordinates do not need to be axis-aligned.
// Cells without data hold NaN in Z.
type DTMGrid struct {
	X, Y, Z *sparse.DenseArray
}

// Rows returns the number of grid rows.
func (g *DTMGrid) Rows() int { return g.Z.Shape[0] }

// Cols returns the number of grid columns.
func (g *DTMGrid) Cols() int { return g.Z.Shape[1] }

// Bounds returns the spatial extent of the grid coordinates.
func (g *DTMGrid) Bounds() *geom.Bounds {
	return arrayBounds(g.X, g.Y)
}

func arrayBounds(x, y *sparse.DenseArray) *geom.Bounds {
	b := geom.NewBounds()
	for i := range x.Elements {
		b.Extend(geom.Point{X: x.Elements[i], Y: y.Elements[i]}.Bounds())
	}
	return b
}

func (g *DTMGrid) check() error {
	if g.X == nil || g.Y == nil || g.Z == nil {
		return fmt.Errorf("floodmask: incomplete DTM grid")
	}
	if len(g.Z.Shape) != 2 {
		return fmt.Errorf("floodmask: DTM grid must be 2-D but has %d dimensions", len(g.Z.Shape))
	}
	n := len(g.Z.Elements)
	if len(g.X.Elements) != n || len(g.Y.Elements) != n {
		return fmt.Errorf("floodmask: DTM coordinate arrays have %d and %d elements but elevation has %d",
			len(g.X.Elements), len(g.Y.Elements), n)
	}
	if n == 0 {
		return fmt.Errorf("floodmask: DTM grid is empty")
	}
	return nil
}

// IsRaster reports whether the file name has an extension that ReadDTM
// understands.
func IsRaster(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".asc") || strings.HasSuffix(n, ".asc.gz") ||
		strings.HasSuffix(n, ".xyz")
}

// ReadDTM reads an elevation raster. ESRI ASCII grids (".asc", or
// gzip-compressed ".asc.gz") and XYZ point grids (".xyz") are supported.
func ReadDTM(path string) (*DTMGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{What: "DTM raster", Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("floodmask: opening %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	var g *DTMGrid
	switch filepath.Ext(name) {
	case ".asc":
		g, err = ParseESRIASCII(r)
	case ".xyz":
		g, err = ParseXYZ(r)
	default:
		return nil, fmt.Errorf("floodmask: unsupported raster format for %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("floodmask: reading %s: %w", path, err)
	}
	return g, nil
}

// ParseESRIASCII parses an ESRI ASCII grid. The first data row is the
// northernmost one, so Y decreases with the row index.
func ParseESRIASCII(r io.Reader) (*DTMGrid, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	s.Split(bufio.ScanWords)

	hdr := make(map[string]float64)
	var pending string
	for s.Scan() {
		tok := s.Text()
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			pending = tok
			break
		}
		key := strings.ToLower(tok)
		if !s.Scan() {
			return nil, fmt.Errorf("missing value for header key %s", tok)
		}
		v, err := strconv.ParseFloat(s.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header key %s: %w", tok, err)
		}
		hdr[key] = v
	}

	ncols, nrows := int(hdr["ncols"]), int(hdr["nrows"])
	if ncols <= 0 || nrows <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", nrows, ncols)
	}
	dx, dy := hdr["cellsize"], hdr["cellsize"]
	if v, ok := hdr["dx"]; ok {
		dx = v
	}
	if v, ok := hdr["dy"]; ok {
		dy = v
	}
	if !(dx > 0) || !(dy > 0) {
		return nil, fmt.Errorf("invalid cell size %g x %g", dx, dy)
	}

	// Corner references point at the cell edge, center references
	// at the cell center.
	xo, yo := hdr["xllcenter"], hdr["yllcenter"]
	if v, ok := hdr["xllcorner"]; ok {
		xo = v + dx/2
	}
	if v, ok := hdr["yllcorner"]; ok {
		yo = v + dy/2
	}
	nodata, hasNoData := hdr["nodata_value"]

	g := &DTMGrid{
		X: sparse.ZerosDense(nrows, ncols),
		Y: sparse.ZerosDense(nrows, ncols),
		Z: sparse.ZerosDense(nrows, ncols),
	}
	n := 0
	next := func() (string, bool) {
		if pending != "" {
			t := pending
			pending = ""
			return t, true
		}
		if s.Scan() {
			return s.Text(), true
		}
		return "", false
	}
	for ; n < nrows*ncols; n++ {
		tok, ok := next()
		if !ok {
			break
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", n, err)
		}
		if hasNoData && v == nodata {
			v = math.NaN()
		}
		i, j := n/ncols, n%ncols
		g.X.Set(xo+float64(j)*dx, i, j)
		g.Y.Set(yo+float64(nrows-1-i)*dy, i, j)
		g.Z.Set(v, i, j)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if n != nrows*ncols {
		return nil, fmt.Errorf("expected %d cells but found %d", nrows*ncols, n)
	}
	return g, nil
}

// ParseXYZ parses a point grid made of an "ncols N" and an "nrows M"
// header line followed by N*M "x y z" lines in row-major order. Unlike
// ESRI grids, XYZ grids can be rotated in plan.
func ParseXYZ(r io.Reader) (*DTMGrid, error) {
	s := bufio.NewScanner(r)
	var ncols, nrows int
	var g *DTMGrid
	n, line := 0, 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if g == nil {
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: expected ncols/nrows header", line)
			}
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			switch strings.ToLower(fields[0]) {
			case "ncols":
				ncols = v
			case "nrows":
				nrows = v
			default:
				return nil, fmt.Errorf("line %d: unknown header key %s", line, fields[0])
			}
			if ncols > 0 && nrows > 0 {
				g = &DTMGrid{
					X: sparse.ZerosDense(nrows, ncols),
					Y: sparse.ZerosDense(nrows, ncols),
					Z: sparse.ZerosDense(nrows, ncols),
				}
			}
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns but found %d", line, len(fields))
		}
		if n >= nrows*ncols {
			return nil, fmt.Errorf("line %d: more points than ncols*nrows=%d", line, nrows*ncols)
		}
		var v [3]float64
		for k, fld := range fields {
			f, err := strconv.ParseFloat(fld, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			v[k] = f
		}
		g.X.Elements[n], g.Y.Elements[n], g.Z.Elements[n] = v[0], v[1], v[2]
		n++
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("missing ncols/nrows header")
	}
	if n != nrows*ncols {
		return nil, fmt.Errorf("expected %d points but found %d", nrows*ncols, n)
	}
	return g, nil
}
