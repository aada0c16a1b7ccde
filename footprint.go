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
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
)

// Footprint file names.
const (
	BandFootprint = "band.geojson"
	MeshFootprint = "mesh.geojson"

	// FootprintShapefile holds both outlines as named records.
	FootprintShapefile = "footprints.shp"
)

// FootprintRecord is a record of the footprint shapefile.
type FootprintRecord struct {
	geom.Polygon
	Name string
}

// outline returns the closed ring through the corners of a 2-D
// coordinate array.
func outline(x, y *sparse.DenseArray) geom.Polygon {
	r, c := x.Shape[0]-1, x.Shape[1]-1
	corner := func(i, j int) geom.Point {
		return geom.Point{X: x.Get(i, j), Y: y.Get(i, j)}
	}
	return geom.Polygon{{
		corner(0, 0), corner(0, c), corner(r, c), corner(r, 0), corner(0, 0),
	}}
}

// BandOutline returns the polygon enclosing the band lines.
func BandOutline(b *Band) geom.Polygon { return outline(b.X, b.Y) }

// MeshOutline returns the polygon enclosing the refined mesh.
func MeshOutline(m *RefinedMesh) geom.Polygon { return outline(m.X, m.Y) }

// WriteFootprints writes the outlines of the band and the mesh to dir as
// GeoJSON geometries and as a shapefile so they can be checked in a GIS.
func WriteFootprints(dir string, b *Band, m *RefinedMesh) error {
	recs := []FootprintRecord{
		{Polygon: BandOutline(b), Name: "band"},
		{Polygon: MeshOutline(m), Name: "mesh"},
	}
	for i, name := range []string{BandFootprint, MeshFootprint} {
		data, err := geojson.Encode(recs[i].Polygon)
		if err != nil {
			return fmt.Errorf("floodmask: encoding %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("floodmask: writing footprint: %w", err)
		}
	}

	e, err := shp.NewEncoder(filepath.Join(dir, FootprintShapefile), FootprintRecord{})
	if err != nil {
		return fmt.Errorf("floodmask: creating footprint shapefile: %w", err)
	}
	defer e.Close()
	for i := range recs {
		if err := e.Encode(&recs[i]); err != nil {
			return fmt.Errorf("floodmask: writing footprint shapefile: %w", err)
		}
	}
	return nil
}
