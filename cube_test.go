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
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/klauspost/compress/gzip"
	"github.com/kr/pretty"
)

func testCubeMeta() CubeMeta {
	g := rotatedGrid(3, 4, 2, 0.3, nil)
	return CubeMeta{
		X:           g.X,
		Y:           g.Y,
		Description: "test cube",
		Stretch:     NS,
		Sim:         7,
		Index:       "threshold-exceedance-frequency",
		Rule:        FloodedArea,
		Refinement:  true,
		Angle:       0.3,
		FldPortion:  DefaultFldPortion,
		CreatedBy:   "floodmask " + Version,
		ConfigHash:  "0123456789abcdef0123456789abcdef",
	}
}

func TestCubeRoundTrip(t *testing.T) {
	for _, test := range []struct {
		name string
		keys []SliceKey
	}{
		{name: "dates", keys: []SliceKey{{Date: "2020-01-01"}, {Date: "2021"}}},
		{name: "horizons", keys: []SliceKey{
			{ReturnPeriod: 10, Horizon: 2050},
			{ReturnPeriod: 10, Horizon: 2100},
			{ReturnPeriod: 2.5, Horizon: 2050},
		}},
	} {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			meta := testCubeMeta()
			c := &MaskCube{Keys: test.keys}
			for i := range test.keys {
				m := make([]uint8, 12)
				for j := range m {
					m[j] = uint8((i + j) % 2)
				}
				m[i] = NoData
				c.Masks = append(c.Masks, m)
			}
			path := filepath.Join(dir, CubeFileName(meta.Index, meta.Sim))
			if err := WriteCube(path, c, meta); err != nil {
				t.Fatal(err)
			}

			c2, meta2, err := ReadCube(path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := pretty.Diff(c, c2); len(diff) > 0 {
				t.Errorf("cube: %v", diff)
			}
			if diff := pretty.Diff(meta.X.Elements, meta2.X.Elements); len(diff) > 0 {
				t.Errorf("x: %v", diff)
			}
			if diff := pretty.Diff(meta.Y.Elements, meta2.Y.Elements); len(diff) > 0 {
				t.Errorf("y: %v", diff)
			}
			meta.X, meta.Y, meta2.X, meta2.Y = nil, nil, nil, nil
			if diff := pretty.Diff(meta, *meta2); len(diff) > 0 {
				t.Errorf("metadata: %v", diff)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].Name() != "threshold-exceedance-frequency_sim_07.nc.gz" {
				t.Errorf("directory should only hold the cube but holds %v", entries)
			}
		})
	}
}

// A single slice fills the mask variable up to its last byte.
func TestCubeSingleSlice(t *testing.T) {
	g := rotatedGrid(2, 2, 1, 0, nil)
	meta := CubeMeta{
		X: g.X, Y: g.Y, Description: "one slice", Stretch: WE, Sim: 1,
		Index: "flooded_area", Rule: FloodedArea, CreatedBy: "test", ConfigHash: "h",
	}
	c := &MaskCube{
		Keys:  []SliceKey{{Date: "2020"}},
		Masks: [][]uint8{{Submerged, Dry, NoData, Submerged}},
	}
	path := filepath.Join(t.TempDir(), CubeFileName(meta.Index, meta.Sim))
	if err := WriteCube(path, c, meta); err != nil {
		t.Fatal(err)
	}
	c2, _, err := ReadCube(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(c, c2); len(diff) > 0 {
		t.Errorf("cube: %v", diff)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	cf, err := cdf.Open(memFile{bytes.NewReader(b)})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := cf.Header.GetAttribute("", "angle_description").(string); !ok || s == "" {
		t.Error("missing angle_description attribute")
	}
}

type stubWriter struct {
	n   int
	err error
}

func (w stubWriter) Write(interface{}) (int, error) { return w.n, w.err }

func TestWriteValues(t *testing.T) {
	data := []float64{1, 2, 3}
	short := errors.New("short write")
	for _, test := range []struct {
		w    stubWriter
		want error
	}{
		{w: stubWriter{n: 3}},
		{w: stubWriter{n: 3, err: io.EOF}},
		{w: stubWriter{n: 2, err: io.EOF}, want: io.EOF},
		{w: stubWriter{n: 1, err: short}, want: short},
	} {
		if err := writeValues(test.w, data); err != test.want {
			t.Errorf("%+v: have %v, want %v", test.w, err, test.want)
		}
	}
}

func TestCubeWriterConcurrent(t *testing.T) {
	dir := t.TempDir()
	meta := testCubeMeta()
	keys := make([]SliceKey, 16)
	for i := range keys {
		keys[i] = SliceKey{Date: string(rune('a' + i))}
	}
	path := filepath.Join(dir, "c.nc.gz")
	w, err := NewCubeWriter(path, keys, meta)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := make([]uint8, 12)
			m[i%12] = Submerged
			if err := w.WriteSlice(i, m); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	c, _, err := ReadCube(path)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range c.Masks {
		for j, v := range m {
			want := Dry
			if j == i%12 {
				want = Submerged
			}
			if v != want {
				t.Errorf("slice %d cell %d: have %d, want %d", i, j, v, want)
			}
		}
	}
}

func TestCubeWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.nc.gz")
	w, err := NewCubeWriter(path, []SliceKey{{Date: "2020"}, {Date: "2021"}}, testCubeMeta())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSlice(0, make([]uint8, 12)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSlice(1, make([]uint8, 5)); err == nil {
		t.Error("a slice of the wrong size should be rejected")
	}
	if err := w.Commit(); err == nil {
		t.Error("commit with a missing slice should fail")
	}
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("aborted cube left %v", entries)
	}
}

func TestMaskSlice(t *testing.T) {
	have := MaskSlice([]float64{0.2, 1, 1.5, math.NaN()}, 1)
	want := []uint8{Submerged, Dry, Dry, NoData}
	if diff := pretty.Diff(have, want); len(diff) > 0 {
		t.Error(diff)
	}
}
