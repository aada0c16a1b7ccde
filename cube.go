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
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/klauspost/compress/gzip"
)

// Cell states stored in a mask slice.
const (
	Dry       uint8 = 0
	Submerged uint8 = 1
	// NoData marks cells with undefined elevation, which are neither
	// dry nor submerged.
	NoData uint8 = 255
)

// cubeCompression is the gzip level of cube files.
const cubeCompression = 2

// SliceKey identifies one time slice of a mask cube: a date in date
// mode, or a return period and horizon time pair in horizon mode.
type SliceKey struct {
	Date         string
	ReturnPeriod float64
	Horizon      int
}

// HorizonMode reports whether the key belongs to a horizon mode cube.
func (k SliceKey) HorizonMode() bool { return k.ReturnPeriod > 0 }

// Label returns the time label stored in the cube.
func (k SliceKey) Label() string {
	if k.HorizonMode() {
		return strconv.FormatFloat(k.ReturnPeriod, 'g', -1, 64) + "_" + strconv.Itoa(k.Horizon)
	}
	return k.Date
}

// MaskCube holds the mask slices of one simulation. Masks[i] is the
// slice for Keys[i] in the row-major order of the analysis grid.
type MaskCube struct {
	Keys  []SliceKey
	Masks [][]uint8
}

// CubeMeta describes a mask cube: its analysis grid coordinates and the
// provenance attributes of the file.
type CubeMeta struct {
	X, Y        *sparse.DenseArray
	Description string
	Stretch     Orientation
	Sim         int
	Index       string
	Rule        MaskRule
	Refinement  bool
	FldPortion  float64
	CreatedBy   string

	// Angle is the rotation of the analysis grid in radians,
	// counter-clockwise from the x axis, folded into (-π/2, π/2]. For a
	// source grid whose rows point past ±90° it differs by π from the
	// direction of the first row; the mesh covers the same points with
	// rows and columns stored in reverse order.
	Angle float64

	// ConfigHash identifies the run configuration the cube was built
	// from.
	ConfigHash string
}

// CubeFileName returns the file name of the cube of an index and a
// simulation.
func CubeFileName(index string, sim int) string {
	return fmt.Sprintf("%s_sim_%02d.nc.gz", index, sim)
}

// MaskSlice compares elevations with a level. Cells below the level are
// Submerged and NaN cells are NoData.
func MaskSlice(z []float64, level float64) []uint8 {
	m := make([]uint8, len(z))
	for i, v := range z {
		switch {
		case math.IsNaN(v):
			m[i] = NoData
		case v < level:
			m[i] = Submerged
		}
	}
	return m
}

// CubeWriter writes a mask cube one slice at a time. Slices are written
// to a temporary netCDF file in the destination directory, which Commit
// compresses into the destination file.
type CubeWriter struct {
	path string
	tmp  *os.File
	f    *cdf.File
	keys []SliceKey
	n    int

	mu      sync.Mutex
	written []bool
}

// NewCubeWriter creates a cube with a slice for each key and writes its
// coordinates and metadata.
func NewCubeWriter(path string, keys []SliceKey, m CubeMeta) (*CubeWriter, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("floodmask: cube %s has no slices", path)
	}
	if m.X == nil || m.Y == nil || len(m.X.Shape) != 2 || len(m.X.Elements) != len(m.Y.Elements) {
		return nil, fmt.Errorf("floodmask: cube %s needs 2-D x and y coordinates of equal size", path)
	}
	h := cubeHeader(keys, m)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.nc")
	if err != nil {
		return nil, fmt.Errorf("floodmask: creating cube: %w", err)
	}
	w := &CubeWriter{
		path:    path,
		tmp:     tmp,
		keys:    keys,
		n:       len(m.X.Elements),
		written: make([]bool, len(keys)),
	}
	if err := w.init(h, m); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func cubeHeader(keys []SliceKey, m CubeMeta) *cdf.Header {
	labelLen := 1
	for _, k := range keys {
		if l := len(k.Label()); l > labelLen {
			labelLen = l
		}
	}
	h := cdf.NewHeader(
		[]string{"time", "dim_x", "dim_y", "label_len"},
		[]int{len(keys), m.X.Shape[0], m.X.Shape[1], labelLen},
	)
	h.AddVariable("mask", []string{"time", "dim_x", "dim_y"}, []uint8{0})
	h.AddAttribute("mask", "description", "1 where the terrain is below the flooding level, 0 where it is above")
	h.AddAttribute("mask", "_FillValue", []uint8{NoData})
	h.AddVariable("x", []string{"dim_x", "dim_y"}, []float64{0})
	h.AddAttribute("x", "description", "x coordinate of the analysis grid")
	h.AddVariable("y", []string{"dim_x", "dim_y"}, []float64{0})
	h.AddAttribute("y", "description", "y coordinate of the analysis grid")
	h.AddVariable("time", []string{"time", "label_len"}, "")
	h.AddAttribute("time", "description", "slice label")
	if keys[0].HorizonMode() {
		h.AddVariable("return_period", []string{"time"}, []float64{0})
		h.AddAttribute("return_period", "units", "years")
		h.AddVariable("horizon_time", []string{"time"}, []int32{0})
		h.AddAttribute("horizon_time", "units", "year")
	}

	h.AddAttribute("", "description", m.Description)
	h.AddAttribute("", "stretch", string(m.Stretch))
	h.AddAttribute("", "sim", fmt.Sprintf("%02d", m.Sim))
	h.AddAttribute("", "index", m.Index)
	h.AddAttribute("", "rule", string(m.Rule))
	refinement := int32(0)
	if m.Refinement {
		refinement = 1
	}
	h.AddAttribute("", "refinement", []int32{refinement})
	h.AddAttribute("", "angle", []float64{m.Angle})
	h.AddAttribute("", "angle_description", "grid rotation in radians counter-clockwise from the x axis, folded into (-pi/2, pi/2]")
	h.AddAttribute("", "fld_portion", []float64{m.FldPortion})
	h.AddAttribute("", "created_by", m.CreatedBy)
	h.AddAttribute("", "config_hash", m.ConfigHash)
	h.Define()
	return h
}

func (w *CubeWriter) init(h *cdf.Header, m CubeMeta) error {
	var err error
	w.f, err = cdf.Create(w.tmp, h)
	if err != nil {
		return fmt.Errorf("floodmask: writing cube header: %w", err)
	}
	if err := writeVar(w.f, "x", m.X.Elements); err != nil {
		return err
	}
	if err := writeVar(w.f, "y", m.Y.Elements); err != nil {
		return err
	}
	labelLen := h.Lengths("time")[1]
	labels := make([]uint8, len(w.keys)*labelLen)
	rp := make([]float64, len(w.keys))
	ht := make([]int32, len(w.keys))
	for i, k := range w.keys {
		if k.HorizonMode() != w.keys[0].HorizonMode() {
			return fmt.Errorf("floodmask: cube %s mixes date and horizon slices", w.path)
		}
		copy(labels[i*labelLen:], k.Label())
		rp[i], ht[i] = k.ReturnPeriod, int32(k.Horizon)
	}
	if err := writeVar(w.f, "time", labels); err != nil {
		return err
	}
	if w.keys[0].HorizonMode() {
		if err := writeVar(w.f, "return_period", rp); err != nil {
			return err
		}
		if err := writeVar(w.f, "horizon_time", ht); err != nil {
			return err
		}
	}
	return nil
}

func writeVar(f *cdf.File, name string, data interface{}) error {
	if err := writeValues(f.Writer(name, nil, nil), data); err != nil {
		return fmt.Errorf("floodmask: writing cube variable %s: %w", name, err)
	}
	return nil
}

// writeValues writes data through w. A writer reports io.EOF when a
// write reaches the inclusive end of its range, which is not an error
// once every value has been written.
func writeValues(w cdf.Writer, data interface{}) error {
	n, err := w.Write(data)
	if err == io.EOF && n == valuesLen(data) {
		return nil
	}
	return err
}

func valuesLen(data interface{}) int {
	switch v := data.(type) {
	case []uint8:
		return len(v)
	case []int32:
		return len(v)
	case []float64:
		return len(v)
	}
	return -1
}

// WriteSlice writes the mask of slice i. Distinct slices may be written
// concurrently.
func (w *CubeWriter) WriteSlice(i int, mask []uint8) error {
	if i < 0 || i >= len(w.keys) {
		return fmt.Errorf("floodmask: slice %d out of range [0, %d)", i, len(w.keys))
	}
	if len(mask) != w.n {
		return fmt.Errorf("floodmask: slice %d has %d cells but the cube grid has %d", i, len(mask), w.n)
	}
	lengths := w.f.Header.Lengths("mask")
	begin := []int{i, 0, 0}
	end := []int{i, lengths[1] - 1, lengths[2] - 1}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := writeValues(w.f.Writer("mask", begin, end), mask); err != nil {
		return fmt.Errorf("floodmask: writing slice %s: %w", w.keys[i].Label(), err)
	}
	w.written[i] = true
	return nil
}

// Commit compresses the cube into its destination file and removes the
// temporary file. All slices must have been written.
func (w *CubeWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, ok := range w.written {
		if !ok {
			return fmt.Errorf("floodmask: slice %s of cube %s was not written", w.keys[i].Label(), w.path)
		}
	}
	if err := cdf.UpdateNumRecs(w.tmp); err != nil {
		return fmt.Errorf("floodmask: finishing cube %s: %w", w.path, err)
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	part := w.path + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("floodmask: creating cube %s: %w", w.path, err)
	}
	gz, err := gzip.NewWriterLevel(out, cubeCompression)
	if err != nil {
		out.Close()
		os.Remove(part)
		return err
	}
	gz.Name = strings.TrimSuffix(filepath.Base(w.path), ".gz")
	_, err = io.Copy(gz, w.tmp)
	if err == nil {
		err = gz.Close()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(part, w.path)
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("floodmask: compressing cube %s: %w", w.path, err)
	}
	return w.removeTemp()
}

// Abort discards the cube.
func (w *CubeWriter) Abort() error {
	return w.removeTemp()
}

func (w *CubeWriter) removeTemp() error {
	if w.tmp == nil {
		return nil
	}
	name := w.tmp.Name()
	w.tmp.Close()
	w.tmp = nil
	return os.Remove(name)
}

// WriteCube writes a complete cube to path.
func WriteCube(path string, c *MaskCube, m CubeMeta) error {
	if len(c.Keys) != len(c.Masks) {
		return fmt.Errorf("floodmask: cube has %d keys but %d masks", len(c.Keys), len(c.Masks))
	}
	w, err := NewCubeWriter(path, c.Keys, m)
	if err != nil {
		return err
	}
	for i, mask := range c.Masks {
		if err := w.WriteSlice(i, mask); err != nil {
			w.Abort()
			return err
		}
	}
	if err := w.Commit(); err != nil {
		w.Abort()
		return err
	}
	return nil
}

// memFile is a read-only in-memory netCDF file.
type memFile struct{ *bytes.Reader }

func (memFile) WriteAt([]byte, int64) (int, error) {
	return 0, errors.New("floodmask: cube opened read-only")
}

// ReadCube reads a cube written by WriteCube or CubeWriter.
func ReadCube(path string) (*MaskCube, *CubeMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ResourceError{What: "mask cube", Path: path, Err: err}
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("floodmask: reading cube %s: %w", path, err)
	}
	defer gz.Close()
	b, err := io.ReadAll(gz)
	if err != nil {
		return nil, nil, fmt.Errorf("floodmask: reading cube %s: %w", path, err)
	}
	cf, err := cdf.Open(memFile{bytes.NewReader(b)})
	if err != nil {
		return nil, nil, fmt.Errorf("floodmask: reading cube %s: %w", path, err)
	}
	c, m, err := decodeCube(cf)
	if err != nil {
		return nil, nil, fmt.Errorf("floodmask: reading cube %s: %w", path, err)
	}
	return c, m, nil
}

func decodeCube(f *cdf.File) (*MaskCube, *CubeMeta, error) {
	h := f.Header
	dims := h.Lengths("mask")
	if len(dims) != 3 {
		return nil, nil, fmt.Errorf("mask variable has %d dimensions", len(dims))
	}
	nt, nx, ny := dims[0], dims[1], dims[2]

	m := &CubeMeta{
		X: sparse.ZerosDense(nx, ny),
		Y: sparse.ZerosDense(nx, ny),
	}
	if err := readVar(f, "x", m.X.Elements); err != nil {
		return nil, nil, err
	}
	if err := readVar(f, "y", m.Y.Elements); err != nil {
		return nil, nil, err
	}
	var err error
	if m.Description, err = stringAttr(h, "description"); err != nil {
		return nil, nil, err
	}
	var s string
	if s, err = stringAttr(h, "stretch"); err != nil {
		return nil, nil, err
	}
	m.Stretch = Orientation(s)
	if s, err = stringAttr(h, "sim"); err != nil {
		return nil, nil, err
	}
	if m.Sim, err = strconv.Atoi(s); err != nil {
		return nil, nil, fmt.Errorf("sim attribute: %w", err)
	}
	if m.Index, err = stringAttr(h, "index"); err != nil {
		return nil, nil, err
	}
	if s, err = stringAttr(h, "rule"); err != nil {
		return nil, nil, err
	}
	m.Rule = MaskRule(s)
	if m.CreatedBy, err = stringAttr(h, "created_by"); err != nil {
		return nil, nil, err
	}
	if m.ConfigHash, err = stringAttr(h, "config_hash"); err != nil {
		return nil, nil, err
	}
	ref, ok := h.GetAttribute("", "refinement").([]int32)
	if !ok || len(ref) != 1 {
		return nil, nil, fmt.Errorf("missing refinement attribute")
	}
	m.Refinement = ref[0] != 0
	angle, ok := h.GetAttribute("", "angle").([]float64)
	if !ok || len(angle) != 1 {
		return nil, nil, fmt.Errorf("missing angle attribute")
	}
	m.Angle = angle[0]
	fp, ok := h.GetAttribute("", "fld_portion").([]float64)
	if !ok || len(fp) != 1 {
		return nil, nil, fmt.Errorf("missing fld_portion attribute")
	}
	m.FldPortion = fp[0]

	labelLen := h.Lengths("time")[1]
	labels := make([]uint8, nt*labelLen)
	if err := readVar(f, "time", labels); err != nil {
		return nil, nil, err
	}
	c := &MaskCube{Keys: make([]SliceKey, nt), Masks: make([][]uint8, nt)}
	var rp []float64
	var ht []int32
	horizon := false
	for _, v := range h.Variables() {
		if v == "return_period" {
			horizon = true
		}
	}
	if horizon {
		rp, ht = make([]float64, nt), make([]int32, nt)
		if err := readVar(f, "return_period", rp); err != nil {
			return nil, nil, err
		}
		if err := readVar(f, "horizon_time", ht); err != nil {
			return nil, nil, err
		}
	}
	for i := range c.Keys {
		if horizon {
			c.Keys[i] = SliceKey{ReturnPeriod: rp[i], Horizon: int(ht[i])}
		} else {
			c.Keys[i] = SliceKey{Date: string(bytes.TrimRight(labels[i*labelLen:(i+1)*labelLen], "\x00"))}
		}
		c.Masks[i] = make([]uint8, nx*ny)
		r := f.Reader("mask", []int{i, 0, 0}, []int{i, nx - 1, ny - 1})
		if _, err := r.Read(c.Masks[i]); err != nil {
			return nil, nil, fmt.Errorf("mask slice %d: %w", i, err)
		}
	}
	return c, m, nil
}

func readVar(f *cdf.File, name string, data interface{}) error {
	if _, err := f.Reader(name, nil, nil).Read(data); err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	return nil
}

func stringAttr(h *cdf.Header, name string) (string, error) {
	s, ok := h.GetAttribute("", name).(string)
	if !ok {
		return "", fmt.Errorf("missing %s attribute", name)
	}
	return s, nil
}
