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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// DefaultLevelColumns are the names given to the value columns of a
// levels.csv file when none are configured.
var DefaultLevelColumns = []string{"slr", "surge", "total_water_level"}

// LevelSeries holds the water level quantities of one simulation, one
// row per date in file order.
type LevelSeries struct {
	Dates   []string
	Columns []string
	Values  [][]float64
}

// ReadLevelSeries reads a headerless levels.csv file. The first column
// is the date label and the remaining columns are named by columns, in
// order. Rows may hold fewer values than there are names.
func ReadLevelSeries(path string, columns []string) (*LevelSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{What: "level series", Path: path, Err: err}
	}
	defer f.Close()
	if len(columns) == 0 {
		columns = DefaultLevelColumns
	}
	ls, err := parseLevelSeries(f, columns)
	if err != nil {
		return nil, fmt.Errorf("floodmask: reading level series %s: %w", path, err)
	}
	return ls, nil
}

func parseLevelSeries(r io.Reader, columns []string) (*LevelSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	ls := &LevelSeries{Columns: columns}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected a date and at least one value", line)
		}
		if len(rec)-1 > len(columns) {
			return nil, fmt.Errorf("line %d: %d values but only %d column names", line, len(rec)-1, len(columns))
		}
		row := make([]float64, len(columns))
		for i := range row {
			row[i] = math.NaN()
		}
		for i, s := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, columns[i], err)
			}
			row[i] = v
		}
		ls.Dates = append(ls.Dates, strings.TrimSpace(rec[0]))
		ls.Values = append(ls.Values, row)
	}
	if len(ls.Dates) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	return ls, nil
}

// Value returns the value of the named column at row i.
func (ls *LevelSeries) Value(column string, i int) (float64, error) {
	if i < 0 || i >= len(ls.Values) {
		return math.NaN(), fmt.Errorf("floodmask: level series row %d out of range [0, %d)", i, len(ls.Values))
	}
	for j, c := range ls.Columns {
		if c == column {
			v := ls.Values[i][j]
			if math.IsNaN(v) {
				return v, fmt.Errorf("floodmask: level series date %s has no %s value", ls.Dates[i], column)
			}
			return v, nil
		}
	}
	return math.NaN(), fmt.Errorf("floodmask: level series has no column %q", column)
}

// Range returns the smallest and largest value over all columns and
// rows.
func (ls *LevelSeries) Range() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, row := range ls.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}
	return min, max
}

// SameDates reports whether ls and o have identical date labels in
// identical order.
func (ls *LevelSeries) SameDates(o *LevelSeries) bool {
	if len(ls.Dates) != len(o.Dates) {
		return false
	}
	for i, d := range ls.Dates {
		if o.Dates[i] != d {
			return false
		}
	}
	return true
}

// DateYear extracts the calendar year from a date label such as
// "2035", "2035-06-01" or "2035/06/01 00:00".
func DateYear(label string) (int, bool) {
	s := strings.TrimSpace(label)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || (end != 4 && end != 8) {
		return 0, false
	}
	return y, true
}

// ReturnPeriodTable holds the extreme levels of one simulation by year
// offset (rows) and return period (columns).
type ReturnPeriodTable struct {
	Offsets []int
	Periods []float64
	Values  [][]float64
}

// ReadReturnPeriodTable reads a levels_rp_tH.csv file. The header row
// carries the return period labels. If the first header is not numeric,
// the first column holds the year offset of each row; otherwise the row
// position is the offset.
func ReadReturnPeriodTable(path string) (*ReturnPeriodTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{What: "return period table", Path: path, Err: err}
	}
	defer f.Close()
	t, err := parseReturnPeriodTable(f)
	if err != nil {
		return nil, fmt.Errorf("floodmask: reading return period table %s: %w", path, err)
	}
	return t, nil
}

func parseReturnPeriodTable(r io.Reader) (*ReturnPeriodTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	first := 0
	if _, err := strconv.ParseFloat(strings.TrimSpace(header[0]), 64); err != nil {
		first = 1
	}
	t := new(ReturnPeriodTable)
	for _, h := range header[first:] {
		p, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return nil, fmt.Errorf("return period label %q: %w", h, err)
		}
		t.Periods = append(t.Periods, p)
	}
	if len(t.Periods) == 0 {
		return nil, fmt.Errorf("no return period columns")
	}
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		offset := row
		if first == 1 {
			o, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d offset: %w", row+1, err)
			}
			offset = int(o)
		}
		vals := make([]float64, len(t.Periods))
		for i, s := range rec[first:] {
			if vals[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return nil, fmt.Errorf("row %d: %w", row+1, err)
			}
		}
		t.Offsets = append(t.Offsets, offset)
		t.Values = append(t.Values, vals)
	}
	return t, nil
}

// MaxLevel returns the largest level for the given return period over
// all rows with offset <= maxOffset.
func (t *ReturnPeriodTable) MaxLevel(period float64, maxOffset int) (float64, error) {
	col := -1
	for i, p := range t.Periods {
		if p == period {
			col = i
			break
		}
	}
	if col < 0 {
		return math.NaN(), fmt.Errorf("floodmask: return period %g not in table %v", period, t.Periods)
	}
	level, found := math.Inf(-1), false
	for i, o := range t.Offsets {
		if o <= maxOffset {
			level = math.Max(level, t.Values[i][col])
			found = true
		}
	}
	if !found {
		return math.NaN(), fmt.Errorf("floodmask: no year offset <= %d for return period %g", maxOffset, period)
	}
	return level, nil
}
