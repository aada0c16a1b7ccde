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

// DefaultFldPortion is the flooded portion threshold used when the run
// configuration does not set one.
const DefaultFldPortion = 3

// RunConfig is the configuration of a mask run. It is not modified by
// validation; Validate returns an Enriched copy instead.
type RunConfig struct {
	// Index holds the requested index names.
	Index []string

	// InputDTM is the elevation raster that the band and the refined
	// mesh are built from.
	InputDTM string

	// NumSims is the number of simulations. Simulations are numbered
	// from 1 to NumSims.
	NumSims int

	// DTMDir holds one directory per simulation, named by the zero
	// padded simulation number, with the elevation rasters and level
	// tables of that simulation.
	DTMDir string

	// OutputPath and TempFolder locate the directory that mask cubes
	// are written to.
	OutputPath string
	TempFolder string

	// Seasons maps season names to the months they include. A nil
	// map selects the default seasons.
	Seasons map[string][]int

	// FldPortion is passed through to the cube metadata for the
	// indicators that consume it.
	FldPortion float64

	// ReturnPeriods and HorizonTimes define the slices of horizon mode
	// cubes. YearIni is the year of the first return period table row.
	ReturnPeriods []float64
	HorizonTimes  []int
	YearIni       int

	// Refinement selects resampling onto a rotated regular mesh with
	// spacing RefinementSize.
	Refinement     bool
	RefinementSize float64

	// StretchOrientation and BandLevels define the band that bounds
	// the refinement. BandLevels is derived from the level series when
	// it is empty.
	StretchOrientation Orientation
	BandLevels         []float64

	// PMVE and BMVE are the reference elevations used by the shoreline
	// and permanent_flood rules.
	PMVE, BMVE float64

	// LevelColumns names the value columns of levels.csv.
	LevelColumns []string

	// Footprints enables writing GeoJSON outlines of the band and mesh
	// next to the cubes.
	Footprints bool
}

// DefaultSeasons returns the season definitions used when none are
// configured.
func DefaultSeasons() map[string][]int {
	return map[string][]int{
		"AN": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		"TA": {4, 5, 6, 7, 8, 9},
		"TB": {1, 2, 3, 10, 11, 12},
	}
}

// IndexPlan is a validated index with the rule that builds its cubes and
// the directory they are written to.
type IndexPlan struct {
	Name   string
	Rule   MaskRule
	AuxDir string
}

// Enriched is a validated run configuration together with the values
// derived from the input files.
type Enriched struct {
	Config RunConfig

	Indexes []IndexPlan

	// SimDirs and DTMFiles hold the directory and the sorted raster
	// files of each simulation.
	SimDirs  map[int]string
	DTMFiles map[int][]string

	// HorizonFiles holds, per simulation, the raster file of each
	// horizon time. It is only set when a horizon mode index is
	// requested.
	HorizonFiles map[int]map[int]string

	// Levels holds the level series of each simulation and Dates the
	// date labels they share.
	Levels map[int]*LevelSeries
	Dates  []string

	// ReturnPeriods holds the return period table of each simulation
	// when a horizon mode index is requested.
	ReturnPeriods map[int]*ReturnPeriodTable

	Seasons    map[string][]int
	BandLevels [2]float64
	FldPortion float64

	// Primary is the grid loaded from RunConfig.InputDTM.
	Primary *DTMGrid

	// CellCount is the number of cells of each mask slice.
	CellCount int
}

// Sims returns the simulation numbers in increasing order.
func (e *Enriched) Sims() []int {
	s := make([]int, e.Config.NumSims)
	for i := range s {
		s[i] = i + 1
	}
	return s
}
