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
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Mesh size thresholds for the memory advisory.
const (
	largeMeshCells     = 1000000
	veryLargeMeshCells = 10000000
)

// SimDir returns the input directory of simulation sim.
func SimDir(dtmDir string, sim int) string {
	return filepath.Join(dtmDir, fmt.Sprintf("%04d", sim))
}

// Validate checks a run configuration against the input files and
// returns the enriched configuration the pipeline runs on. Checks run in
// a fixed order and the first failure is returned. Index names are
// checked before any file is touched.
func Validate(cfg *RunConfig, log logrus.FieldLogger) (*Enriched, error) {
	e := &Enriched{
		Config:        *cfg,
		SimDirs:       make(map[int]string),
		DTMFiles:      make(map[int][]string),
		Levels:        make(map[int]*LevelSeries),
		ReturnPeriods: make(map[int]*ReturnPeriodTable),
	}

	if len(cfg.Index) == 0 {
		return nil, &ConfigError{Field: "index", Reason: "must be specified"}
	}
	horizon, dated := false, false
	for _, name := range cfg.Index {
		rule, err := RuleFor(name)
		if err != nil {
			return nil, err
		}
		e.Indexes = append(e.Indexes, IndexPlan{Name: name, Rule: rule})
		if rule.HorizonMode() {
			horizon = true
		} else {
			dated = true
		}
	}
	if err := checkScalars(cfg); err != nil {
		return nil, err
	}
	// Zero is the unset value.
	e.FldPortion = cfg.FldPortion
	if e.FldPortion == 0 {
		e.FldPortion = DefaultFldPortion
	}

	if cfg.InputDTM == "" {
		return nil, &ConfigError{Field: "input_dtm", Reason: "must be specified"}
	}
	if _, err := os.Stat(cfg.InputDTM); err != nil {
		return nil, &ResourceError{What: "DTM file", Path: cfg.InputDTM, Err: err}
	}

	for _, sim := range e.Sims() {
		dir := SimDir(cfg.DTMDir, sim)
		files, err := rasterFiles(dir)
		if err != nil {
			return nil, &ResourceError{What: fmt.Sprintf("directory of simulation %d", sim), Path: dir, Err: err}
		}
		if len(files) == 0 {
			return nil, &ResourceError{What: fmt.Sprintf("DTM files of simulation %d", sim), Path: dir}
		}
		e.SimDirs[sim] = dir
		e.DTMFiles[sim] = files
	}

	if cfg.Seasons == nil {
		e.Seasons = DefaultSeasons()
	} else {
		e.Seasons = make(map[string][]int, len(cfg.Seasons))
		for name, months := range cfg.Seasons {
			for _, m := range months {
				if m < 1 || m > 12 {
					return nil, &ConfigError{Field: "seasons." + name, Value: m, Reason: "is not a month number"}
				}
			}
			e.Seasons[name] = append([]int(nil), months...)
		}
	}

	auxDir := filepath.Join(cfg.OutputPath, cfg.TempFolder, "matrix")
	for i := range e.Indexes {
		if err := os.MkdirAll(auxDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("floodmask: creating output directory for index %s: %w", e.Indexes[i].Name, err)
		}
		e.Indexes[i].AuxDir = auxDir
	}

	for _, sim := range e.Sims() {
		ls, err := ReadLevelSeries(filepath.Join(e.SimDirs[sim], "levels.csv"), cfg.LevelColumns)
		if err != nil {
			return nil, err
		}
		if sim == 1 {
			e.Dates = ls.Dates
		} else if !e.Levels[1].SameDates(ls) {
			return nil, &ConfigError{Field: "levels.csv", Value: sim,
				Reason: "dates do not match the dates of simulation 1"}
		}
		e.Levels[sim] = ls
		if dated && len(e.DTMFiles[sim]) != len(ls.Dates) {
			return nil, &ConfigError{Field: "levels.csv", Value: sim,
				Reason: fmt.Sprintf("has %d dates but %d DTM files were found", len(ls.Dates), len(e.DTMFiles[sim]))}
		}
	}

	if horizon && len(cfg.HorizonTimes) == 0 {
		return nil, &ConfigError{Field: "horizon_times", Reason: "must be specified for index flood_RP"}
	}
	years := make(map[int]bool)
	for _, d := range e.Dates {
		if y, ok := DateYear(d); ok {
			years[y] = true
		}
	}
	for _, h := range cfg.HorizonTimes {
		if !years[h] {
			return nil, &ConfigError{Field: "horizon_times", Value: h, Reason: "does not match any available date"}
		}
	}

	if horizon && len(cfg.ReturnPeriods) == 0 {
		return nil, &ConfigError{Field: "return_periods", Reason: "must be specified for index flood_RP"}
	}
	for _, rp := range cfg.ReturnPeriods {
		if !(rp > 0) {
			return nil, &ConfigError{Field: "return_periods", Value: rp, Reason: "must be positive"}
		}
	}
	if horizon && cfg.YearIni == 0 {
		return nil, &ConfigError{Field: "year_ini", Reason: "must be specified for index flood_RP"}
	}
	if horizon {
		if err := e.loadHorizonInputs(); err != nil {
			return nil, err
		}
	}

	if cfg.Refinement {
		if len(cfg.BandLevels) == 0 {
			e.BandLevels = e.levelRange()
			log.WithField("band_levels", e.BandLevels).Info("band levels derived from level series")
		} else {
			e.BandLevels = [2]float64{cfg.BandLevels[0], cfg.BandLevels[1]}
		}
	}

	primary, err := ReadDTM(cfg.InputDTM)
	if err != nil {
		return nil, err
	}
	if err := primary.check(); err != nil {
		return nil, fmt.Errorf("floodmask: %s: %w", cfg.InputDTM, err)
	}
	e.Primary = primary
	e.meshAdvisory(log)
	return e, nil
}

// checkScalars checks the configuration values that need no input files.
func checkScalars(cfg *RunConfig) error {
	if cfg.NumSims < 1 {
		return &ConfigError{Field: "no_sims", Value: cfg.NumSims, Reason: "must be at least 1"}
	}
	if cfg.FldPortion < 0 || math.IsNaN(cfg.FldPortion) {
		return &ConfigError{Field: "fld_portion", Value: cfg.FldPortion, Reason: "must be positive"}
	}
	if !cfg.Refinement {
		return nil
	}
	if !(cfg.RefinementSize > 0) {
		return &ConfigError{Field: "refinement_size", Value: cfg.RefinementSize, Reason: "must be > 0"}
	}
	if !cfg.StretchOrientation.Valid() {
		return &ConfigError{Field: "stretch_orientation", Value: string(cfg.StretchOrientation), Reason: "must be WE or NS"}
	}
	switch len(cfg.BandLevels) {
	case 0:
	case 2:
		if !(cfg.BandLevels[0] < cfg.BandLevels[1]) {
			return &ConfigError{Field: "band_levels", Value: cfg.BandLevels, Reason: "must be increasing"}
		}
	default:
		return &ConfigError{Field: "band_levels", Value: cfg.BandLevels, Reason: "must hold a minimum and a maximum"}
	}
	return nil
}

// rasterFiles returns the sorted raster files in dir.
func rasterFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, de := range entries {
		if de.IsDir() || !IsRaster(de.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, de.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// loadHorizonInputs reads the return period tables and finds the raster
// file of each horizon time.
func (e *Enriched) loadHorizonInputs() error {
	e.HorizonFiles = make(map[int]map[int]string)
	for _, sim := range e.Sims() {
		t, err := ReadReturnPeriodTable(filepath.Join(e.SimDirs[sim], "levels_rp_tH.csv"))
		if err != nil {
			return err
		}
		for _, rp := range e.Config.ReturnPeriods {
			if _, err := t.MaxLevel(rp, math.MaxInt32); err != nil {
				return &ConfigError{Field: "return_periods", Value: rp,
					Reason: fmt.Sprintf("is missing from the return period table of simulation %d", sim)}
			}
		}
		for _, h := range e.Config.HorizonTimes {
			if _, err := t.MaxLevel(e.Config.ReturnPeriods[0], h-e.Config.YearIni); err != nil {
				return &ConfigError{Field: "horizon_times", Value: h,
					Reason: fmt.Sprintf("has no row up to year_ini=%d in the return period table of simulation %d",
						e.Config.YearIni, sim)}
			}
		}
		e.ReturnPeriods[sim] = t

		e.HorizonFiles[sim] = make(map[int]string)
		for _, h := range e.Config.HorizonTimes {
			tag := strconv.Itoa(h)
			for _, f := range e.DTMFiles[sim] {
				if strings.Contains(filepath.Base(f), tag) {
					e.HorizonFiles[sim][h] = f
					break
				}
			}
			if _, ok := e.HorizonFiles[sim][h]; !ok {
				return &ResourceError{What: fmt.Sprintf("DTM file for horizon %d of simulation %d", h, sim),
					Path: e.SimDirs[sim]}
			}
		}
	}
	return nil
}

// levelRange returns the smallest and largest level over every
// simulation.
func (e *Enriched) levelRange() [2]float64 {
	r := [2]float64{math.Inf(1), math.Inf(-1)}
	for _, ls := range e.Levels {
		min, max := ls.Range()
		r[0] = math.Min(r[0], min)
		r[1] = math.Max(r[1], max)
	}
	return r
}

// meshAdvisory sets the analysis cell count and logs when it is large.
func (e *Enriched) meshAdvisory(log logrus.FieldLogger) {
	nx, ny := e.Primary.Cols(), e.Primary.Rows()
	if e.Config.Refinement {
		bounds := e.Primary.Bounds()
		if b, err := ExtractBand(e.Primary, e.BandLevels, e.Config.StretchOrientation); err == nil {
			bounds = arrayBounds(b.X, b.Y)
		}
		nx, ny = MeshSize(bounds, e.Config.RefinementSize)
	}
	e.CellCount = nx * ny
	fields := logrus.Fields{"nx": nx, "ny": ny, "cells": e.CellCount}
	switch {
	case e.CellCount > veryLargeMeshCells:
		log.WithFields(fields).Warnf("very large mesh: this may cause memory issues; "+
			"consider increasing refinement_size (currently %g) to reduce resolution", e.Config.RefinementSize)
	case e.CellCount > largeMeshCells:
		log.WithFields(fields).Info("considerable mesh size: monitor memory usage")
	}
}
