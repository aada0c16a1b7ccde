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

package floodmaskutil

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spatialmodel/floodmask"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// RunConfigFromViper creates a run configuration from the
// configuration information in cfg. Environment variables in paths
// are expanded.
func RunConfigFromViper(cfg *viper.Viper) (*floodmask.RunConfig, error) {
	index, err := toStringSliceE(cfg.Get("index"))
	if err != nil {
		return nil, fmt.Errorf("floodmask: index: %v", err)
	}
	returnPeriods, err := toFloat64SliceE(cfg.Get("return_periods"))
	if err != nil {
		return nil, fmt.Errorf("floodmask: return_periods: %v", err)
	}
	horizons, err := toIntSliceE(cfg.Get("horizon_times"))
	if err != nil {
		return nil, fmt.Errorf("floodmask: horizon_times: %v", err)
	}
	bandLevels, err := toFloat64SliceE(cfg.Get("band_levels"))
	if err != nil {
		return nil, fmt.Errorf("floodmask: band_levels: %v", err)
	}
	columns, err := toStringSliceE(cfg.Get("level_columns"))
	if err != nil {
		return nil, fmt.Errorf("floodmask: level_columns: %v", err)
	}
	seasons, err := getSeasons("seasons", cfg)
	if err != nil {
		return nil, err
	}
	// A zero RunConfig.FldPortion selects the default, so an explicit
	// zero is rejected here.
	if fp := cfg.GetFloat64("fld_portion"); cfg.IsSet("fld_portion") && !(fp > 0) {
		return nil, &floodmask.ConfigError{Field: "fld_portion", Value: fp, Reason: "must be positive"}
	}
	c := &floodmask.RunConfig{
		Index:              index,
		InputDTM:           os.ExpandEnv(cfg.GetString("input_dtm")),
		NumSims:            cfg.GetInt("no_sims"),
		DTMDir:             os.ExpandEnv(cfg.GetString("directories.input_dtm")),
		OutputPath:         os.ExpandEnv(cfg.GetString("directories.output_path")),
		TempFolder:         os.ExpandEnv(cfg.GetString("directories.temp_folder")),
		Seasons:            seasons,
		FldPortion:         cfg.GetFloat64("fld_portion"),
		ReturnPeriods:      returnPeriods,
		HorizonTimes:       horizons,
		YearIni:            cfg.GetInt("year_ini"),
		Refinement:         cfg.GetBool("refinement"),
		RefinementSize:     cfg.GetFloat64("refinement_size"),
		StretchOrientation: floodmask.Orientation(strings.ToUpper(strings.TrimSpace(cfg.GetString("stretch_orientation")))),
		BandLevels:         bandLevels,
		PMVE:               cfg.GetFloat64("PMVE"),
		BMVE:               cfg.GetFloat64("BMVE"),
		LevelColumns:       columns,
		Footprints:         cfg.GetBool("footprints"),
	}
	return c, nil
}

// RunOptions holds the settings of a run that do not change its
// results.
type RunOptions struct {
	// LogFile receives a copy of the log when it is not empty.
	LogFile string

	// MetricsFile receives the run metrics when it is not empty.
	MetricsFile string

	// DebugPlots is the directory of the band and mesh plot.
	DebugPlots string

	Workers        int
	MemoryBudgetMB int
	SurfaceCache   int
}

// RunOptionsFromViper reads the run options from cfg.
func RunOptionsFromViper(cfg *viper.Viper) RunOptions {
	return RunOptions{
		LogFile:        os.ExpandEnv(cfg.GetString("LogFile")),
		MetricsFile:    os.ExpandEnv(cfg.GetString("metrics_file")),
		DebugPlots:     os.ExpandEnv(cfg.GetString("debugplots")),
		Workers:        cfg.GetInt("workers"),
		MemoryBudgetMB: cfg.GetInt("memory_budget_mb"),
		SurfaceCache:   cfg.GetInt("surface_cache"),
	}
}

// getSeasons returns the season definitions from a viper
// configuration, accounting for the fact that they might be a json
// object if they were set from a command line argument. An empty value
// returns nil.
func getSeasons(varName string, cfg *viper.Viper) (map[string][]int, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string][]int:
		return v, nil
	case map[string]interface{}:
		o := make(map[string][]int, len(v))
		for name, months := range v {
			m, err := toIntSliceE(months)
			if err != nil {
				return nil, fmt.Errorf("floodmask: %s.%s: %v", varName, name, err)
			}
			o[name] = m
		}
		return o, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		o := make(map[string][]int)
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, fmt.Errorf("floodmask: %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("floodmask: invalid type for %s: %#v", varName, i)
	}
}

// listFields splits a list given as a single string, as it is when set
// from an environment variable.
func listFields(s string) []string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "[")
	s = strings.TrimSuffix(s, "]")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func toStringSliceE(i interface{}) ([]string, error) {
	switch v := i.(type) {
	case nil:
		return nil, nil
	case string:
		return listFields(v), nil
	}
	return cast.ToStringSliceE(i)
}

func toFloat64SliceE(i interface{}) ([]float64, error) {
	switch v := i.(type) {
	case nil:
		return nil, nil
	case string:
		return cast.ToFloat64SliceE(listFields(v))
	}
	return cast.ToFloat64SliceE(i)
}

func toIntSliceE(i interface{}) ([]int, error) {
	switch v := i.(type) {
	case nil:
		return nil, nil
	case string:
		return cast.ToIntSliceE(listFields(v))
	}
	return cast.ToIntSliceE(i)
}
