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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/floodmask"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEnsemble writes a two simulation ensemble of 6x6 ramps with
// three dates and returns the path of a configuration file for it.
func writeEnsemble(t *testing.T, dir string) string {
	t.Helper()
	var asc strings.Builder
	asc.WriteString("ncols 6\nnrows 6\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n")
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if j > 0 {
				asc.WriteString(" ")
			}
			fmt.Fprintf(&asc, "%g", float64(i*6+j)/20)
		}
		asc.WriteString("\n")
	}
	dates := []string{"20200101", "20200201", "20200301"}
	dtmDir := filepath.Join(dir, "dtm")
	for sim := 1; sim <= 2; sim++ {
		simDir := floodmask.SimDir(dtmDir, sim)
		require.NoError(t, os.MkdirAll(simDir, 0755))
		var lv strings.Builder
		for i, d := range dates {
			require.NoError(t, os.WriteFile(filepath.Join(simDir, "dtm_"+d+".asc"), []byte(asc.String()), 0644))
			fmt.Fprintf(&lv, "%s,%g,0.1,%g\n", d, 0.4*float64(i+1), 0.4*float64(i+1)+0.1)
		}
		require.NoError(t, os.WriteFile(filepath.Join(simDir, "levels.csv"), []byte(lv.String()), 0644))
	}
	cfg := map[string]interface{}{
		"index":        []string{"flooded_area", "mean_level"},
		"input_dtm":    filepath.Join(floodmask.SimDir(dtmDir, 1), "dtm_"+dates[0]+".asc"),
		"no_sims":      2,
		"metrics_file": filepath.Join(dir, "metrics.prom"),
		"directories": map[string]string{
			"input_dtm":   dtmDir,
			"output_path": filepath.Join(dir, "out"),
			"temp_folder": "tmp",
		},
	}
	path := filepath.Join(dir, "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	return path
}

func TestRunConfigFromViper(t *testing.T) {
	t.Run("config file types", func(t *testing.T) {
		v := viper.New()
		v.Set("index", []interface{}{"flooded_area"})
		v.Set("no_sims", int64(3))
		v.Set("return_periods", []interface{}{int64(10), 100.0})
		v.Set("horizon_times", []interface{}{int64(2030), int64(2050)})
		v.Set("band_levels", []interface{}{-1.0, int64(3)})
		v.Set("seasons", map[string]interface{}{"wet": []interface{}{int64(1), int64(2)}})
		v.Set("stretch_orientation", " ns")
		v.Set("refinement_size", 12.5)
		cfg, err := RunConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, []string{"flooded_area"}, cfg.Index)
		assert.Equal(t, 3, cfg.NumSims)
		assert.Equal(t, []float64{10, 100}, cfg.ReturnPeriods)
		assert.Equal(t, []int{2030, 2050}, cfg.HorizonTimes)
		assert.Equal(t, []float64{-1, 3}, cfg.BandLevels)
		assert.Equal(t, map[string][]int{"wet": {1, 2}}, cfg.Seasons)
		assert.Equal(t, floodmask.NS, cfg.StretchOrientation)
		assert.Equal(t, 12.5, cfg.RefinementSize)
	})
	t.Run("environment strings", func(t *testing.T) {
		v := viper.New()
		v.Set("index", "shoreline,flooded_area")
		v.Set("return_periods", "[10, 50]")
		v.Set("horizon_times", "2030 2050")
		v.Set("seasons", `{"dry":[6,7,8]}`)
		cfg, err := RunConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, []string{"shoreline", "flooded_area"}, cfg.Index)
		assert.Equal(t, []float64{10, 50}, cfg.ReturnPeriods)
		assert.Equal(t, []int{2030, 2050}, cfg.HorizonTimes)
		assert.Equal(t, map[string][]int{"dry": {6, 7, 8}}, cfg.Seasons)
	})
	t.Run("expand paths", func(t *testing.T) {
		t.Setenv("FLOODMASK_TEST_ROOT", "/data")
		v := viper.New()
		v.Set("directories.input_dtm", "${FLOODMASK_TEST_ROOT}/dtm")
		v.Set("input_dtm", "$FLOODMASK_TEST_ROOT/base.asc")
		cfg, err := RunConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/data/dtm", cfg.DTMDir)
		assert.Equal(t, "/data/base.asc", cfg.InputDTM)
		assert.Nil(t, cfg.Seasons)
	})
	t.Run("bad values", func(t *testing.T) {
		v := viper.New()
		v.Set("return_periods", "10,ten")
		_, err := RunConfigFromViper(v)
		assert.Error(t, err)

		v = viper.New()
		v.Set("seasons", "{")
		_, err = RunConfigFromViper(v)
		assert.Error(t, err)
	})
	t.Run("fld_portion", func(t *testing.T) {
		v := viper.New()
		cfg, err := RunConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 0.0, cfg.FldPortion)

		v.Set("fld_portion", 2.5)
		cfg, err = RunConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 2.5, cfg.FldPortion)

		v.Set("fld_portion", 0)
		_, err = RunConfigFromViper(v)
		var cerr *floodmask.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "fld_portion", cerr.Field)
	})
}

func TestGridSizeAlias(t *testing.T) {
	Cfg.Set("grid_size", 40.0)
	defer Cfg.Set("refinement_size", 0.0)
	cfg, err := RunConfigFromViper(Cfg)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.RefinementSize)
}

func TestDefaults(t *testing.T) {
	cfg, err := RunConfigFromViper(Cfg)
	require.NoError(t, err)
	assert.Equal(t, floodmask.DefaultLevelColumns, cfg.LevelColumns)
	assert.Equal(t, float64(floodmask.DefaultFldPortion), cfg.FldPortion)
	assert.Equal(t, floodmask.WE, cfg.StretchOrientation)
	assert.Equal(t, "tmp", cfg.TempFolder)
	assert.Equal(t, 1, cfg.NumSims)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Equal(t, "floodmask v"+floodmask.Version+"\n", out.String())
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeEnsemble(t, dir)
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"validate", "--config", path})
	require.NoError(t, Root.Execute())
	assert.Contains(t, out.String(), "simulations: 2")
	assert.Contains(t, out.String(), "flooded_area: 3 slices per cube")
	_, err := os.Stat(filepath.Join(dir, "out", "tmp", "matrix", floodmask.CubeFileName("flooded_area", 1)))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeEnsemble(t, dir)
	logFile := filepath.Join(dir, "run.log")
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"run", "--config", path, "--LogFile", logFile, "--workers", "2", "--surface_cache", "6"})
	require.NoError(t, Root.Execute())

	for _, index := range []string{"flooded_area", "mean_level"} {
		for sim := 1; sim <= 2; sim++ {
			c, meta, err := floodmask.ReadCube(filepath.Join(dir, "out", "tmp", "matrix", floodmask.CubeFileName(index, sim)))
			require.NoError(t, err)
			assert.Equal(t, sim, meta.Sim)
			assert.Equal(t, index, meta.Index)
			assert.Len(t, c.Keys, 3)
			assert.Len(t, c.Masks[0], 36)
		}
	}

	log, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(log), "run complete")
	assert.Contains(t, out.String(), "run complete")

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `floodmask_cubes_written_total{index="flooded_area"} 2`)
	assert.Contains(t, string(metrics), `floodmask_slices_processed_total{index="mean_level"} 6`)
}

func TestRunCommandBadIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeEnsemble(t, dir)
	Cfg.Set("index", []string{"not_an_index"})
	defer Cfg.Set("index", nil)
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&out)
	Root.SetArgs([]string{"run", "--config", path, "--LogFile", ""})
	err := Root.Execute()
	require.Error(t, err)
	var ce *floodmask.ConfigError
	assert.ErrorAs(t, err, &ce)
}
