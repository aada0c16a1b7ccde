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
	"fmt"
	"strings"

	"github.com/spatialmodel/floodmask"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to floodmask.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "index",
			usage: `
              index specifies the indicators or mask rules to build cubes
              for, for example 'flooded_area' or 'flood_RP'.`,
			shorthand:  "i",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "input_dtm",
			usage: `
              input_dtm is the elevation raster (ESRI ASCII or XYZ, optionally
              gzipped) that the band and the refined mesh are built from.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "no_sims",
			usage: `
              no_sims is the number of simulations in the ensemble.
              Simulation directories are named 0001, 0002, ...`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "directories.input_dtm",
			usage: `
              directories.input_dtm is the directory holding one
              subdirectory per simulation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "directories.output_path",
			usage: `
              directories.output_path is the root of the output tree.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "directories.temp_folder",
			usage: `
              directories.temp_folder is the folder below output_path that
              the mask cubes are written to.`,
			defaultVal: "tmp",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "seasons",
			usage: `
              seasons maps season names to months, for example
              {"TA":[4,5,6,7,8,9],"TB":[1,2,3,10,11,12]}. The defaults are
              used when it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "fld_portion",
			usage: `
              fld_portion is the flooded portion threshold recorded in the
              cube metadata.`,
			defaultVal: float64(floodmask.DefaultFldPortion),
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "return_periods",
			usage: `
              return_periods lists the return periods in years of flood_RP
              cubes.`,
			defaultVal: []float64{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "horizon_times",
			usage: `
              horizon_times lists the horizon years of flood_RP cubes.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "year_ini",
			usage: `
              year_ini is the year of the first row of the return period
              tables.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "refinement",
			usage: `
              refinement specifies whether the elevation rasters are
              resampled onto a rotated regular mesh before masking.`,
			shorthand:  "r",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "refinement_size",
			usage: `
              refinement_size is the spacing of the refined mesh, in the
              units of the raster coordinates. grid_size is accepted as an
              alias.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "stretch_orientation",
			usage: `
              stretch_orientation is the band orientation, WE (rows) or NS
              (columns).`,
			defaultVal: string(floodmask.WE),
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "band_levels",
			usage: `
              band_levels holds the lower and upper elevation of the band.
              When empty they are taken from the range of the level tables.`,
			defaultVal: []float64{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "PMVE",
			usage: `
              PMVE is the reference elevation of the shoreline rule.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "BMVE",
			usage: `
              BMVE is the reference elevation of the permanent_flood rule.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "level_columns",
			usage: `
              level_columns names the value columns of levels.csv.`,
			defaultVal: append([]string(nil), floodmask.DefaultLevelColumns...),
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "footprints",
			usage: `
              footprints specifies whether GeoJSON outlines of the band and
              the refined mesh are written next to the cubes.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of mask slices computed at once. Zero
              uses the number of processors.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "memory_budget_mb",
			usage: `
              memory_budget_mb caps the number of concurrent slices so that
              their working memory fits in the given number of megabytes.
              Zero disables the cap.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "surface_cache",
			usage: `
              surface_cache is the number of resampled rasters kept in
              memory so that indexes sharing a raster do not read it
              again. Zero disables the cache.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "debugplots",
			usage: `
              debugplots is a directory to write a plot of the band and the
              refined mesh to. Nothing is plotted when it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. Log
              messages are always written to standard output as well.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "metrics_file",
			usage: `
              metrics_file is a path to write the run metrics to in the
              Prometheus text format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FLOODMASK")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()
	Cfg.RegisterAlias("grid_size", "refinement_size")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []float64:
				set.Float64SliceP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(validateCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("floodmask: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "floodmask",
	Short: "Flood masks for raster elevation ensembles.",
	Long: `floodmask builds per-simulation cubes of flooded cells from an ensemble of
elevation rasters and the water levels that go with them.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FLOODMASK_var' where 'var' is the
name of the variable to be set, with dots replaced by underscores. Paths
are allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of floodmask.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("floodmask v%s\n", floodmask.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the mask cubes.",
	Long: `run validates the configuration and the ensemble inputs and then writes one
mask cube per simulation and requested index.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := RunConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd.Context(), cmd.OutOrStdout(), cfg, RunOptionsFromViper(Cfg))
	},
	DisableAutoGenTag: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the ensemble inputs.",
	Long: `validate runs every check that run performs before building masks, reports
a summary of the ensemble, and exits without writing any cubes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := RunConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		log := newLogger(cmd.OutOrStdout())
		e, err := floodmask.Validate(cfg, log)
		if err != nil {
			return err
		}
		printSummary(cmd, e)
		return nil
	},
	DisableAutoGenTag: true,
}
