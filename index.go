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
	"sort"
)

// MaskRule selects how the flooding level of a mask slice is derived.
type MaskRule string

// Mask rules.
const (
	Shoreline      MaskRule = "shoreline"
	WaveExtend     MaskRule = "wave_extend"
	FloodedArea    MaskRule = "flooded_area"
	PermanentFlood MaskRule = "permanent_flood"
	MeanLevel      MaskRule = "mean_level"
	FloodRP        MaskRule = "flood_RP"
)

// HorizonMode reports whether the rule builds slices per return period
// and horizon time rather than per date.
func (r MaskRule) HorizonMode() bool { return r == FloodRP }

// LevelParams are the fixed reference elevations some rules add to the
// sea level rise.
type LevelParams struct {
	PMVE float64 // mean high water elevation
	BMVE float64 // mean low water elevation
}

// LevelRule computes the flooding level of row i of a level series.
type LevelRule func(ls *LevelSeries, i int, p LevelParams) (float64, error)

// levelRules holds the date mode rules. FloodRP reads a return period
// table instead and has no entry.
var levelRules = map[MaskRule]LevelRule{
	Shoreline: func(ls *LevelSeries, i int, p LevelParams) (float64, error) {
		slr, err := ls.Value("slr", i)
		return p.PMVE + slr, err
	},
	WaveExtend: func(ls *LevelSeries, i int, _ LevelParams) (float64, error) {
		return ls.Value("total_water_level", i)
	},
	FloodedArea: func(ls *LevelSeries, i int, _ LevelParams) (float64, error) {
		return ls.Value("slr", i)
	},
	PermanentFlood: func(ls *LevelSeries, i int, p LevelParams) (float64, error) {
		slr, err := ls.Value("slr", i)
		return p.BMVE + slr, err
	},
	MeanLevel: func(ls *LevelSeries, i int, _ LevelParams) (float64, error) {
		return ls.Value("slr", i)
	},
}

// Level returns the flooding level for row i of ls under rule r.
func (r MaskRule) Level(ls *LevelSeries, i int, p LevelParams) (float64, error) {
	f, ok := levelRules[r]
	if !ok {
		return 0, fmt.Errorf("floodmask: mask rule %s has no date level rule", r)
	}
	return f(ls, i, p)
}

// indexRules maps every accepted index name to the mask rule that
// produces its mask cube. Indicator indices that have no dedicated
// level rule are built from the flooded area masks.
var indexRules = map[string]MaskRule{
	"mean-presence-boundary":             Shoreline,
	"maximum-influence-extent":           WaveExtend,
	"threshold-exceedance-frequency":     FloodedArea,
	"permanently-affected-zone":          PermanentFlood,
	"mean-representative-value":          MeanLevel,
	"return-period-based-extreme-value":  FloodRP,
	"spatial-change-rate":                FloodedArea,
	"functional-area-loss":               FloodedArea,
	"critical-boundary-retreat":          FloodedArea,
	"neighborhood":                       FloodedArea,
	"neighborhood-gradient-influence":    FloodedArea,
	"environmental-convergence":          FloodedArea,
	"neighborhood-polarization":          FloodedArea,
	"local-persistence":                  FloodedArea,
	"environmental-risk":                 FloodedArea,
	"directional-influence":              FloodedArea,
	"multivariate-neighborhood-synergy":  FloodedArea,
	"spatiotemporal-coupling":            FloodedArea,
	"multivariate-threshold-exceedance":  FloodedArea,
	"directional-co-evolution":           FloodedArea,
	"multivariate-persistence":           FloodedArea,
	"multivariate-recovery":              FloodedArea,
	string(Shoreline):                    Shoreline,
	string(WaveExtend):                   WaveExtend,
	string(FloodedArea):                  FloodedArea,
	string(PermanentFlood):               PermanentFlood,
	string(MeanLevel):                    MeanLevel,
	string(FloodRP):                      FloodRP,
}

// RuleFor returns the mask rule of an index name.
func RuleFor(index string) (MaskRule, error) {
	r, ok := indexRules[index]
	if !ok {
		return "", &ConfigError{Field: "index", Value: index, Reason: "is not a supported index"}
	}
	return r, nil
}

// IndexNames returns the accepted index names in sorted order.
func IndexNames() []string {
	names := make([]string, 0, len(indexRules))
	for n := range indexRules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
