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
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/floodmask"
	"github.com/spatialmodel/floodmask/internal/debugplot"
	"github.com/spatialmodel/floodmask/internal/observability"
	"github.com/spf13/cobra"
)

// newLogger returns a logger that writes to w.
func newLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
	return log
}

// Run validates cfg and builds the mask cubes it describes. Log
// messages are written to w and to o.LogFile.
func Run(ctx context.Context, w io.Writer, cfg *floodmask.RunConfig, o RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.LogFile != "" {
		logfile, err := os.Create(o.LogFile)
		if err != nil {
			return fmt.Errorf("floodmask: problem creating log file: %v", err)
		}
		defer logfile.Close()
		w = io.MultiWriter(w, logfile)
	}
	log := newLogger(w)

	start := time.Now()
	log.Info("validating configuration and inputs")
	e, err := floodmask.Validate(cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts := []floodmask.Option{
		floodmask.WithLogger(log),
		floodmask.WithMetrics(observability.NewMetrics(reg)),
	}
	if o.Workers > 0 {
		opts = append(opts, floodmask.WithWorkers(o.Workers))
	}
	if o.MemoryBudgetMB > 0 {
		opts = append(opts, floodmask.WithMemoryBudget(int64(o.MemoryBudgetMB)<<20))
	}
	if o.SurfaceCache > 0 {
		opts = append(opts, floodmask.WithSurfaceCache(o.SurfaceCache))
	}
	if o.DebugPlots != "" {
		if err := os.MkdirAll(o.DebugPlots, 0755); err != nil {
			return fmt.Errorf("floodmask: problem creating debug plot directory: %v", err)
		}
		opts = append(opts, floodmask.WithVisualizer(&debugplot.Plotter{Dir: o.DebugPlots}))
	}

	runErr := floodmask.NewPipeline(e, opts...).Run(ctx)

	if o.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(o.MetricsFile, reg); err != nil {
			log.WithError(err).Error("writing metrics")
		}
	}
	if runErr != nil {
		return runErr
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("run complete")
	return nil
}

// printSummary prints a description of a validated run.
func printSummary(cmd *cobra.Command, e *floodmask.Enriched) {
	names := make([]string, len(e.Indexes))
	for i, p := range e.Indexes {
		names[i] = p.Name
	}
	cmd.Printf("indexes:     %s\n", strings.Join(names, ", "))
	cmd.Printf("simulations: %d\n", e.Config.NumSims)
	cmd.Printf("dates:       %d\n", len(e.Dates))
	cmd.Printf("band levels: %g to %g\n", e.BandLevels[0], e.BandLevels[1])
	cmd.Printf("cells:       %d\n", e.CellCount)
	seasons := make([]string, 0, len(e.Seasons))
	for s := range e.Seasons {
		seasons = append(seasons, s)
	}
	sort.Strings(seasons)
	cmd.Printf("seasons:     %s\n", strings.Join(seasons, ", "))
	for _, p := range e.Indexes {
		cmd.Printf("%s: %d slices per cube -> %s\n", p.Name, len(e.Keys(p.Rule)), p.AuxDir)
	}
}
