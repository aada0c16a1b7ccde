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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/ctessum/sparse"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/floodmask/internal/hash"
	"golang.org/x/sync/errgroup"
)

// Visualizer receives the band and the refined mesh of a run once they
// have been built, for example to plot them for debugging.
type Visualizer interface {
	Visualize(b *Band, m *RefinedMesh) error
}

// MetricsRecorder receives the progress of a pipeline run.
type MetricsRecorder interface {
	// UnitDone is called after each mask slice with its duration and
	// its error, if any.
	UnitDone(index string, d time.Duration, err error)
	// CubeWritten is called after a simulation cube is committed.
	CubeWritten(index string)
	// CubeFailed is called when a simulation cube is discarded.
	CubeFailed(index string)
}

// Pipeline computes the mask cubes of a validated run.
type Pipeline struct {
	e *Enriched

	log          logrus.FieldLogger
	clock        clockwork.Clock
	workers      int
	memoryBudget int64
	metrics      MetricsRecorder
	visualizer   Visualizer
	surfaceCache int

	configHash string
	surfaces   *surfaceCache
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock sets the clock used to time mask slices.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithWorkers sets the maximum number of mask slices computed at once.
// Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithMemoryBudget limits the number of mask slices computed at once so
// that their estimated memory use stays below the given number of bytes.
// Zero means no limit.
func WithMemoryBudget(bytes int64) Option {
	return func(p *Pipeline) { p.memoryBudget = bytes }
}

// WithMetrics sets the recorder for pipeline progress.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithVisualizer sets a hook that is called with the band and mesh of a
// refined run.
func WithVisualizer(v Visualizer) Option {
	return func(p *Pipeline) { p.visualizer = v }
}

// WithSurfaceCache keeps up to n analysis grid surfaces in memory so
// that indexes sharing a raster do not read and resample it again. Each
// entry holds one float64 per analysis cell.
func WithSurfaceCache(n int) Option {
	return func(p *Pipeline) { p.surfaceCache = n }
}

// NewPipeline creates a pipeline for a validated run.
func NewPipeline(e *Enriched, opts ...Option) *Pipeline {
	p := &Pipeline{
		e:          e,
		log:        logrus.StandardLogger(),
		clock:      clockwork.NewRealClock(),
		metrics:    nopMetrics{},
		configHash: hash.Hash(e.Config),
	}
	for _, o := range opts {
		o(p)
	}
	if p.workers < 1 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	return p
}

type nopMetrics struct{}

func (nopMetrics) UnitDone(string, time.Duration, error) {}
func (nopMetrics) CubeWritten(string)                    {}
func (nopMetrics) CubeFailed(string)                     {}

// grid is the shared, read-only analysis grid of a run.
type grid struct {
	band *Band
	mesh *RefinedMesh
	tri  *Triangulation

	// x and y are the analysis grid coordinates.
	x, y *sparse.DenseArray
}

// prepare builds the band, the refined mesh and its triangulation.
func (p *Pipeline) prepare() (*grid, error) {
	e := p.e
	if !e.Config.Refinement {
		return &grid{x: e.Primary.X, y: e.Primary.Y}, nil
	}
	band, err := ExtractBand(e.Primary, e.BandLevels, e.Config.StretchOrientation)
	if err != nil {
		return nil, err
	}
	mesh, err := AlignAndRefine(band.X, band.Y, arrayBounds(band.X, band.Y), e.Config.RefinementSize)
	if err != nil {
		return nil, err
	}
	tri, err := NewTriangulation(band)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"band_lines": len(band.Lines),
		"mesh_shape": mesh.Shape(),
		"angle":      mesh.Angle,
	}).Info("built refinement band and mesh")
	if p.visualizer != nil {
		if err := p.visualizer.Visualize(band, mesh); err != nil {
			p.log.WithError(err).Warn("visualizing band and mesh")
		}
	}
	if e.Config.Footprints && len(e.Indexes) > 0 {
		if err := WriteFootprints(e.Indexes[0].AuxDir, band, mesh); err != nil {
			return nil, err
		}
	}
	return &grid{band: band, mesh: mesh, tri: tri, x: mesh.X, y: mesh.Y}, nil
}

// unitBytes estimates the peak memory of one mask slice computation.
func (p *Pipeline) unitBytes() int64 {
	raw := int64(len(p.e.Primary.Z.Elements)) * 3 * 8
	analysis := int64(p.e.CellCount) * (8 + 1)
	return raw + analysis
}

// width returns the number of mask slices that may be computed at once.
func (p *Pipeline) width() int {
	w := p.workers
	if p.memoryBudget > 0 {
		byMemory := int(p.memoryBudget / p.unitBytes())
		if byMemory < 1 {
			byMemory = 1
		}
		if byMemory < w {
			p.log.WithFields(logrus.Fields{
				"workers":    w,
				"unit_bytes": p.unitBytes(),
			}).Infof("limiting concurrency to %d by memory budget", byMemory)
			w = byMemory
		}
	}
	return w
}

// Run computes and writes the cubes of every index and simulation.
// Simulations run concurrently; a failing simulation does not stop the
// others. The returned error joins the errors of all failed simulations.
func (p *Pipeline) Run(ctx context.Context) error {
	g, err := p.prepare()
	if err != nil {
		return err
	}

	width := p.width()
	if p.surfaceCache > 0 {
		p.surfaces = newSurfaceCache(p.surfaceCache, func(file string) ([]float64, error) {
			return p.loadSurface(g, file)
		})
	}

	sem := make(chan struct{}, width) // semaphore pattern

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, plan := range p.e.Indexes {
		for _, sim := range p.e.Sims() {
			wg.Add(1)
			go func(plan IndexPlan, sim int) {
				defer wg.Done()
				if err := p.simulation(ctx, g, plan, sim, sem); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(plan, sim)
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Keys returns the slice keys of a cube built with rule r.
func (e *Enriched) Keys(r MaskRule) []SliceKey {
	if r.HorizonMode() {
		var keys []SliceKey
		for _, rp := range e.Config.ReturnPeriods {
			for _, h := range e.Config.HorizonTimes {
				keys = append(keys, SliceKey{ReturnPeriod: rp, Horizon: h})
			}
		}
		return keys
	}
	keys := make([]SliceKey, len(e.Dates))
	for i, d := range e.Dates {
		keys[i] = SliceKey{Date: d}
	}
	return keys
}

// simulation computes and writes the cube of one simulation and index.
func (p *Pipeline) simulation(ctx context.Context, g *grid, plan IndexPlan, sim int, sem chan struct{}) error {
	log := p.log.WithFields(logrus.Fields{"index": plan.Name, "sim": sim})
	keys := p.e.Keys(plan.Rule)
	path := filepath.Join(plan.AuxDir, CubeFileName(plan.Name, sim))
	w, err := NewCubeWriter(path, keys, CubeMeta{
		X:           g.x,
		Y:           g.y,
		Description: fmt.Sprintf("Submersion masks of index %s for simulation %02d", plan.Name, sim),
		Stretch:     p.e.Config.StretchOrientation,
		Sim:         sim,
		Index:       plan.Name,
		Rule:        plan.Rule,
		Refinement:  p.e.Config.Refinement,
		Angle:       g.angle(),
		FldPortion:  p.e.FldPortion,
		CreatedBy:   "floodmask " + Version,
		ConfigHash:  p.configHash,
	})
	if err != nil {
		log.WithError(err).Error("creating cube")
		p.metrics.CubeFailed(plan.Name)
		return fmt.Errorf("floodmask: index %s simulation %d: %w", plan.Name, sim, err)
	}

	eg, ectx := errgroup.WithContext(ctx)
loop:
	for i, k := range keys {
		select {
		case sem <- struct{}{}:
		case <-ectx.Done():
			break loop
		}
		eg.Go(func() error {
			defer func() { <-sem }()
			if err := ectx.Err(); err != nil {
				return err
			}
			start := p.clock.Now()
			err := p.unit(ectx, g, plan, sim, i, k, w)
			p.metrics.UnitDone(plan.Name, p.clock.Since(start), err)
			if err != nil {
				log.WithField("slice", k.Label()).WithError(err).Error("computing mask slice")
				return fmt.Errorf("slice %s: %w", k.Label(), err)
			}
			log.WithField("slice", k.Label()).Debug("mask slice done")
			return nil
		})
	}
	err = eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		w.Abort()
		p.metrics.CubeFailed(plan.Name)
		return fmt.Errorf("floodmask: index %s simulation %d: %w", plan.Name, sim, err)
	}
	if err := w.Commit(); err != nil {
		log.WithError(err).Error("saving cube")
		w.Abort()
		p.metrics.CubeFailed(plan.Name)
		return fmt.Errorf("floodmask: index %s simulation %d: %w", plan.Name, sim, err)
	}
	p.metrics.CubeWritten(plan.Name)
	log.WithField("path", path).Info("saved mask cube")
	return nil
}

func (g *grid) angle() float64 {
	if g.mesh == nil {
		return 0
	}
	return g.mesh.Angle
}

// unit computes slice i of a cube and writes it.
func (p *Pipeline) unit(ctx context.Context, g *grid, plan IndexPlan, sim, i int, k SliceKey, w *CubeWriter) error {
	level, file, err := p.levelAndFile(plan.Rule, sim, i, k)
	if err != nil {
		return err
	}
	var z []float64
	if p.surfaces == nil {
		z, err = p.loadSurface(g, file)
	} else {
		z, err = p.surfaces.get(ctx, file)
	}
	if err != nil {
		return err
	}
	return w.WriteSlice(i, MaskSlice(z, level))
}

// loadSurface reads a raster and returns its elevations on the analysis
// grid. The result must not be modified when surfaces are cached.
func (p *Pipeline) loadSurface(g *grid, file string) ([]float64, error) {
	dtm, err := ReadDTM(file)
	if err != nil {
		return nil, err
	}
	z, err := p.surface(g, dtm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return z, nil
}

// levelAndFile returns the flooding level and the raster file of a
// slice.
func (p *Pipeline) levelAndFile(r MaskRule, sim, i int, k SliceKey) (float64, string, error) {
	e := p.e
	if r.HorizonMode() {
		level, err := e.ReturnPeriods[sim].MaxLevel(k.ReturnPeriod, k.Horizon-e.Config.YearIni)
		if err != nil {
			return 0, "", err
		}
		file, ok := e.HorizonFiles[sim][k.Horizon]
		if !ok {
			return 0, "", &ResourceError{What: fmt.Sprintf("DTM file for horizon %d", k.Horizon), Path: e.SimDirs[sim]}
		}
		return level, file, nil
	}
	level, err := r.Level(e.Levels[sim], i, LevelParams{PMVE: e.Config.PMVE, BMVE: e.Config.BMVE})
	if err != nil {
		return 0, "", err
	}
	files := e.DTMFiles[sim]
	if i >= len(files) {
		return 0, "", &ResourceError{What: fmt.Sprintf("DTM file for date %s", k.Date), Path: e.SimDirs[sim]}
	}
	return level, files[i], nil
}

// surface returns the elevations of dtm on the analysis grid.
func (p *Pipeline) surface(g *grid, dtm *DTMGrid) ([]float64, error) {
	if err := dtm.check(); err != nil {
		return nil, err
	}
	if g.mesh == nil {
		if len(dtm.Z.Elements) != len(g.x.Elements) || dtm.Rows() != g.x.Shape[0] {
			return nil, fmt.Errorf("floodmask: grid is %dx%d but the analysis grid is %dx%d",
				dtm.Rows(), dtm.Cols(), g.x.Shape[0], g.x.Shape[1])
		}
		return dtm.Z.Elements, nil
	}
	ip, err := g.tri.Interpolator(dtm, g.band)
	if err != nil {
		return nil, err
	}
	z, err := ip.Grid(g.mesh)
	if err != nil {
		return nil, err
	}
	return z.Elements, nil
}
