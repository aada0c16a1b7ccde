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

// Package observability holds the Prometheus metrics of mask runs.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for a mask run.
// It satisfies floodmask.MetricsRecorder.
type Metrics struct {
	SlicesProcessed *prometheus.CounterVec   // labels: index
	SlicesFailed    *prometheus.CounterVec   // labels: index
	CubesWritten    *prometheus.CounterVec   // labels: index
	CubesFailed     *prometheus.CounterVec   // labels: index
	SliceDuration   *prometheus.HistogramVec // labels: index
}

// NewMetrics creates the run metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlicesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodmask",
			Name:      "slices_processed_total",
			Help:      "Mask slices computed, including failed ones.",
		}, []string{"index"}),
		SlicesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodmask",
			Name:      "slices_failed_total",
			Help:      "Mask slices that could not be computed.",
		}, []string{"index"}),
		CubesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodmask",
			Name:      "cubes_written_total",
			Help:      "Simulation mask cubes written.",
		}, []string{"index"}),
		CubesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodmask",
			Name:      "cubes_failed_total",
			Help:      "Simulation mask cubes discarded after an error.",
		}, []string{"index"}),
		SliceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floodmask",
			Name:      "slice_duration_seconds",
			Help:      "Time to load, refine and mask one slice.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"index"}),
	}
	reg.MustRegister(
		m.SlicesProcessed,
		m.SlicesFailed,
		m.CubesWritten,
		m.CubesFailed,
		m.SliceDuration,
	)
	return m
}

// UnitDone records one computed slice.
func (m *Metrics) UnitDone(index string, d time.Duration, err error) {
	m.SlicesProcessed.WithLabelValues(index).Inc()
	m.SliceDuration.WithLabelValues(index).Observe(d.Seconds())
	if err != nil {
		m.SlicesFailed.WithLabelValues(index).Inc()
	}
}

// CubeWritten records a committed cube.
func (m *Metrics) CubeWritten(index string) {
	m.CubesWritten.WithLabelValues(index).Inc()
}

// CubeFailed records a discarded cube.
func (m *Metrics) CubeFailed(index string) {
	m.CubesFailed.WithLabelValues(index).Inc()
}
