package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solvesTotal       *prometheus.CounterVec
	solveDuration     prometheus.Histogram
	nodesExplored     prometheus.Histogram
	residualConflicts prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, prometheus.Gauge) {
	solves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bay_optimizer_solves_total",
			Help: "Number of bay assignment solves by outcome",
		},
		[]string{"status"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bay_optimizer_solve_duration_seconds",
			Help:    "Wall time of bay assignment solves including formulation",
			Buckets: prometheus.DefBuckets,
		},
	)
	nodes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bay_optimizer_nodes_explored",
			Help:    "Branch and bound nodes explored per solve",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	residual := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bay_optimizer_residual_conflicts",
			Help: "Conflicts left by the most recent solve",
		},
	)
	return solves, dur, nodes, residual
}

func init() {
	solvesTotal, solveDuration, nodesExplored, residualConflicts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solvesTotal, solveDuration, nodesExplored, residualConflicts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solvesTotal, solveDuration, nodesExplored, residualConflicts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
