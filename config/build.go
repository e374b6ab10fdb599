package config

import (
	"time"

	"github.com/kilianp07/bayplan/app"
	"github.com/kilianp07/bayplan/core/cluster"
	"github.com/kilianp07/bayplan/core/factory"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
	"github.com/kilianp07/bayplan/core/solver"
)

func clusterLintDefaults() cluster.LintOptions { return cluster.DefaultLintOptions() }

// ModelOptions returns the buffer settings applied while loading snapshots.
func (c Config) ModelOptions() model.Options {
	opts := model.DefaultOptions()
	if c.BufferMinutes != nil {
		opts.BufferMinutes = *c.BufferMinutes
	}
	opts.RouteBuffers = c.PerRouteBufferOverrides
	opts.LayoverMinutes = c.LayoverMinutes
	return opts
}

// Limits returns the solver limits.
func (c Config) Limits() solver.Limits {
	secs := DefaultSolverTimeLimitSeconds
	if c.SolverTimeLimitSeconds != nil {
		secs = *c.SolverTimeLimitSeconds
	}
	return solver.Limits{
		TimeLimit: time.Duration(secs * float64(time.Second)),
		MaxNodes:  c.SolverMaxNodes,
	}
}

// Request returns the optimizer request template.
func (c Config) Request() (optimizer.Request, error) {
	cont, err := optimizer.ParseContinuity(c.BlockContinuityMode)
	if err != nil {
		return optimizer.Request{}, err
	}
	return optimizer.Request{
		Weights: optimizer.Weights{
			Conflict:   c.ObjectiveWeights.Conflict,
			Unassigned: c.ObjectiveWeights.Unassigned,
		},
		AllowUnassigned: c.AllowUnassigned == nil || *c.AllowUnassigned,
		Continuity:      cont,
		Limits:          c.Limits(),
	}, nil
}

// Solver instantiates the configured backend.
func (c Config) Solver() (solver.Solver, error) {
	return solver.NewRegistry().Create(factory.ModuleConfig{Type: c.SolverBackend, Conf: c.SolverOptions})
}

// AnalyzerOptions returns the pipeline options.
func (c Config) AnalyzerOptions() (app.Options, error) {
	req, err := c.Request()
	if err != nil {
		return app.Options{}, err
	}
	mode, err := app.ParseReassign(c.Reassign)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Reassign: mode,
		Request:  req,
		Lint: cluster.LintOptions{
			DistantMetres: c.ClusterLint.DistantMetres,
			NearbyMetres:  c.ClusterLint.NearbyMetres,
		},
		Concurrency: c.WhatIfConcurrency,
	}, nil
}
