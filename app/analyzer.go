// Package app wires the core packages into the analysis pipeline: audit the
// starting assignment, optimise it, re-audit, validate clusters and report.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/kilianp07/bayplan/core/cluster"
	"github.com/kilianp07/bayplan/core/conflict"
	"github.com/kilianp07/bayplan/core/logger"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
	"github.com/kilianp07/bayplan/core/report"
)

// ReassignMode selects which trips the optimizer may move.
type ReassignMode string

const (
	// ReassignNone audits the starting assignment as is.
	ReassignNone ReassignMode = "none"
	// ReassignPending keeps assigned trips and places the pending ones.
	ReassignPending ReassignMode = "pending"
	// ReassignAll places every trip from scratch.
	ReassignAll ReassignMode = "all"
)

// ParseReassign reads a reassign mode. Empty means pending.
func ParseReassign(s string) (ReassignMode, error) {
	switch m := ReassignMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ReassignPending, nil
	case ReassignNone, ReassignPending, ReassignAll:
		return m, nil
	}
	return "", fmt.Errorf("unknown reassign mode %q (want none, pending or all)", s)
}

// Options tunes one analysis run.
type Options struct {
	Reassign ReassignMode
	// Request carries weights, continuity and limits. Its Trips and Fixed
	// fields are derived from Reassign and overwritten.
	Request optimizer.Request
	Lint    cluster.LintOptions
	// Concurrency bounds what-if audits. Zero or less runs one per CPU.
	Concurrency int
}

// Analyzer runs the analysis pipeline over schedules.
type Analyzer struct {
	opt  *optimizer.Optimizer
	opts Options
	log  logger.Logger
}

// New returns an analyzer. A nil optimizer uses the default solver.
func New(opt *optimizer.Optimizer, opts Options, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opt == nil {
		opt = optimizer.New(nil, log)
	}
	if opts.Reassign == "" {
		opts.Reassign = ReassignPending
	}
	return &Analyzer{opt: opt, opts: opts, log: log}
}

// Baseline returns the assignment the run is compared against: the
// snapshot's own bays, or a round-robin rotation when the snapshot carries
// none. Trips the snapshot leaves unassigned stay pending for the optimizer
// whatever the baseline.
func Baseline(s *model.Schedule) model.Assignment {
	if a := s.Existing(); len(a) > 0 {
		return a
	}
	return optimizer.RoundRobin(s)
}

// Analyze runs the full pipeline. Fatal input and configuration problems are
// returned as errors; report.FromError turns them into a persisted report.
func (a *Analyzer) Analyze(ctx context.Context, s *model.Schedule) (report.Report, error) {
	d := conflict.NewDetector(s)
	base := Baseline(s)
	baseAudit := d.Audit(base)
	a.log.Infof("analyze: %d trips, %d bays, baseline %d assigned with %d conflicts",
		len(s.Trips()), len(s.Bays()), len(base), len(baseAudit.Conflicts))

	b := report.NewBuilder("").
		Schedule(s).
		Baseline(base, baseAudit, d.Exposure(base))

	final := base
	if req, ok := a.request(s); ok {
		res, err := a.opt.Assign(ctx, s, req)
		if err != nil {
			return report.Report{}, fmt.Errorf("optimize: %w", err)
		}
		final = res.Assignment
		b.Optimization(res)
	}

	finalAudit := d.Audit(final)
	v := cluster.NewValidator(s)
	mismatches := v.Validate(final)
	b.Final(final, finalAudit, d.Exposure(final)).
		Mismatches(mismatches).
		Undeclared(v.Undeclared(final)).
		Lint(cluster.Lint(s, a.opts.Lint))

	rep := b.Build()
	a.log.Infof("analyze: run %s finished with %d conflicts, %d cluster mismatches, severity %s",
		rep.RunID, len(finalAudit.Conflicts), len(mismatches), rep.Severity)
	return rep, nil
}

// request derives the optimizer request for the reassign mode. Pending
// trips are those without a bay in the snapshot. ok is false when there is
// nothing to optimise.
func (a *Analyzer) request(s *model.Schedule) (optimizer.Request, bool) {
	req := a.opts.Request
	req.Trips = nil
	switch a.opts.Reassign {
	case ReassignAll:
		req.Fixed = nil
		return req, true
	case ReassignPending:
		fixed := s.Existing()
		if len(fixed) == len(s.Trips()) {
			a.log.Debugf("analyze: no pending trips, skipping optimisation")
			return req, false
		}
		req.Fixed = fixed
		return req, true
	}
	return req, false
}

// Candidate is a named assignment to audit.
type Candidate struct {
	Name       string
	Assignment model.Assignment
}

// WhatIf audits candidate assignments concurrently, each against its own
// copy of the schedule. Reports come back in candidate order. A candidate
// referencing unknown trips or bays fails the whole call.
func (a *Analyzer) WhatIf(ctx context.Context, s *model.Schedule, candidates []Candidate) ([]report.Report, error) {
	type indexed struct {
		i   int
		rep report.Report
	}
	p := pool.NewWithResults[indexed]().WithContext(ctx).WithCancelOnError()
	if a.opts.Concurrency > 0 {
		p = p.WithMaxGoroutines(a.opts.Concurrency)
	}
	for i, c := range candidates {
		p.Go(func(ctx context.Context) (indexed, error) {
			if err := ctx.Err(); err != nil {
				return indexed{}, err
			}
			own, err := s.Clone()
			if err != nil {
				return indexed{}, fmt.Errorf("candidate %s: %w", c.Name, err)
			}
			rep, err := audit(own, c, a.opts.Lint)
			if err != nil {
				return indexed{}, fmt.Errorf("candidate %s: %w", c.Name, err)
			}
			return indexed{i: i, rep: rep}, nil
		})
	}
	res, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool { return res[i].i < res[j].i })
	out := make([]report.Report, len(res))
	for i, r := range res {
		out[i] = r.rep
	}
	a.log.Infof("whatif: audited %d candidates", len(out))
	return out, nil
}

// Audit reports on one assignment without optimising it.
func (a *Analyzer) Audit(s *model.Schedule, c Candidate) (report.Report, error) {
	return audit(s, c, a.opts.Lint)
}

func audit(s *model.Schedule, c Candidate, lint cluster.LintOptions) (report.Report, error) {
	if err := s.CheckAssignment(c.Assignment); err != nil {
		return report.Report{}, err
	}
	d := conflict.NewDetector(s)
	v := cluster.NewValidator(s)
	result := d.Audit(c.Assignment)
	return report.NewBuilder("").
		Label(c.Name).
		Schedule(s).
		Final(c.Assignment, result, d.Exposure(c.Assignment)).
		Mismatches(v.Validate(c.Assignment)).
		Undeclared(v.Undeclared(c.Assignment)).
		Lint(cluster.Lint(s, lint)).
		Build(), nil
}
