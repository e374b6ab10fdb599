// Package optimizer computes conflict-minimising bay assignments.
//
// A request is turned into a binary program: one variable per compatible
// trip and bay, an optional unassigned indicator per trip and one slack per
// capacity constraint. Unit bays use pairwise exclusion rows, larger bays use
// one row per maximal overlapping window. The objective weighs slacks and
// unassigned trips, plus a small tie-break towards the route's cluster
// centroid and then the lowest bay ID.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/bayplan/core/conflict"
	"github.com/kilianp07/bayplan/core/logger"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/solver"
)

// Optimizer places trips on bays using a pluggable solver backend.
type Optimizer struct {
	solver solver.Solver
	log    logger.Logger
}

// New returns an optimizer. A nil solver selects branch and bound and a nil
// logger discards output.
func New(s solver.Solver, log logger.Logger) *Optimizer {
	if log == nil {
		log = logger.NopLogger{}
	}
	if s == nil {
		bb := solver.NewBranchAndBound(0)
		bb.Logger = log
		s = bb
	}
	return &Optimizer{solver: s, log: log}
}

// Assign computes the best assignment for the request. It fails only with a
// *model.DataError for references to unknown trips or bays, or a
// *model.ConfigurationError when no assignment can satisfy the hard
// constraints. Residual conflicts and limits are reported in the Result.
func (o *Optimizer) Assign(ctx context.Context, s *model.Schedule, req Request) (Result, error) {
	start := time.Now()
	if err := normalizeWeights(&req.Weights); err != nil {
		return Result{}, err
	}
	if err := s.CheckAssignment(req.Fixed); err != nil {
		return Result{}, err
	}
	trips, err := decisionTrips(s, req)
	if err != nil {
		return Result{}, err
	}
	allowed, err := allowedBays(s, trips, req)
	if err != nil {
		solvesTotal.WithLabelValues("configuration_error").Inc()
		return Result{}, err
	}

	f := formulate(s, req, trips, allowed)
	warm := f.warmStart()
	f.p.Start = f.vector(warm)
	o.log.Debugw("optimizer formulation", map[string]any{
		"trips":     len(trips),
		"fixed":     len(req.Fixed),
		"variables": f.p.NumVars(),
		"rows":      len(f.p.Rows),
	})

	sol, err := o.solver.Solve(ctx, f.p, req.Limits)
	if err != nil {
		solvesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("solve: %w", err)
	}
	solvesTotal.WithLabelValues(sol.Status.String()).Inc()
	solveDuration.Observe(time.Since(start).Seconds())
	nodesExplored.Observe(float64(sol.Nodes))

	x := sol.X
	switch {
	case sol.Status == solver.Infeasible:
		return Result{}, &model.ConfigurationError{Subject: "assignment", Reason: "no assignment satisfies the hard constraints"}
	case x == nil:
		x = f.p.Start
	}

	assignment := req.Fixed.Clone()
	var unassigned []string
	decided := f.assignment(x)
	for _, t := range trips {
		if b, ok := decided[t.ID]; ok {
			assignment[t.ID] = b
		} else {
			unassigned = append(unassigned, t.ID)
		}
	}
	conflicts := conflict.NewDetector(s).FindConflicts(assignment)
	breaks := continuityBreaks(s, trips, assignment, req)
	res := Result{
		Assignment:       assignment,
		Optimal:          sol.Status == solver.Optimal,
		LimitReached:     sol.Status == solver.LimitReached,
		ObjectiveValue:   f.primaryValue(x),
		Conflicts:        conflicts,
		Unassigned:       unassigned,
		ContinuityBreaks: breaks,
		Nodes:            sol.Nodes,
		Elapsed:          time.Since(start),
	}
	if res.Unassigned == nil {
		res.Unassigned = []string{}
	}
	res.Feasible = len(conflicts) == 0 && len(breaks) == 0 && (req.AllowUnassigned || len(unassigned) == 0)
	residualConflicts.Set(float64(len(conflicts)))

	o.log.Infof("optimizer: %d trips placed, %d unassigned, %d conflicts, objective %.3f, status %s after %d nodes",
		len(decided), len(unassigned), len(conflicts), res.ObjectiveValue, sol.Status, sol.Nodes)
	if res.LimitReached {
		o.log.Warnf("optimizer: solver limit reached, result may be suboptimal")
	}
	return res, nil
}

func normalizeWeights(w *Weights) error {
	if w.Conflict < 0 || w.Unassigned < 0 {
		return fmt.Errorf("objective weights must not be negative (conflict %g, unassigned %g)", w.Conflict, w.Unassigned)
	}
	def := DefaultWeights()
	if w.Conflict == 0 {
		w.Conflict = def.Conflict
	}
	if w.Unassigned == 0 {
		w.Unassigned = def.Unassigned
	}
	return nil
}
