package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/bayplan/core/logger"
)

// DefaultIntegralityTolerance is how far from an integer a relaxed value may
// sit and still count as integral.
const DefaultIntegralityTolerance = 1e-6

// BranchAndBound solves mixed-integer programs by depth-first branch and
// bound over gonum simplex relaxations. Branching picks the most fractional
// variable and explores the child nearest its relaxed value first.
type BranchAndBound struct {
	Tolerance float64
	Logger    logger.Logger
}

// NewBranchAndBound returns a solver using tol as the integrality tolerance.
// A non-positive tol selects DefaultIntegralityTolerance.
func NewBranchAndBound(tol float64) *BranchAndBound {
	if tol <= 0 {
		tol = DefaultIntegralityTolerance
	}
	return &BranchAndBound{Tolerance: tol, Logger: logger.NopLogger{}}
}

type node struct {
	lo, hi []float64
}

// errAbandoned marks a relaxation given up at the deadline.
var errAbandoned = errors.New("solver: relaxation abandoned")

type relaxation struct {
	x   []float64
	obj float64
	err error
}

// relaxNode solves the relaxation of nd in its own goroutine and waits at
// most until ctx is done. An abandoned simplex runs to completion in the
// background and its result is dropped.
func relaxNode(ctx context.Context, p *Problem, nd node) relaxation {
	solve := lpSolve
	done := make(chan relaxation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- relaxation{err: fmt.Errorf("solver: relaxation panicked: %v", r)}
			}
		}()
		x, obj, err := relax(p, nd.lo, nd.hi, solve)
		done <- relaxation{x: x, obj: obj, err: err}
	}()
	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return relaxation{err: errAbandoned}
	}
}

// now is replaced in tests to drive the time limit.
var now = time.Now

// Solve implements Solver.
func (b *BranchAndBound) Solve(ctx context.Context, p *Problem, lim Limits) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	log := b.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	tol := b.Tolerance
	if tol <= 0 {
		tol = DefaultIntegralityTolerance
	}

	sol := Solution{Status: LimitReached, Objective: math.Inf(1)}
	if p.Start != nil {
		if p.Feasible(p.Start, tol) {
			sol.X = b.round(p, p.Start)
			sol.Objective = p.Value(sol.X)
		} else {
			log.Warnf("solver: ignoring infeasible warm start")
		}
	}
	if lim.TimeLimit <= 0 {
		return b.finish(sol), nil
	}

	deadline := now().Add(lim.TimeLimit)
	ctx, cancel := context.WithTimeout(ctx, lim.TimeLimit)
	defer cancel()
	n := p.NumVars()
	root := node{lo: make([]float64, n), hi: make([]float64, n)}
	for j := 0; j < n; j++ {
		root.hi[j] = p.upper(j)
	}
	stack := []node{root}
	exhaustive := true
	for len(stack) > 0 {
		if ctx.Err() != nil || now().After(deadline) || (lim.MaxNodes > 0 && sol.Nodes >= lim.MaxNodes) {
			log.Debugw("solver limit reached", map[string]any{"nodes": sol.Nodes, "open": len(stack)})
			return b.finish(sol), nil
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sol.Nodes++

		r := relaxNode(ctx, p, nd)
		x, obj, err := r.x, r.obj, r.err
		if errors.Is(err, errAbandoned) {
			log.Debugw("solver limit reached inside a relaxation", map[string]any{"nodes": sol.Nodes, "open": len(stack)})
			return b.finish(sol), nil
		}
		if errors.Is(err, lp.ErrInfeasible) {
			continue
		}
		if err != nil {
			// The subtree is dropped, so optimality can no longer be proven.
			log.Warnf("solver: relaxation failed at node %d: %v", sol.Nodes, err)
			exhaustive = false
			continue
		}
		if obj >= sol.Objective-boundTol {
			continue
		}

		j := b.branchVar(p, x, tol)
		if j < 0 {
			cand := b.round(p, x)
			if !p.Feasible(cand, 1e-6) {
				log.Warnf("solver: rounded relaxation at node %d violates a row", sol.Nodes)
				exhaustive = false
				continue
			}
			if v := p.Value(cand); v < sol.Objective {
				sol.X, sol.Objective = cand, v
				log.Debugw("solver incumbent", map[string]any{"node": sol.Nodes, "objective": v})
			}
			continue
		}

		down := node{lo: slices.Clone(nd.lo), hi: slices.Clone(nd.hi)}
		down.hi[j] = math.Floor(x[j])
		up := node{lo: slices.Clone(nd.lo), hi: slices.Clone(nd.hi)}
		up.lo[j] = math.Ceil(x[j])
		// The child nearest the relaxed value is popped first.
		if x[j]-math.Floor(x[j]) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if exhaustive {
		if sol.X == nil {
			sol.Status = Infeasible
		} else {
			sol.Status = Optimal
		}
	}
	return b.finish(sol), nil
}

func (b *BranchAndBound) finish(sol Solution) Solution {
	if sol.X == nil {
		sol.Objective = 0
	}
	return sol
}

// branchVar returns the most fractional integer variable, or -1 when x is
// integral. Ties go to the lowest index.
func (b *BranchAndBound) branchVar(p *Problem, x []float64, tol float64) int {
	best, bestDist := -1, tol
	for j, v := range x {
		if !p.isInteger(j) {
			continue
		}
		f := v - math.Floor(v)
		if d := math.Min(f, 1-f); d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func (b *BranchAndBound) round(p *Problem, x []float64) []float64 {
	out := slices.Clone(x)
	for j := range out {
		if p.isInteger(j) {
			out[j] = math.Round(out[j])
		}
		if out[j] <= 0 {
			out[j] = 0
		}
	}
	return out
}

// StartOnly is a backend that performs no search and returns the warm start.
// It is useful as a baseline and when no search time is available.
type StartOnly struct{}

// Solve implements Solver.
func (StartOnly) Solve(_ context.Context, p *Problem, _ Limits) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	if p.Start == nil || !p.Feasible(p.Start, DefaultIntegralityTolerance) {
		return Solution{Status: LimitReached}, nil
	}
	x := slices.Clone(p.Start)
	return Solution{X: x, Objective: p.Value(x), Status: LimitReached}, nil
}
