// Package solver defines an abstract mixed-integer linear program and the
// backends able to solve it.
//
// A Problem minimises Cost·x subject to sparse linear rows, 0 <= x <= Upper
// and optional integrality. Backends honour Limits and always return the best
// solution found so far rather than failing when a limit is hit.
package solver

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Sense is the relation of a row to its right-hand side.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Term is one coefficient of a row.
type Term struct {
	Var  int
	Coef float64
}

// Row is a linear constraint Terms·x Sense RHS.
type Row struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a minimisation over non-negative variables.
type Problem struct {
	Cost    []float64
	Rows    []Row
	Upper   []float64
	Integer []bool
	// Start is an optional feasible point used as the initial incumbent.
	Start []float64
}

// AddVar appends a variable and returns its index. Use math.Inf(1) for an
// unbounded variable.
func (p *Problem) AddVar(cost, upper float64, integer bool) int {
	p.Cost = append(p.Cost, cost)
	p.Upper = append(p.Upper, upper)
	p.Integer = append(p.Integer, integer)
	return len(p.Cost) - 1
}

// AddRow appends a constraint.
func (p *Problem) AddRow(name string, terms []Term, sense Sense, rhs float64) {
	p.Rows = append(p.Rows, Row{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// NumVars returns the number of variables.
func (p *Problem) NumVars() int { return len(p.Cost) }

// Value evaluates the objective at x.
func (p *Problem) Value(x []float64) float64 {
	var v float64
	for j, c := range p.Cost {
		v += c * x[j]
	}
	return v
}

// Feasible reports whether x satisfies bounds, integrality and every row
// within tol.
func (p *Problem) Feasible(x []float64, tol float64) bool {
	if len(x) != p.NumVars() {
		return false
	}
	for j, v := range x {
		if v < -tol || v > p.upper(j)+tol {
			return false
		}
		if p.isInteger(j) && math.Abs(v-math.Round(v)) > tol {
			return false
		}
	}
	for _, r := range p.Rows {
		var lhs float64
		for _, t := range r.Terms {
			lhs += t.Coef * x[t.Var]
		}
		switch r.Sense {
		case LessEq:
			if lhs > r.RHS+tol {
				return false
			}
		case GreaterEq:
			if lhs < r.RHS-tol {
				return false
			}
		case Equal:
			if math.Abs(lhs-r.RHS) > tol {
				return false
			}
		}
	}
	return true
}

// Validate checks the problem is well formed.
func (p *Problem) Validate() error {
	n := p.NumVars()
	if p.Upper != nil && len(p.Upper) != n {
		return fmt.Errorf("solver: %d upper bounds for %d variables", len(p.Upper), n)
	}
	if p.Integer != nil && len(p.Integer) != n {
		return fmt.Errorf("solver: %d integrality flags for %d variables", len(p.Integer), n)
	}
	if p.Start != nil && len(p.Start) != n {
		return fmt.Errorf("solver: start point has %d values for %d variables", len(p.Start), n)
	}
	for j := 0; j < n; j++ {
		if math.IsNaN(p.Cost[j]) || math.IsInf(p.Cost[j], 0) {
			return fmt.Errorf("solver: variable %d has cost %v", j, p.Cost[j])
		}
		if u := p.upper(j); math.IsNaN(u) || u < 0 {
			return fmt.Errorf("solver: variable %d has upper bound %v", j, u)
		}
	}
	for i, r := range p.Rows {
		if r.Sense < LessEq || r.Sense > Equal {
			return fmt.Errorf("solver: row %d (%s) has unknown sense %d", i, r.Name, r.Sense)
		}
		for _, t := range r.Terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("solver: row %d (%s) references variable %d of %d", i, r.Name, t.Var, n)
			}
		}
	}
	return nil
}

func (p *Problem) upper(j int) float64 {
	if p.Upper == nil {
		return math.Inf(1)
	}
	return p.Upper[j]
}

func (p *Problem) isInteger(j int) bool {
	return p.Integer != nil && p.Integer[j]
}

// Status describes how a solve ended.
type Status int

const (
	// Optimal means the search completed and X is proven optimal.
	Optimal Status = iota
	// LimitReached means a time or node limit stopped the search. X holds the
	// best solution found, which may be nil.
	LimitReached
	// Infeasible means the search completed without finding any solution.
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case LimitReached:
		return "limit_reached"
	case Infeasible:
		return "infeasible"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Limits bounds a solve. A zero TimeLimit explores no nodes and returns the
// warm start. MaxNodes <= 0 means no node limit.
type Limits struct {
	TimeLimit time.Duration
	MaxNodes  int
}

// Solution is the outcome of a solve.
type Solution struct {
	X         []float64
	Objective float64
	Status    Status
	Nodes     int
}

// Solver solves a Problem within Limits. Hitting a limit is reported through
// Solution.Status, never as an error.
type Solver interface {
	Solve(ctx context.Context, p *Problem, lim Limits) (Solution, error)
}
