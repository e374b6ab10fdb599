package solver

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const boundTol = 1e-9

// lpFunc minimises c·y subject to a·y = b and y >= 0. basic, when not nil,
// lists the columns of a feasible starting basis.
type lpFunc func(c []float64, a *mat.Dense, b []float64, basic []int) ([]float64, error)

func solveLP(c []float64, a *mat.Dense, b []float64, basic []int) ([]float64, error) {
	_, y, err := lp.Simplex(c, a, b, 1e-10, basic)
	return y, err
}

// lpSolve points to the function used to solve LP relaxations. It can be
// overridden in tests to simulate slow or failing solves.
var lpSolve lpFunc = solveLP

// stdRow is terms·y + slack = rhs over the free variables of a node.
type stdRow struct {
	terms []Term
	rhs   float64
}

// relax solves the LP relaxation of p with variable bounds lo <= x <= hi.
//
// The LP is built in standard form directly. Variables are shifted to
// y = x - lo >= 0, fixed variables are substituted out, every row becomes a
// <= row with its own slack column and only finite upper bounds add rows.
// The slack columns keep the matrix at full row rank and, when every
// right-hand side is non-negative, form the starting basis.
func relax(p *Problem, lo, hi []float64, solve lpFunc) ([]float64, float64, error) {
	n := p.NumVars()
	x := slices.Clone(lo)
	col := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if hi[j]-lo[j] > boundTol {
			col[j] = len(free)
			free = append(free, j)
		} else {
			col[j] = -1
		}
	}

	var rows []stdRow
	used := make([]bool, len(free))
	acc := make([]float64, len(free))
	mark := make([]bool, len(free))
	for _, r := range p.Rows {
		rhs := r.RHS
		var touched []int
		for _, t := range r.Terms {
			rhs -= t.Coef * lo[t.Var]
			k := col[t.Var]
			if k < 0 {
				continue
			}
			if !mark[k] {
				mark[k] = true
				touched = append(touched, k)
			}
			acc[k] += t.Coef
		}
		var terms []Term
		for _, k := range touched {
			if acc[k] != 0 {
				terms = append(terms, Term{Var: k, Coef: acc[k]})
				used[k] = true
			}
			acc[k], mark[k] = 0, false
		}
		if len(terms) == 0 {
			if !constantHolds(r.Sense, rhs) {
				return nil, 0, lp.ErrInfeasible
			}
			continue
		}
		switch r.Sense {
		case LessEq:
			rows = append(rows, stdRow{terms: terms, rhs: rhs})
		case GreaterEq:
			rows = append(rows, stdRow{terms: negate(terms), rhs: -rhs})
		case Equal:
			rows = append(rows, stdRow{terms: terms, rhs: rhs}, stdRow{terms: negate(terms), rhs: -rhs})
		}
	}

	// Columns of the LP. A free variable in no row and without an upper bound
	// sits at its lower bound unless its cost makes the relaxation unbounded.
	lpCol := make([]int, len(free))
	var active []int
	for k, j := range free {
		if used[k] || !math.IsInf(hi[j], 1) {
			lpCol[k] = len(active)
			active = append(active, k)
			continue
		}
		lpCol[k] = -1
		if p.Cost[j] < 0 {
			return nil, 0, lp.ErrUnbounded
		}
	}
	if len(active) == 0 {
		return x, p.Value(x), nil
	}
	for _, k := range active {
		if j := free[k]; !math.IsInf(hi[j], 1) {
			rows = append(rows, stdRow{terms: []Term{{Var: k, Coef: 1}}, rhs: hi[j] - lo[j]})
		}
	}

	m, nv := len(rows), len(active)
	a := mat.NewDense(m, nv+m, nil)
	b := make([]float64, m)
	c := make([]float64, nv+m)
	for i, k := range active {
		c[i] = p.Cost[free[k]]
	}
	slackBasis := true
	for i, r := range rows {
		for _, t := range r.terms {
			a.Set(i, lpCol[t.Var], t.Coef)
		}
		a.Set(i, nv+i, 1)
		b[i] = r.rhs
		if r.rhs < 0 {
			slackBasis = false
		}
	}
	var basic []int
	if slackBasis {
		basic = make([]int, m)
		for i := range basic {
			basic[i] = nv + i
		}
	}

	y, err := solve(c, a, b, basic)
	if err != nil {
		return nil, 0, err
	}
	if len(y) != nv+m {
		return nil, 0, fmt.Errorf("solver: relaxation returned %d values for %d columns", len(y), nv+m)
	}
	for i, k := range active {
		j := free[k]
		x[j] = lo[j] + y[i]
	}
	return x, p.Value(x), nil
}

func constantHolds(s Sense, rhs float64) bool {
	switch s {
	case LessEq:
		return rhs >= -boundTol
	case GreaterEq:
		return rhs <= boundTol
	default:
		return math.Abs(rhs) <= boundTol
	}
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}
