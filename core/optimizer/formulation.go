package optimizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/solver"
)

// rankWeight keeps the bay ID preference below any meaningful distance
// difference in the tie-break term.
const rankWeight = 1e-3

type occupant struct {
	trip model.Trip
	iv   model.Interval
	// x is the decision variable, -1 for a fixed trip.
	x int
}

// link records a vehicle indicator y >= x for every x in xs.
type link struct {
	y  int
	xs []int
}

type slackRow struct {
	row   int
	slack int
}

// formulation is the binary program of one request.
type formulation struct {
	s       *model.Schedule
	req     Request
	trips   []model.Trip
	allowed map[string][]string
	x       map[string]map[string]int
	u       map[string]int
	p       *solver.Problem
	primary []float64
	links   []link
	slacks  []slackRow

	tieBudget float64
	diameter  float64
}

func formulate(s *model.Schedule, req Request, trips []model.Trip, allowed map[string][]string) *formulation {
	f := &formulation{
		s:       s,
		req:     req,
		trips:   trips,
		allowed: allowed,
		x:       make(map[string]map[string]int, len(trips)),
		u:       make(map[string]int),
		p:       &solver.Problem{},
	}
	minW := req.Weights.Conflict
	if req.AllowUnassigned && req.Weights.Unassigned < minW {
		minW = req.Weights.Unassigned
	}
	// The whole tie-break stays below half of the smallest primary penalty.
	f.tieBudget = minW / float64(2*(len(trips)+1))
	f.diameter = diameter(s.Bays())

	for _, t := range trips {
		f.x[t.ID] = make(map[string]int, len(allowed[t.ID]))
		for _, b := range allowed[t.ID] {
			f.x[t.ID][b] = f.addVar(f.tie(t, b), 0, 1, true)
		}
	}
	for _, t := range trips {
		terms := f.assignTerms(t)
		if req.AllowUnassigned {
			u := f.addVar(req.Weights.Unassigned, req.Weights.Unassigned, 1, false)
			f.u[t.ID] = u
			terms = append(terms, solver.Term{Var: u, Coef: 1})
		}
		f.p.AddRow("assign "+t.ID, terms, solver.Equal, 1)
	}
	for _, bay := range s.Bays() {
		occ := f.occupants(bay)
		if bay.Capacity <= 1 {
			f.pairRows(bay, occ)
		} else {
			f.windowRows(bay, occ)
		}
	}
	switch req.Continuity.Mode {
	case ContinuitySameBay:
		f.sameBayRows()
	case ContinuityMaxDistance:
		f.distanceRows()
	}
	return f
}

func (f *formulation) addVar(cost, primary, upper float64, integer bool) int {
	j := f.p.AddVar(cost, upper, integer)
	f.primary = append(f.primary, primary)
	return j
}

func (f *formulation) assignTerms(t model.Trip) []solver.Term {
	var terms []solver.Term
	for _, b := range f.allowed[t.ID] {
		terms = append(terms, solver.Term{Var: f.x[t.ID][b], Coef: 1})
	}
	return terms
}

// tie is the secondary cost of placing t on bay: distance from the route's
// cluster centroid, then bay ID rank.
func (f *formulation) tie(t model.Trip, bayID string) float64 {
	dist := 0.0
	if c, ok := f.s.RouteCentroid(t.RouteID); ok {
		b, _ := f.s.Bay(bayID)
		switch {
		case b.Location == nil:
			dist = 1
		case f.diameter > 0:
			dist = math.Min(1, model.Distance(c, *b.Location)/f.diameter)
		}
	}
	rank := float64(f.s.BayRank(bayID)) / float64(len(f.s.Bays()))
	return f.tieBudget * (dist + rankWeight*rank) / (1 + rankWeight)
}

func diameter(bays []model.Bay) float64 {
	var d float64
	for i := range bays {
		for j := i + 1; j < len(bays); j++ {
			if bays[i].Location != nil && bays[j].Location != nil {
				d = math.Max(d, model.Distance(*bays[i].Location, *bays[j].Location))
			}
		}
	}
	return d
}

// occupants gathers every trip that may sit on the bay, ordered by interval
// start then trip ID. Zero-length intervals never occupy anything.
func (f *formulation) occupants(bay model.Bay) []occupant {
	var occ []occupant
	for _, t := range f.trips {
		if j, ok := f.x[t.ID][bay.ID]; ok {
			occ = append(occ, occupant{trip: t, iv: f.s.Interval(t, bay.ID), x: j})
		}
	}
	for _, id := range f.req.Fixed.TripIDs() {
		if f.req.Fixed[id] != bay.ID {
			continue
		}
		if t, ok := f.s.Trip(id); ok {
			occ = append(occ, occupant{trip: t, iv: f.s.Interval(t, bay.ID), x: -1})
		}
	}
	out := occ[:0]
	for _, o := range occ {
		if !o.iv.Empty() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].iv.Start != out[j].iv.Start {
			return out[i].iv.Start < out[j].iv.Start
		}
		return out[i].trip.ID < out[j].trip.ID
	})
	return out
}

func (f *formulation) addSlack() int {
	return f.addVar(f.req.Weights.Conflict, f.req.Weights.Conflict, math.Inf(1), false)
}

func (f *formulation) slackRow(name string, terms []solver.Term, rhs float64) {
	s := f.addSlack()
	terms = append(terms, solver.Term{Var: s, Coef: -1})
	f.p.AddRow(name, terms, solver.LessEq, rhs)
	f.slacks = append(f.slacks, slackRow{row: len(f.p.Rows) - 1, slack: s})
}

// pairRows excludes every overlapping pair of distinct vehicles on a unit
// bay, softened by one slack per pair.
func (f *formulation) pairRows(bay model.Bay, occ []occupant) {
	for i := range occ {
		for j := i + 1; j < len(occ); j++ {
			a, b := occ[i], occ[j]
			if b.iv.Start >= a.iv.End {
				break
			}
			if a.trip.Vehicle() == b.trip.Vehicle() || !a.iv.Overlaps(b.iv) {
				continue
			}
			name := fmt.Sprintf("pair %s %s/%s", bay.ID, a.trip.ID, b.trip.ID)
			switch {
			case a.x >= 0 && b.x >= 0:
				f.slackRow(name, []solver.Term{{Var: a.x, Coef: 1}, {Var: b.x, Coef: 1}}, 1)
			case a.x >= 0:
				f.slackRow(name, []solver.Term{{Var: a.x, Coef: 1}}, 0)
			case b.x >= 0:
				f.slackRow(name, []solver.Term{{Var: b.x, Coef: 1}}, 0)
			}
		}
	}
}

// windowRows bounds the vehicles of every maximal overlapping window of a
// bay by its capacity. Trips of one vehicle inside a window share an
// indicator so the vehicle counts once.
func (f *formulation) windowRows(bay model.Bay, occ []occupant) {
	seen := make(map[string]int)
	for _, clique := range cliques(occ) {
		fixed := make(map[string]bool)
		groups := make(map[string][]int)
		var order []string
		for _, k := range clique {
			o := occ[k]
			v := o.trip.Vehicle()
			if o.x < 0 {
				fixed[v] = true
				continue
			}
			if _, ok := groups[v]; !ok {
				order = append(order, v)
			}
			groups[v] = append(groups[v], o.x)
		}
		var terms []solver.Term
		for _, v := range order {
			if fixed[v] {
				continue
			}
			xs := groups[v]
			if len(xs) == 1 {
				terms = append(terms, solver.Term{Var: xs[0], Coef: 1})
				continue
			}
			terms = append(terms, solver.Term{Var: f.indicator(seen, xs), Coef: 1})
		}
		if len(terms) == 0 || len(terms)+len(fixed) <= bay.Capacity {
			continue
		}
		first := occ[clique[0]].iv.Start
		name := fmt.Sprintf("window %s@%s", bay.ID, first)
		f.slackRow(name, terms, float64(bay.Capacity-len(fixed)))
	}
}

func (f *formulation) indicator(seen map[string]int, xs []int) int {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	key := strings.Join(parts, ",")
	if y, ok := seen[key]; ok {
		return y
	}
	y := f.addVar(0, 0, 1, false)
	for _, x := range xs {
		f.p.AddRow("vehicle", []solver.Term{{Var: x, Coef: 1}, {Var: y, Coef: -1}}, solver.LessEq, 0)
	}
	f.links = append(f.links, link{y: y, xs: xs})
	seen[key] = y
	return y
}

// cliques returns the maximal sets of simultaneously open occupants, each
// sorted by index. Intervals are half-open.
func cliques(occ []occupant) [][]int {
	type event struct {
		at    model.ServiceTime
		start bool
		idx   int
	}
	events := make([]event, 0, 2*len(occ))
	for i, o := range occ {
		events = append(events, event{at: o.iv.Start, start: true, idx: i}, event{at: o.iv.End, idx: i})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		if events[i].start != events[j].start {
			return !events[i].start
		}
		return events[i].idx < events[j].idx
	})
	var out [][]int
	open := make(map[int]bool)
	grew := false
	for _, e := range events {
		if e.start {
			open[e.idx] = true
			grew = true
			continue
		}
		if grew {
			c := make([]int, 0, len(open))
			for k := range open {
				c = append(c, k)
			}
			sort.Ints(c)
			out = append(out, c)
			grew = false
		}
		delete(open, e.idx)
	}
	return out
}

// chains returns, per block in ID order, the participating trips ordered by
// arrival. Only decision and fixed trips participate.
func (f *formulation) chains() [][]model.Trip {
	return blockChains(f.s, f.trips, f.req.Fixed)
}

func blockChains(s *model.Schedule, decision []model.Trip, fixed model.Assignment) [][]model.Trip {
	in := make(map[string]bool, len(decision))
	for _, t := range decision {
		in[t.ID] = true
	}
	blocks := s.TripsByBlock()
	ids := make([]string, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out [][]model.Trip
	for _, id := range ids {
		var chain []model.Trip
		for _, t := range blocks[id] {
			if _, ok := fixed[t.ID]; ok || in[t.ID] {
				chain = append(chain, t)
			}
		}
		if len(chain) > 1 {
			out = append(out, chain)
		}
	}
	return out
}

func (f *formulation) sameBayRows() {
	for _, chain := range f.chains() {
		var prev *model.Trip
		for i := range chain {
			t := chain[i]
			if _, ok := f.x[t.ID]; !ok {
				continue
			}
			if prev != nil {
				for _, b := range f.allowed[t.ID] {
					f.p.AddRow("same-bay "+prev.ID+"/"+t.ID,
						[]solver.Term{{Var: f.x[prev.ID][b], Coef: 1}, {Var: f.x[t.ID][b], Coef: -1}},
						solver.Equal, 0)
				}
			}
			prev = &chain[i]
		}
	}
}

func (f *formulation) distanceRows() {
	for _, chain := range f.chains() {
		for i := 1; i < len(chain); i++ {
			a, b := chain[i-1], chain[i]
			xa, okA := f.x[a.ID]
			xb, okB := f.x[b.ID]
			if !okA || !okB {
				continue
			}
			for _, ba := range f.allowed[a.ID] {
				for _, bb := range f.allowed[b.ID] {
					if within(f.s, ba, bb, f.req.Continuity.Distance) {
						continue
					}
					f.p.AddRow("distance "+a.ID+"/"+b.ID,
						[]solver.Term{{Var: xa[ba], Coef: 1}, {Var: xb[bb], Coef: 1}},
						solver.LessEq, 1)
				}
			}
		}
	}
}

// within reports whether two bays are at most d metres apart. Bays without
// a location are never considered too far.
func within(s *model.Schedule, a, b string, d float64) bool {
	if a == b {
		return true
	}
	ba, _ := s.Bay(a)
	bb, _ := s.Bay(b)
	if ba.Location == nil || bb.Location == nil {
		return true
	}
	return model.Distance(*ba.Location, *bb.Location) <= d
}

// vector turns an assignment of the decision trips into a point of the
// problem, with indicators and slacks at their smallest feasible values.
func (f *formulation) vector(a model.Assignment) []float64 {
	x := make([]float64, f.p.NumVars())
	for _, t := range f.trips {
		bay, ok := a[t.ID]
		if j, has := f.x[t.ID][bay]; ok && has {
			x[j] = 1
		} else if u, has := f.u[t.ID]; has {
			x[u] = 1
		}
	}
	for _, l := range f.links {
		for _, j := range l.xs {
			x[l.y] = math.Max(x[l.y], x[j])
		}
	}
	for _, sr := range f.slacks {
		row := f.p.Rows[sr.row]
		var lhs float64
		for _, t := range row.Terms {
			if t.Var != sr.slack {
				lhs += t.Coef * x[t.Var]
			}
		}
		x[sr.slack] = math.Max(0, lhs-row.RHS)
	}
	return x
}

// assignment reads the decision trips' bays back from a point.
func (f *formulation) assignment(x []float64) model.Assignment {
	a := make(model.Assignment)
	for _, t := range f.trips {
		for _, b := range f.allowed[t.ID] {
			if x[f.x[t.ID][b]] > 0.5 {
				a[t.ID] = b
				break
			}
		}
	}
	return a
}

// primaryValue is the weighted conflict and unassigned penalty of a point,
// without the tie-break term.
func (f *formulation) primaryValue(x []float64) float64 {
	var v float64
	for j, c := range f.primary {
		v += c * x[j]
	}
	return v
}
