package optimizer

import (
	"sort"

	"github.com/kilianp07/bayplan/core/model"
)

type placed struct {
	iv      model.Interval
	vehicle string
}

// greedy builds the warm start: trips in arrival order, each on the allowed
// bay adding the fewest conflicts, then the lowest tie-break cost. A trip
// stays unassigned when that is allowed and cheaper than its conflicts.
type greedy struct {
	f      *formulation
	onBay  map[string][]placed
	result model.Assignment
}

func (f *formulation) warmStart() model.Assignment {
	g := &greedy{
		f:      f,
		onBay:  make(map[string][]placed),
		result: make(model.Assignment),
	}
	for _, id := range f.req.Fixed.TripIDs() {
		if t, ok := f.s.Trip(id); ok {
			g.place(t, f.req.Fixed[id])
		}
	}

	order := append([]model.Trip(nil), f.trips...)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Arrival != order[j].Arrival {
			return order[i].Arrival < order[j].Arrival
		}
		return order[i].ID < order[j].ID
	})

	if f.req.Continuity.Mode == ContinuitySameBay {
		g.sameBay(order)
		return g.result
	}
	prevOf := g.predecessors()
	for _, t := range order {
		cands := f.allowed[t.ID]
		if f.req.Continuity.Mode == ContinuityMaxDistance {
			if p, ok := prevOf[t.ID]; ok {
				if pb, ok := g.bayOf(p); ok {
					cands = g.near(cands, pb)
				}
			}
			if len(cands) == 0 {
				if f.req.AllowUnassigned {
					continue
				}
				cands = f.allowed[t.ID]
			}
		}
		best, cost := g.best([]model.Trip{t}, cands)
		if f.req.AllowUnassigned && cost > f.req.Weights.Unassigned {
			continue
		}
		g.assign(t, best)
	}
	return g.result
}

// sameBay places whole blocks at once on their common bay.
func (g *greedy) sameBay(order []model.Trip) {
	done := make(map[string]bool)
	members := make(map[string][]model.Trip)
	for _, t := range order {
		if t.BlockID != "" {
			members[t.BlockID] = append(members[t.BlockID], t)
		}
	}
	for _, t := range order {
		group := []model.Trip{t}
		if t.BlockID != "" {
			if done[t.BlockID] {
				continue
			}
			done[t.BlockID] = true
			group = members[t.BlockID]
		}
		best, cost := g.best(group, g.f.allowed[t.ID])
		if g.f.req.AllowUnassigned && cost > g.f.req.Weights.Unassigned*float64(len(group)) {
			continue
		}
		for _, m := range group {
			g.assign(m, best)
		}
	}
}

// best picks the candidate bay with the lowest conflict cost for the group,
// breaking ties by tie-break cost. It returns the conflict cost.
func (g *greedy) best(group []model.Trip, cands []string) (string, float64) {
	bestBay, bestCost, bestTie := "", 0.0, 0.0
	for _, b := range cands {
		var cost, tie float64
		for _, t := range group {
			cost += g.f.req.Weights.Conflict * float64(g.excess(t, b))
			tie += g.f.tie(t, b)
		}
		if bestBay == "" || cost < bestCost || (cost == bestCost && tie < bestTie) {
			bestBay, bestCost, bestTie = b, cost, tie
		}
	}
	return bestBay, bestCost
}

// excess estimates the conflicts added by placing t on bay: every
// overlapping vehicle on a unit bay, otherwise the vehicles above capacity
// at the busiest instant.
func (g *greedy) excess(t model.Trip, bayID string) int {
	bay, _ := g.f.s.Bay(bayID)
	iv := g.f.s.Interval(t, bayID)
	if iv.Empty() {
		return 0
	}
	own := t.Vehicle()
	type event struct {
		at    model.ServiceTime
		delta int
		v     string
	}
	var events []event
	overlapping := make(map[string]bool)
	for _, p := range g.onBay[bayID] {
		if p.vehicle == own {
			continue
		}
		w, ok := p.iv.Intersect(iv)
		if !ok {
			continue
		}
		overlapping[p.vehicle] = true
		events = append(events, event{at: w.Start, delta: 1, v: p.vehicle}, event{at: w.End, delta: -1, v: p.vehicle})
	}
	if bay.Capacity <= 1 {
		return len(overlapping)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].delta < events[j].delta
	})
	count := make(map[string]int)
	peak := 0
	for _, e := range events {
		count[e.v] += e.delta
		if count[e.v] == 0 {
			delete(count, e.v)
		}
		peak = max(peak, len(count))
	}
	return max(0, peak+1-bay.Capacity)
}

func (g *greedy) place(t model.Trip, bayID string) {
	iv := g.f.s.Interval(t, bayID)
	if iv.Empty() {
		return
	}
	g.onBay[bayID] = append(g.onBay[bayID], placed{iv: iv, vehicle: t.Vehicle()})
}

func (g *greedy) assign(t model.Trip, bayID string) {
	g.result[t.ID] = bayID
	g.place(t, bayID)
}

func (g *greedy) bayOf(id string) (string, bool) {
	if b, ok := g.f.req.Fixed[id]; ok {
		return b, true
	}
	b, ok := g.result[id]
	return b, ok
}

func (g *greedy) near(cands []string, from string) []string {
	var out []string
	for _, b := range cands {
		if within(g.f.s, from, b, g.f.req.Continuity.Distance) {
			out = append(out, b)
		}
	}
	return out
}

// predecessors maps each participating trip to the previous one of its block.
func (g *greedy) predecessors() map[string]string {
	out := make(map[string]string)
	for _, chain := range g.f.chains() {
		for i := 1; i < len(chain); i++ {
			out[chain[i].ID] = chain[i-1].ID
		}
	}
	return out
}
