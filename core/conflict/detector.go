// Package conflict audits bay assignments for time-space conflicts.
//
// The detector sweeps the buffered occupancy intervals of every bay once and
// reports each pair of vehicles present together while the bay holds more
// vehicles than its capacity. Trips of the same block are one vehicle and
// never conflict with each other.
package conflict

import (
	"sort"

	"github.com/kilianp07/bayplan/core/model"
)

// Conflict is a pair of trips sharing a bay beyond its capacity. Window is
// one contiguous stretch of over-capacity time with both trips present; a
// pair whose shared time dips back within capacity yields one Conflict per
// stretch.
type Conflict struct {
	BayID     string         `json:"bay_id"`
	TripA     string         `json:"trip_a"`
	TripB     string         `json:"trip_b"`
	Window    model.Interval `json:"window"`
	Occupancy int            `json:"occupancy"`
	Capacity  int            `json:"capacity"`
}

// Violation is a maximal stretch of time a bay spends over capacity.
type Violation struct {
	BayID     string         `json:"bay_id"`
	Window    model.Interval `json:"window"`
	Occupancy int            `json:"occupancy"`
	Capacity  int            `json:"capacity"`
	Trips     []string       `json:"trips"`
}

// Audit bundles every derived fact about one assignment.
type Audit struct {
	Conflicts  []Conflict  `json:"conflicts"`
	Violations []Violation `json:"violations"`
	Pending    []string    `json:"pending"`
}

// Detector audits assignments against one schedule. It holds no mutable
// state and is safe for concurrent use.
type Detector struct {
	s *model.Schedule
}

// NewDetector returns a detector bound to the schedule.
func NewDetector(s *model.Schedule) *Detector { return &Detector{s: s} }

type entry struct {
	trip model.Trip
	iv   model.Interval
}

type segment struct {
	iv       model.Interval
	open     []entry
	vehicles int
}

// Audit runs the conflict, violation and pending checks together.
func (d *Detector) Audit(a model.Assignment) Audit {
	return Audit{
		Conflicts:  d.FindConflicts(a),
		Violations: d.Violations(a),
		Pending:    d.Pending(a),
	}
}

// FindConflicts returns every conflicting pair and stretch ordered by bay,
// window start and trip IDs. Entries referencing unknown trips or bays are ignored.
func (d *Detector) FindConflicts(a model.Assignment) []Conflict {
	out := []Conflict{}
	for _, bay := range d.s.Bays() {
		// last indexes the most recent conflict of each pair in out.
		last := make(map[[2]string]int)
		for _, seg := range d.overCapacity(bay, a) {
			for i := 0; i < len(seg.open); i++ {
				for j := i + 1; j < len(seg.open); j++ {
					x, y := seg.open[i].trip, seg.open[j].trip
					if x.Vehicle() == y.Vehicle() {
						continue
					}
					if y.ID < x.ID {
						x, y = y, x
					}
					key := [2]string{x.ID, y.ID}
					if k, ok := last[key]; ok && out[k].Window.End == seg.iv.Start {
						out[k].Window.End = seg.iv.End
						out[k].Occupancy = max(out[k].Occupancy, seg.vehicles)
						continue
					}
					last[key] = len(out)
					out = append(out, Conflict{
						BayID: bay.ID, TripA: x.ID, TripB: y.ID,
						Window: seg.iv, Occupancy: seg.vehicles, Capacity: bay.Capacity,
					})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BayID != b.BayID {
			return a.BayID < b.BayID
		}
		if a.Window.Start != b.Window.Start {
			return a.Window.Start < b.Window.Start
		}
		if a.TripA != b.TripA {
			return a.TripA < b.TripA
		}
		return a.TripB < b.TripB
	})
	return out
}

// Violations returns the over-capacity stretches of every bay.
func (d *Detector) Violations(a model.Assignment) []Violation {
	out := []Violation{}
	for _, bay := range d.s.Bays() {
		var cur *Violation
		trips := map[string]bool{}
		flush := func() {
			if cur == nil {
				return
			}
			for id := range trips {
				cur.Trips = append(cur.Trips, id)
			}
			sort.Strings(cur.Trips)
			out = append(out, *cur)
			cur = nil
			trips = map[string]bool{}
		}
		for _, seg := range d.overCapacity(bay, a) {
			if cur != nil && cur.Window.End != seg.iv.Start {
				flush()
			}
			if cur == nil {
				cur = &Violation{BayID: bay.ID, Window: seg.iv, Capacity: bay.Capacity}
			}
			cur.Window.End = seg.iv.End
			cur.Occupancy = max(cur.Occupancy, seg.vehicles)
			for _, e := range seg.open {
				trips[e.trip.ID] = true
			}
		}
		flush()
	}
	return out
}

// Pending lists trips without a bay, sorted by ID.
func (d *Detector) Pending(a model.Assignment) []string {
	out := []string{}
	for _, t := range d.s.Trips() {
		if _, ok := a[t.ID]; !ok {
			out = append(out, t.ID)
		}
	}
	return out
}

// Exposure returns, per route, the seconds its trips spend on a bay that is
// over capacity. Routes without exposure are omitted.
func (d *Detector) Exposure(a model.Assignment) map[string]int {
	out := make(map[string]int)
	for _, bay := range d.s.Bays() {
		for _, seg := range d.overCapacity(bay, a) {
			seen := make(map[string]bool)
			for _, e := range seg.open {
				if !seen[e.trip.RouteID] {
					seen[e.trip.RouteID] = true
					out[e.trip.RouteID] += seg.iv.Seconds()
				}
			}
		}
	}
	return out
}

func (d *Detector) entries(bay model.Bay, a model.Assignment) []entry {
	var list []entry
	for tripID, bayID := range a {
		if bayID != bay.ID {
			continue
		}
		t, ok := d.s.Trip(tripID)
		if !ok {
			continue
		}
		iv := d.s.Interval(t, bay.ID)
		if iv.Empty() {
			continue
		}
		list = append(list, entry{trip: t, iv: iv})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].iv.Start != list[j].iv.Start {
			return list[i].iv.Start < list[j].iv.Start
		}
		return list[i].trip.ID < list[j].trip.ID
	})
	return list
}

// overCapacity sweeps the bay once and returns the segments during which it
// holds more vehicles than its capacity, in time order.
func (d *Detector) overCapacity(bay model.Bay, a model.Assignment) []segment {
	list := d.entries(bay, a)
	if len(list) < 2 {
		return nil
	}
	type event struct {
		at    model.ServiceTime
		start bool
		idx   int
	}
	events := make([]event, 0, 2*len(list))
	for i, e := range list {
		events = append(events, event{at: e.iv.Start, start: true, idx: i}, event{at: e.iv.End, idx: i})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		// Intervals are half-open: an end releases the bay before a start
		// at the same instant claims it.
		if events[i].start != events[j].start {
			return !events[i].start
		}
		return events[i].idx < events[j].idx
	})

	open := make(map[int]bool)
	var segs []segment
	for i := 0; i < len(events); {
		at := events[i].at
		for ; i < len(events) && events[i].at == at; i++ {
			if events[i].start {
				open[events[i].idx] = true
			} else {
				delete(open, events[i].idx)
			}
		}
		if i == len(events) || len(open) < 2 {
			continue
		}
		idx := make([]int, 0, len(open))
		vehicles := make(map[string]bool)
		for k := range open {
			idx = append(idx, k)
			vehicles[list[k].trip.Vehicle()] = true
		}
		if len(vehicles) <= bay.Capacity {
			continue
		}
		sort.Ints(idx)
		seg := segment{iv: model.Interval{Start: at, End: events[i].at}, vehicles: len(vehicles)}
		for _, k := range idx {
			seg.open = append(seg.open, list[k])
		}
		segs = append(segs, seg)
	}
	return segs
}
