// Package cluster checks bay assignments against the declared route
// clusters and lints the cluster geometry itself.
package cluster

import (
	"slices"
	"sort"

	"github.com/kilianp07/bayplan/core/model"
)

// Mismatch is an assigned trip whose bay lies outside its route's declared
// bay set.
type Mismatch struct {
	TripID    string   `json:"trip_id"`
	RouteID   string   `json:"route_id"`
	BayID     string   `json:"bay_id"`
	ClusterID string   `json:"cluster_id,omitempty"`
	Allowed   []string `json:"allowed"`
}

// Validator checks assignments against one schedule's declarations. It is
// safe for concurrent use.
type Validator struct {
	s *model.Schedule
}

// NewValidator returns a validator bound to the schedule.
func NewValidator(s *model.Schedule) *Validator { return &Validator{s: s} }

// Validate returns one mismatch per assigned trip whose route declares a bay
// set that does not contain the assigned bay, ordered by trip ID. Routes
// without a declaration and unknown trips are skipped.
func (v *Validator) Validate(a model.Assignment) []Mismatch {
	out := []Mismatch{}
	for _, tripID := range a.TripIDs() {
		t, ok := v.s.Trip(tripID)
		if !ok {
			continue
		}
		allowed, declared := v.s.ClusterBays(t.RouteID)
		if !declared {
			continue
		}
		bayID := a[tripID]
		if slices.Contains(allowed, bayID) {
			continue
		}
		m := Mismatch{TripID: tripID, RouteID: t.RouteID, BayID: bayID, Allowed: allowed}
		if b, ok := v.s.Bay(bayID); ok {
			m.ClusterID = b.ClusterID
		}
		out = append(out, m)
	}
	return out
}

// Undeclared lists, sorted, the routes of assigned trips that have no
// cluster declaration and therefore cannot be validated.
func (v *Validator) Undeclared(a model.Assignment) []string {
	seen := make(map[string]bool)
	for tripID := range a {
		t, ok := v.s.Trip(tripID)
		if !ok {
			continue
		}
		if _, declared := v.s.ClusterBays(t.RouteID); !declared {
			seen[t.RouteID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
