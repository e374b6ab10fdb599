package optimizer

import (
	"sort"

	"github.com/kilianp07/bayplan/core/model"
)

// RoundRobin is the naive baseline used when a snapshot carries no bays:
// each route hands its trips, in arrival order, to its compatible bays in
// rotation. Trips without a compatible bay stay pending.
func RoundRobin(s *model.Schedule) model.Assignment {
	a := make(model.Assignment)
	byRoute := s.TripsByRoute()
	routes := make([]string, 0, len(byRoute))
	for r := range byRoute {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, r := range routes {
		trips := byRoute[r]
		sort.Slice(trips, func(i, j int) bool {
			if trips[i].Arrival != trips[j].Arrival {
				return trips[i].Arrival < trips[j].Arrival
			}
			return trips[i].ID < trips[j].ID
		})
		next := 0
		for _, t := range trips {
			bays := s.CompatibleBays(t)
			if len(bays) == 0 {
				continue
			}
			a[t.ID] = bays[next%len(bays)]
			next++
		}
	}
	return a
}
