package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
)

// DefaultBufferMinutes is the dwell/recovery margin used when nothing else
// is configured.
const DefaultBufferMinutes = 5

// Trip is one scheduled visit of a vehicle to the terminal.
type Trip struct {
	ID        string      `json:"id"`
	RouteID   string      `json:"route_id"`
	Direction string      `json:"direction,omitempty"`
	BlockID   string      `json:"block_id,omitempty"`
	Arrival   ServiceTime `json:"arrival"`
	Departure ServiceTime `json:"departure"`
	// Bay is the bay pre-assigned by the snapshot, empty when pending.
	Bay string `json:"bay,omitempty"`
	// LayoverUntil is the arrival of the vehicle's next trip when the bus
	// waits for it on Bay. Zero when there is no layover.
	LayoverUntil ServiceTime `json:"layover_until,omitempty"`
}

// Vehicle identifies the physical bus running the trip. Trips of one block
// share a vehicle; trips without a block are their own vehicle.
func (t Trip) Vehicle() string {
	if t.BlockID != "" {
		return "block:" + t.BlockID
	}
	return "trip:" + t.ID
}

// Scheduled returns the unbuffered occupancy window.
func (t Trip) Scheduled() Interval { return Interval{Start: t.Arrival, End: t.Departure} }

// Bay is a physical vehicle-holding slot.
type Bay struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
	// Routes holds compatibility keys, either "route" or "route:direction".
	// An empty list accepts any route.
	Routes    []string `json:"routes,omitempty"`
	ClusterID string   `json:"cluster_id,omitempty"`
	Location  *Point   `json:"location,omitempty"`
	// BufferSeconds overrides every other buffer for trips using this bay.
	BufferSeconds *int `json:"buffer_seconds,omitempty"`
}

// Accepts reports whether the trip may use the bay.
func (b Bay) Accepts(t Trip) bool {
	if len(b.Routes) == 0 {
		return true
	}
	for _, k := range b.Routes {
		if k == t.RouteID || (t.Direction != "" && k == t.RouteID+":"+t.Direction) {
			return true
		}
	}
	return false
}

// Options carries the buffer configuration applied while loading.
type Options struct {
	BufferMinutes float64
	RouteBuffers  map[string]float64
	// LayoverMinutes is the longest gap between consecutive trips of a block
	// on the same snapshot bay during which the bus stays on the bay. Zero
	// disables layovers.
	LayoverMinutes float64
}

// DefaultOptions returns the agency default margin of five minutes.
func DefaultOptions() Options {
	return Options{BufferMinutes: DefaultBufferMinutes}
}

// Schedule is the immutable in-memory snapshot of trips, bays and declared
// route clusters for one analysis run.
type Schedule struct {
	trips        []Trip
	tripIdx      map[string]int
	bays         []Bay
	bayIdx       map[string]int
	byBlock      map[string][]string
	byRoute      map[string][]string
	routeBays    map[string][]string
	buffer       int
	routeBuffers map[string]int
}

// Load validates the snapshot records and builds a Schedule. Any malformed
// record aborts the load with a *DataError.
func Load(tripRecs []TripRecord, bayRecs []BayRecord, clusterRecs []ClusterRecord, opts Options) (*Schedule, error) {
	if opts.BufferMinutes < 0 {
		return nil, dataErr("options", "buffer_minutes", errors.New("must not be negative"))
	}
	if opts.LayoverMinutes < 0 {
		return nil, dataErr("options", "layover_minutes", errors.New("must not be negative"))
	}
	bays, err := parseBays(bayRecs)
	if err != nil {
		return nil, err
	}
	bayIDs := make(map[string]bool, len(bays))
	clusters := make(map[string][]string)
	for _, b := range bays {
		bayIDs[b.ID] = true
		if b.ClusterID != "" {
			clusters[b.ClusterID] = append(clusters[b.ClusterID], b.ID)
		}
	}

	trips := make([]Trip, 0, len(tripRecs))
	seen := make(map[string]bool, len(tripRecs))
	for i, r := range tripRecs {
		label := tripLabel(i, r)
		if err := checkRecord(label, r); err != nil {
			return nil, err
		}
		if seen[r.TripID] {
			return nil, dataErr(label, "trip_id", errors.New("duplicate trip"))
		}
		seen[r.TripID] = true
		arr, err := ParseServiceTime(r.Arrival)
		if err != nil {
			return nil, dataErr(label, "arrival_time", err)
		}
		dep, err := ParseServiceTime(r.Departure)
		if err != nil {
			return nil, dataErr(label, "departure_time", err)
		}
		if dep < arr {
			return nil, dataErr(label, "departure_time", fmt.Errorf("negative duration: departs %s before arriving %s", dep, arr))
		}
		if r.BayID != "" && !bayIDs[r.BayID] {
			return nil, dataErr(label, "bay_id", fmt.Errorf("unknown bay %q", r.BayID))
		}
		trips = append(trips, Trip{
			ID:        r.TripID,
			RouteID:   r.RouteID,
			Direction: r.Direction,
			BlockID:   r.BlockID,
			Arrival:   arr,
			Departure: dep,
			Bay:       r.BayID,
		})
	}

	routeBays := make(map[string][]string)
	for i, r := range clusterRecs {
		label := clusterLabel(i, r)
		if err := checkRecord(label, r); err != nil {
			return nil, err
		}
		if r.BayID != "" {
			if !bayIDs[r.BayID] {
				return nil, dataErr(label, "bay_id", fmt.Errorf("unknown bay %q", r.BayID))
			}
			routeBays[r.RouteID] = append(routeBays[r.RouteID], r.BayID)
		}
		if r.ClusterID != "" {
			members, ok := clusters[r.ClusterID]
			if !ok {
				return nil, dataErr(label, "cluster_id", fmt.Errorf("no bay belongs to cluster %q", r.ClusterID))
			}
			routeBays[r.RouteID] = append(routeBays[r.RouteID], members...)
		}
	}

	markLayovers(trips, ServiceTime(Minutes(opts.LayoverMinutes)))

	routeBuffers := make(map[string]int, len(opts.RouteBuffers))
	for route, m := range opts.RouteBuffers {
		if m < 0 {
			return nil, dataErr("options", "per_route_buffer_overrides."+route, errors.New("must not be negative"))
		}
		routeBuffers[route] = Minutes(m)
	}
	return build(trips, bays, routeBays, Minutes(opts.BufferMinutes), routeBuffers), nil
}

// markLayovers sets LayoverUntil on every block trip whose successor uses the
// same snapshot bay and arrives at most limit after it departs.
func markLayovers(trips []Trip, limit ServiceTime) {
	if limit <= 0 {
		return
	}
	byBlock := make(map[string][]int)
	for i, t := range trips {
		if t.BlockID != "" && t.Bay != "" {
			byBlock[t.BlockID] = append(byBlock[t.BlockID], i)
		}
	}
	for _, idx := range byBlock {
		sort.Slice(idx, func(i, j int) bool {
			a, b := trips[idx[i]], trips[idx[j]]
			if a.Arrival != b.Arrival {
				return a.Arrival < b.Arrival
			}
			return a.ID < b.ID
		})
		for k := 0; k+1 < len(idx); k++ {
			cur, next := &trips[idx[k]], trips[idx[k+1]]
			gap := next.Arrival - cur.Departure
			if cur.Bay == next.Bay && gap > 0 && gap <= limit {
				cur.LayoverUntil = next.Arrival
			}
		}
	}
}

func parseBays(recs []BayRecord) ([]Bay, error) {
	bays := make([]Bay, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	var planar, geographic []int
	var coords []latLon
	for i, r := range recs {
		label := bayLabel(i, r)
		if err := checkRecord(label, r); err != nil {
			return nil, err
		}
		if seen[r.BayID] {
			return nil, dataErr(label, "bay_id", errors.New("duplicate bay"))
		}
		seen[r.BayID] = true
		b := Bay{ID: r.BayID, Capacity: 1, Routes: splitRoutes(r.Routes), ClusterID: r.ClusterID}
		if r.Capacity != "" {
			c, err := strconv.Atoi(r.Capacity)
			if err != nil || c < 1 {
				return nil, dataErr(label, "capacity", fmt.Errorf("capacity must be a positive integer, got %q", r.Capacity))
			}
			b.Capacity = c
		}
		if r.BufferMinutes != "" {
			m, err := strconv.ParseFloat(r.BufferMinutes, 64)
			if err != nil || m < 0 {
				return nil, dataErr(label, "buffer_minutes", fmt.Errorf("invalid buffer %q", r.BufferMinutes))
			}
			sec := Minutes(m)
			b.BufferSeconds = &sec
		}
		hasXY := r.X != "" || r.Y != ""
		hasLL := r.Lat != "" || r.Lon != ""
		switch {
		case hasXY && hasLL:
			return nil, dataErr(label, "x", errors.New("both planar and geographic coordinates given"))
		case hasXY:
			x, errX := strconv.ParseFloat(r.X, 64)
			y, errY := strconv.ParseFloat(r.Y, 64)
			if errX != nil || errY != nil {
				return nil, dataErr(label, "x", errors.New("x and y must both be set"))
			}
			b.Location = &Point{X: x, Y: y}
			planar = append(planar, i)
		case hasLL:
			lat, errLat := strconv.ParseFloat(r.Lat, 64)
			lon, errLon := strconv.ParseFloat(r.Lon, 64)
			if errLat != nil || errLon != nil {
				return nil, dataErr(label, "lat", errors.New("lat and lon must both be set"))
			}
			coords = append(coords, latLon{lat: lat, lon: lon})
			geographic = append(geographic, i)
		}
		bays = append(bays, b)
	}
	if len(planar) > 0 && len(geographic) > 0 {
		return nil, dataErr(bayLabel(geographic[0], recs[geographic[0]]), "lat", errors.New("inventory mixes planar and geographic coordinates"))
	}
	for k, p := range project(coords) {
		pt := p
		bays[geographic[k]].Location = &pt
	}
	return bays, nil
}

func splitRoutes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '|' || r == ',' || r == ' '
	})
	if len(fields) == 0 || slices.Contains(fields, "*") {
		return nil
	}
	return fields
}

func build(trips []Trip, bays []Bay, routeBays map[string][]string, buffer int, routeBuffers map[string]int) *Schedule {
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	sort.Slice(bays, func(i, j int) bool { return bays[i].ID < bays[j].ID })
	s := &Schedule{
		trips:        trips,
		tripIdx:      make(map[string]int, len(trips)),
		bays:         bays,
		bayIdx:       make(map[string]int, len(bays)),
		byBlock:      make(map[string][]string),
		byRoute:      make(map[string][]string),
		routeBays:    make(map[string][]string, len(routeBays)),
		buffer:       buffer,
		routeBuffers: routeBuffers,
	}
	for i, b := range bays {
		s.bayIdx[b.ID] = i
	}
	for i, t := range trips {
		s.tripIdx[t.ID] = i
		s.byRoute[t.RouteID] = append(s.byRoute[t.RouteID], t.ID)
		if t.BlockID != "" {
			s.byBlock[t.BlockID] = append(s.byBlock[t.BlockID], t.ID)
		}
	}
	for _, ids := range s.byBlock {
		sort.Slice(ids, func(i, j int) bool {
			a, b := trips[s.tripIdx[ids[i]]], trips[s.tripIdx[ids[j]]]
			if a.Arrival != b.Arrival {
				return a.Arrival < b.Arrival
			}
			return a.ID < b.ID
		})
	}
	for route, ids := range routeBays {
		ids = slices.Clone(ids)
		slices.Sort(ids)
		s.routeBays[route] = slices.Compact(ids)
	}
	return s
}

// Clone returns an independent deep copy, so what-if runs never share state.
func (s *Schedule) Clone() (*Schedule, error) {
	var trips []Trip
	var bays []Bay
	opt := copier.Option{DeepCopy: true}
	if err := copier.CopyWithOption(&trips, s.trips, opt); err != nil {
		return nil, fmt.Errorf("clone trips: %w", err)
	}
	if err := copier.CopyWithOption(&bays, s.bays, opt); err != nil {
		return nil, fmt.Errorf("clone bays: %w", err)
	}
	routeBays := make(map[string][]string, len(s.routeBays))
	for r, ids := range s.routeBays {
		routeBays[r] = slices.Clone(ids)
	}
	routeBuffers := make(map[string]int, len(s.routeBuffers))
	for r, v := range s.routeBuffers {
		routeBuffers[r] = v
	}
	return build(trips, bays, routeBays, s.buffer, routeBuffers), nil
}

// Trips returns all trips ordered by ID.
func (s *Schedule) Trips() []Trip { return slices.Clone(s.trips) }

// Trip looks up a trip by ID.
func (s *Schedule) Trip(id string) (Trip, bool) {
	i, ok := s.tripIdx[id]
	if !ok {
		return Trip{}, false
	}
	return s.trips[i], true
}

// Bays returns the inventory ordered by ID.
func (s *Schedule) Bays() []Bay { return slices.Clone(s.bays) }

// Bay looks up a bay by ID.
func (s *Schedule) Bay(id string) (Bay, bool) {
	i, ok := s.bayIdx[id]
	if !ok {
		return Bay{}, false
	}
	return s.bays[i], true
}

// BayRank returns the position of the bay in ID order, -1 when unknown.
func (s *Schedule) BayRank(id string) int {
	i, ok := s.bayIdx[id]
	if !ok {
		return -1
	}
	return i
}

// TripsByBlock returns the trips of every block ordered by arrival.
func (s *Schedule) TripsByBlock() map[string][]Trip {
	return s.group(s.byBlock)
}

// TripsByRoute returns the trips of every route ordered by ID.
func (s *Schedule) TripsByRoute() map[string][]Trip {
	return s.group(s.byRoute)
}

func (s *Schedule) group(src map[string][]string) map[string][]Trip {
	out := make(map[string][]Trip, len(src))
	for k, ids := range src {
		list := make([]Trip, len(ids))
		for i, id := range ids {
			list[i] = s.trips[s.tripIdx[id]]
		}
		out[k] = list
	}
	return out
}

// BufferSeconds returns the default margin in seconds.
func (s *Schedule) BufferSeconds() int { return s.buffer }

// BufferFor resolves the margin for a trip on a bay: bay override first,
// then the route override, then the default.
func (s *Schedule) BufferFor(t Trip, bayID string) int {
	if b, ok := s.Bay(bayID); ok && b.BufferSeconds != nil {
		return *b.BufferSeconds
	}
	if v, ok := s.routeBuffers[t.RouteID]; ok {
		return v
	}
	return s.buffer
}

// Interval returns the buffered occupancy interval of the trip on the bay.
// On its snapshot bay a trip also holds the bay through its layover.
func (s *Schedule) Interval(t Trip, bayID string) Interval {
	iv := t.Scheduled()
	if bayID == t.Bay && t.LayoverUntil > iv.End {
		iv.End = t.LayoverUntil
	}
	return iv.Pad(s.BufferFor(t, bayID))
}

// CompatibleBays returns the IDs of bays accepting the trip, in ID order.
func (s *Schedule) CompatibleBays(t Trip) []string {
	var ids []string
	for _, b := range s.bays {
		if b.Accepts(t) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// ClusterBays returns the declared bay set for a route. ok is false when the
// route has no declaration.
func (s *Schedule) ClusterBays(route string) ([]string, bool) {
	ids, ok := s.routeBays[route]
	return slices.Clone(ids), ok
}

// RouteCentroid returns the centroid of the located bays declared for the
// route.
func (s *Schedule) RouteCentroid(route string) (Point, bool) {
	var pts []Point
	for _, id := range s.routeBays[route] {
		if b, ok := s.Bay(id); ok && b.Location != nil {
			pts = append(pts, *b.Location)
		}
	}
	return Centroid(pts)
}

// Existing returns the assignment carried by the snapshot itself.
func (s *Schedule) Existing() Assignment {
	a := make(Assignment)
	for _, t := range s.trips {
		if t.Bay != "" {
			a[t.ID] = t.Bay
		}
	}
	return a
}

// CheckAssignment verifies that every entry references a known trip and bay.
func (s *Schedule) CheckAssignment(a Assignment) error {
	for _, tripID := range a.TripIDs() {
		bayID := a[tripID]
		if _, ok := s.Trip(tripID); !ok {
			return dataErr("assignment "+tripID, "trip_id", errors.New("unknown trip"))
		}
		if _, ok := s.Bay(bayID); !ok {
			return dataErr("assignment "+tripID, "bay_id", fmt.Errorf("unknown bay %q", bayID))
		}
	}
	return nil
}
