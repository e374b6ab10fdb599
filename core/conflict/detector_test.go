package conflict

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bayplan/core/model"
)

func load(t *testing.T, trips []model.TripRecord, bays []model.BayRecord, buffer float64) *model.Schedule {
	t.Helper()
	s, err := model.Load(trips, bays, nil, model.Options{BufferMinutes: buffer})
	require.NoError(t, err)
	return s
}

func st(s string) model.ServiceTime { return model.MustServiceTime(s) }

func TestFindConflicts_OverlapWindow(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "A", Arrival: "08:08", Departure: "08:20"},
	}, []model.BayRecord{{BayID: "bay1", Routes: "A"}}, 0)

	got := NewDetector(s).FindConflicts(model.Assignment{"t1": "bay1", "t2": "bay1"})
	require.Len(t, got, 1)
	assert.Equal(t, Conflict{
		BayID: "bay1", TripA: "t1", TripB: "t2",
		Window:    model.Interval{Start: st("08:08"), End: st("08:10")},
		Occupancy: 2, Capacity: 1,
	}, got[0])
}

func TestFindConflicts_TouchingIntervalsDoNotConflict(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "A", Arrival: "08:10", Departure: "08:20"},
	}, []model.BayRecord{{BayID: "bay1"}}, 0)
	assert.Empty(t, NewDetector(s).FindConflicts(model.Assignment{"t1": "bay1", "t2": "bay1"}))
}

func TestFindConflicts_BufferCreatesConflict(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "A", Arrival: "08:14", Departure: "08:20"},
	}, []model.BayRecord{{BayID: "bay1"}}, 3)
	got := NewDetector(s).FindConflicts(model.Assignment{"t1": "bay1", "t2": "bay1"})
	require.Len(t, got, 1)
	assert.Equal(t, model.Interval{Start: st("08:11"), End: st("08:13")}, got[0].Window)
}

func TestFindConflicts_SameBlockIsOneVehicle(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", BlockID: "b1", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "A", BlockID: "b1", Arrival: "08:12", Departure: "08:20"},
	}, []model.BayRecord{{BayID: "bay1"}}, 5)
	d := NewDetector(s)
	a := model.Assignment{"t1": "bay1", "t2": "bay1"}
	assert.Empty(t, d.FindConflicts(a))
	assert.Empty(t, d.Violations(a))
}

func TestFindConflicts_CapacityTwo(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:30"},
		{TripID: "t2", RouteID: "A", Arrival: "08:05", Departure: "08:20"},
		{TripID: "t3", RouteID: "A", Arrival: "08:10", Departure: "08:15"},
	}, []model.BayRecord{{BayID: "tandem", Capacity: "2"}}, 0)
	d := NewDetector(s)
	a := model.Assignment{"t1": "tandem", "t2": "tandem", "t3": "tandem"}

	got := d.FindConflicts(a)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, model.Interval{Start: st("08:10"), End: st("08:15")}, c.Window)
		assert.Equal(t, 3, c.Occupancy)
		assert.Equal(t, 2, c.Capacity)
	}
	assert.Equal(t, "t1", got[0].TripA)
	assert.Equal(t, "t2", got[0].TripB)

	v := d.Violations(a)
	require.Len(t, v, 1)
	assert.Equal(t, []string{"t1", "t2", "t3"}, v[0].Trips)

	// Two vehicles never exceed a tandem bay.
	delete(a, "t3")
	assert.Empty(t, d.FindConflicts(a))
}

func TestFindConflicts_PairSplitsWhenBayDipsWithinCapacity(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "09:00"},
		{TripID: "t2", RouteID: "A", Arrival: "08:00", Departure: "09:00"},
		{TripID: "t3", RouteID: "A", Arrival: "08:10", Departure: "08:20"},
		{TripID: "t4", RouteID: "A", Arrival: "08:40", Departure: "08:50"},
	}, []model.BayRecord{{BayID: "tandem", Capacity: "2"}}, 0)
	got := NewDetector(s).FindConflicts(model.Assignment{"t1": "tandem", "t2": "tandem", "t3": "tandem", "t4": "tandem"})
	require.Len(t, got, 6)

	var pair []model.Interval
	for _, c := range got {
		if c.TripA == "t1" && c.TripB == "t2" {
			pair = append(pair, c.Window)
		}
	}
	assert.Equal(t, []model.Interval{
		{Start: st("08:10"), End: st("08:20")},
		{Start: st("08:40"), End: st("08:50")},
	}, pair)
	assert.Equal(t, "t3", got[1].TripB)
	assert.Equal(t, "t4", got[4].TripB)
}

func TestFindConflicts_LayoverHoldsSnapshotBay(t *testing.T) {
	trips := []model.TripRecord{
		{TripID: "t1", RouteID: "A", BlockID: "b1", Arrival: "08:00", Departure: "08:10", BayID: "bay1"},
		{TripID: "t2", RouteID: "A", BlockID: "b1", Arrival: "08:30", Departure: "08:40", BayID: "bay1"},
		{TripID: "t3", RouteID: "B", Arrival: "08:15", Departure: "08:20", BayID: "bay1"},
	}
	bays := []model.BayRecord{{BayID: "bay1"}, {BayID: "bay2"}}

	s, err := model.Load(trips, bays, nil, model.Options{})
	require.NoError(t, err)
	assert.Empty(t, NewDetector(s).FindConflicts(s.Existing()))

	s, err = model.Load(trips, bays, nil, model.Options{LayoverMinutes: 30})
	require.NoError(t, err)
	d := NewDetector(s)
	got := d.FindConflicts(s.Existing())
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].TripA)
	assert.Equal(t, "t3", got[0].TripB)
	assert.Equal(t, model.Interval{Start: st("08:15"), End: st("08:20")}, got[0].Window)

	// Off its snapshot bay the trip has no layover.
	moved := s.Existing()
	moved["t3"] = "bay2"
	moved["t1"] = "bay2"
	assert.Empty(t, d.FindConflicts(moved))
}

func TestViolationsMergeAdjacentSegments(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "09:00"},
		{TripID: "t2", RouteID: "A", Arrival: "08:10", Departure: "08:30"},
		{TripID: "t3", RouteID: "A", Arrival: "08:20", Departure: "08:40"},
		{TripID: "t4", RouteID: "A", Arrival: "09:30", Departure: "09:40"},
	}, []model.BayRecord{{BayID: "bay1"}}, 0)
	v := NewDetector(s).Violations(model.Assignment{"t1": "bay1", "t2": "bay1", "t3": "bay1", "t4": "bay1"})
	require.Len(t, v, 1)
	assert.Equal(t, model.Interval{Start: st("08:10"), End: st("08:40")}, v[0].Window)
	assert.Equal(t, 3, v[0].Occupancy)
	assert.Equal(t, []string{"t1", "t2", "t3"}, v[0].Trips)
}

func TestPendingAndUnknownEntries(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
	}, []model.BayRecord{{BayID: "bay1"}}, 0)
	d := NewDetector(s)
	a := model.Assignment{"t1": "bay1", "ghost": "bay1"}
	assert.Empty(t, d.FindConflicts(a))
	assert.Equal(t, []string{"t2"}, d.Pending(a))
}

func TestExposure(t *testing.T) {
	s := load(t, []model.TripRecord{
		{TripID: "t1", RouteID: "A", Arrival: "08:00", Departure: "08:10"},
		{TripID: "t2", RouteID: "B", Arrival: "08:05", Departure: "08:20"},
		{TripID: "t3", RouteID: "C", Arrival: "09:00", Departure: "09:10"},
	}, []model.BayRecord{{BayID: "bay1"}}, 0)
	got := NewDetector(s).Exposure(model.Assignment{"t1": "bay1", "t2": "bay1", "t3": "bay1"})
	assert.Equal(t, map[string]int{"A": 300, "B": 300}, got)
}

// randomSchedule builds trips with random intervals on a handful of bays.
func randomSchedule(r *rand.Rand, n int) ([]model.TripRecord, model.Assignment) {
	var trips []model.TripRecord
	a := model.Assignment{}
	for i := 0; i < n; i++ {
		start := 6*60 + r.Intn(120)
		dur := 1 + r.Intn(20)
		id := fmt.Sprintf("t%02d", i)
		trips = append(trips, model.TripRecord{
			TripID:    id,
			RouteID:   "A",
			Arrival:   fmt.Sprintf("%02d:%02d", start/60, start%60),
			Departure: fmt.Sprintf("%02d:%02d", (start+dur)/60, (start+dur)%60),
		})
		a[id] = fmt.Sprintf("bay%d", r.Intn(3))
	}
	return trips, a
}

func TestFindConflicts_PermutationInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	bays := []model.BayRecord{{BayID: "bay0"}, {BayID: "bay1"}, {BayID: "bay2", Capacity: "2"}}
	for round := 0; round < 20; round++ {
		trips, a := randomSchedule(r, 25)
		base := NewDetector(load(t, trips, bays, 2)).FindConflicts(a)

		shuffled := append([]model.TripRecord(nil), trips...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		reversedBays := []model.BayRecord{bays[2], bays[1], bays[0]}
		got := NewDetector(load(t, shuffled, reversedBays, 2)).FindConflicts(a)
		require.Equal(t, base, got, "round %d", round)
	}
}

func TestFindConflicts_UnitCapacityMatchesPairwiseOverlap(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	bays := []model.BayRecord{{BayID: "bay0"}, {BayID: "bay1"}, {BayID: "bay2"}}
	for round := 0; round < 20; round++ {
		trips, a := randomSchedule(r, 20)
		s := load(t, trips, bays, 1)
		got := NewDetector(s).FindConflicts(a)
		reported := map[[2]string]bool{}
		for _, c := range got {
			reported[[2]string{c.TripA, c.TripB}] = true
		}
		all := s.Trips()
		for i := range all {
			for j := i + 1; j < len(all); j++ {
				x, y := all[i], all[j]
				if a[x.ID] != a[y.ID] {
					continue
				}
				overlap := s.Interval(x, a[x.ID]).Overlaps(s.Interval(y, a[y.ID]))
				require.Equal(t, overlap, reported[[2]string{x.ID, y.ID}], "round %d pair %s/%s", round, x.ID, y.ID)
			}
		}
	}
}
