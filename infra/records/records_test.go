package records

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bayplan/core/model"
)

const tripsCSV = `trip_id,route_id,direction_id,block_id,arrival_time,departure_time,bay_id
t1,A,0,b1,08:00,08:10,bay1
t2,A,1,b1,08:20:30,08:30,
t3,B,,,25:05,25:15,bay2
`

const baysCSV = `bay_id,capacity,routes,cluster_id,x,y
bay1,1,A,east,0,0
bay2,2,A;B,east,20,0
bay3
`

func TestReadTrips(t *testing.T) {
	got, err := ReadTrips(strings.NewReader(tripsCSV))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.TripRecord{
		TripID: "t2", RouteID: "A", Direction: "1", BlockID: "b1",
		Arrival: "08:20:30", Departure: "08:30",
	}, got[1])
	assert.Equal(t, "25:05", got[2].Arrival)
}

func TestReadBays_ShortRowsAndMissingColumns(t *testing.T) {
	got, err := ReadBays(strings.NewReader(baysCSV))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A;B", got[1].Routes)
	assert.Equal(t, model.BayRecord{BayID: "bay3"}, got[2])
}

func TestReadClusters_Empty(t *testing.T) {
	got, err := ReadClusters(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotLoadsSchedule(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
		return p
	}
	snap, err := Load(Files{
		Trips:    write("trips.csv", tripsCSV),
		Bays:     write("bays.csv", baysCSV),
		Clusters: write("clusters.csv", "route_id,cluster_id,bay_id\nA,east,\nB,,bay2\n"),
	})
	require.NoError(t, err)
	assert.Len(t, snap.Clusters, 2)

	s, err := snap.Schedule(model.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, model.Assignment{"t1": "bay1", "t3": "bay2"}, s.Existing())
	bays, ok := s.ClusterBays("A")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"bay1", "bay2"}, bays)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(Files{Trips: "", Bays: ""})
	assert.Error(t, err)
	_, err = Load(Files{Bays: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestSnapshotSchedule_DataErrorNamesRecord(t *testing.T) {
	trips, err := ReadTrips(strings.NewReader("trip_id,route_id,arrival_time,departure_time\nt1,A,8h,09:00\n"))
	require.NoError(t, err)
	bays, err := ReadBays(strings.NewReader("bay_id\nbay1\n"))
	require.NoError(t, err)
	_, err = Snapshot{Trips: trips, Bays: bays}.Schedule(model.DefaultOptions())
	var de *model.DataError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Record, "t1")
}

func TestReadCandidates(t *testing.T) {
	names, byName, err := ReadCandidates(strings.NewReader(`candidate,trip_id,bay_id
spread,t1,bay1
spread,t2,bay2
stacked,t1,bay1
stacked,t2,bay1
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"spread", "stacked"}, names)
	assert.Equal(t, model.Assignment{"t1": "bay1", "t2": "bay2"}, byName["spread"])

	_, _, err = ReadCandidates(strings.NewReader("candidate,trip_id,bay_id\nx,t1,bay1\nx,t1,bay2\n"))
	assert.ErrorIs(t, err, model.ErrData)
	_, _, err = ReadCandidates(strings.NewReader("candidate,trip_id,bay_id\nx,,bay1\n"))
	assert.ErrorIs(t, err, model.ErrData)
}

func TestReadAssignment(t *testing.T) {
	a, err := ReadAssignment(strings.NewReader("trip_id,bay_id\nt1,bay1\nt2,\n"))
	require.NoError(t, err)
	assert.Equal(t, model.Assignment{"t1": "bay1"}, a)

	_, err = ReadAssignment(strings.NewReader("trip_id,bay_id\n,bay1\n"))
	assert.ErrorIs(t, err, model.ErrData)
}
