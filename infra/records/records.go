// Package records reads schedule snapshots from CSV files.
//
// trips.csv:    trip_id,route_id,direction_id,block_id,arrival_time,departure_time,bay_id
// bays.csv:     bay_id,capacity,routes,cluster_id,x,y,lat,lon,buffer_minutes
// clusters.csv: route_id,cluster_id,bay_id
//
// Optional columns may be omitted. Rows with missing trailing fields are
// accepted and left empty for the model to validate.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/kilianp07/bayplan/core/model"
)

// Snapshot is the raw record set of one terminal.
type Snapshot struct {
	Trips    []model.TripRecord
	Bays     []model.BayRecord
	Clusters []model.ClusterRecord
}

// Schedule validates the snapshot into a schedule.
func (s Snapshot) Schedule(opts model.Options) (*model.Schedule, error) {
	return model.Load(s.Trips, s.Bays, s.Clusters, opts)
}

func reader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

func read[T any](in io.Reader, name string) ([]T, error) {
	var out []T
	if err := gocsv.UnmarshalCSV(reader(in), &out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, &model.DataError{Record: name, Err: err}
	}
	return out, nil
}

// ReadTrips decodes a trips table.
func ReadTrips(in io.Reader) ([]model.TripRecord, error) {
	return read[model.TripRecord](in, "trips")
}

// ReadBays decodes a bay inventory table.
func ReadBays(in io.Reader) ([]model.BayRecord, error) {
	return read[model.BayRecord](in, "bays")
}

// ReadClusters decodes a route cluster declaration table.
func ReadClusters(in io.Reader) ([]model.ClusterRecord, error) {
	return read[model.ClusterRecord](in, "clusters")
}

// CandidateRecord is one row of a what-if candidates table.
type CandidateRecord struct {
	Candidate string `csv:"candidate"`
	TripID    string `csv:"trip_id"`
	BayID     string `csv:"bay_id"`
}

// ReadCandidates decodes candidate assignments, keeping the order in which
// candidate names first appear.
func ReadCandidates(in io.Reader) (names []string, byName map[string]model.Assignment, err error) {
	recs, err := read[CandidateRecord](in, "candidates")
	if err != nil {
		return nil, nil, err
	}
	byName = make(map[string]model.Assignment)
	for i, r := range recs {
		if r.Candidate == "" || r.TripID == "" || r.BayID == "" {
			return nil, nil, &model.DataError{Record: fmt.Sprintf("candidates row %d", i+1), Err: fmt.Errorf("candidate, trip_id and bay_id are required")}
		}
		a, ok := byName[r.Candidate]
		if !ok {
			a = make(model.Assignment)
			byName[r.Candidate] = a
			names = append(names, r.Candidate)
		}
		if prev, dup := a[r.TripID]; dup && prev != r.BayID {
			return nil, nil, &model.DataError{
				Record: fmt.Sprintf("candidate %s trip %s", r.Candidate, r.TripID),
				Field:  "bay_id",
				Err:    fmt.Errorf("assigned to both %s and %s", prev, r.BayID),
			}
		}
		a[r.TripID] = r.BayID
	}
	return names, byName, nil
}

// AssignmentRecord is one row of an assignment table.
type AssignmentRecord struct {
	TripID string `csv:"trip_id"`
	BayID  string `csv:"bay_id"`
}

// ReadAssignment decodes a trip_id,bay_id table. Rows without a bay leave
// the trip pending.
func ReadAssignment(in io.Reader) (model.Assignment, error) {
	recs, err := read[AssignmentRecord](in, "assignment")
	if err != nil {
		return nil, err
	}
	a := make(model.Assignment, len(recs))
	for i, r := range recs {
		if r.TripID == "" {
			return nil, &model.DataError{Record: fmt.Sprintf("assignment row %d", i+1), Field: "trip_id", Err: fmt.Errorf("required")}
		}
		if r.BayID != "" {
			a[r.TripID] = r.BayID
		}
	}
	return a, nil
}

// ReadAssignmentFile reads an assignment table from disk.
func ReadAssignmentFile(path string) (model.Assignment, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = fh.Close() }()
	return ReadAssignment(fh)
}

// Files names the snapshot files. Clusters is optional.
type Files struct {
	Trips    string
	Bays     string
	Clusters string
}

// Load reads every named file. Trips may be empty when they come from
// another source.
func Load(f Files) (Snapshot, error) {
	var s Snapshot
	var err error
	if f.Trips != "" {
		if s.Trips, err = readFile(f.Trips, ReadTrips); err != nil {
			return Snapshot{}, err
		}
	}
	if f.Bays == "" {
		return Snapshot{}, fmt.Errorf("bay inventory file is required")
	}
	if s.Bays, err = readFile(f.Bays, ReadBays); err != nil {
		return Snapshot{}, err
	}
	if f.Clusters != "" {
		if s.Clusters, err = readFile(f.Clusters, ReadClusters); err != nil {
			return Snapshot{}, err
		}
	}
	return s, nil
}

func readFile[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = fh.Close() }()
	return decode(fh)
}
