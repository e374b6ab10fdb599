// Package gtfsfeed derives terminal trip records from a GTFS static feed.
// Every call of a trip at a stop mapped to a bay becomes one trip record,
// pre-assigned to that bay.
package gtfsfeed

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/jamespfennell/gtfs"

	"github.com/kilianp07/bayplan/core/logger"
	"github.com/kilianp07/bayplan/core/model"
)

// Options selects what part of the feed is read.
type Options struct {
	// BayStops maps stop IDs to bay IDs. When empty, stops whose ID equals a
	// bay ID map to that bay.
	BayStops map[string]string
	// Services keeps only trips of these service IDs. Empty keeps all.
	Services []string
	Logger   logger.Logger
}

// Load parses the feed archive at path.
func Load(path string) (*gtfs.Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gtfs feed: %w", err)
	}
	st, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, &model.DataError{Record: "gtfs feed " + path, Err: err}
	}
	return st, nil
}

// Trips converts the feed into trip records for the given bays.
func Trips(st *gtfs.Static, bays []model.BayRecord, opts Options) []model.TripRecord {
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	stopBay := opts.BayStops
	if len(stopBay) == 0 {
		stopBay = make(map[string]string, len(bays))
		for _, b := range bays {
			stopBay[b.BayID] = b.BayID
		}
	}

	var out []model.TripRecord
	skipped := 0
	for _, t := range st.Trips {
		if len(opts.Services) > 0 && (t.Service == nil || !slices.Contains(opts.Services, t.Service.Id)) {
			skipped++
			continue
		}
		calls := 0
		for _, stt := range t.StopTimes {
			if stt.Stop == nil {
				continue
			}
			bay, ok := stopBay[stt.Stop.Id]
			if !ok {
				continue
			}
			id := t.ID
			if calls > 0 {
				id = t.ID + "#" + strconv.Itoa(stt.StopSequence)
			}
			calls++
			out = append(out, model.TripRecord{
				TripID:    id,
				RouteID:   routeID(t),
				Direction: direction(t.DirectionId),
				BlockID:   t.BlockID,
				Arrival:   clock(stt.ArrivalTime),
				Departure: clock(stt.DepartureTime),
				BayID:     bay,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
	log.Infof("gtfs: %d terminal calls from %d trips (%d outside the service filter)", len(out), len(st.Trips), skipped)
	return out
}

func routeID(t gtfs.ScheduledTrip) string {
	if t.Route == nil {
		return ""
	}
	return t.Route.Id
}

func direction(d gtfs.DirectionID) string {
	switch d {
	case gtfs.DirectionID_False:
		return "0"
	case gtfs.DirectionID_True:
		return "1"
	}
	return ""
}

func clock(d time.Duration) string {
	return model.ServiceTime(int(d / time.Second)).String()
}
