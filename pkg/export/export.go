// Package export writes reports for the presentation layer.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/report"
)

// WriteJSON writes the report to w as indented JSON.
func WriteJSON(w io.Writer, rep report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// FindingRow is the CSV shape of a finding.
type FindingRow struct {
	RunID       string `csv:"run_id"`
	Severity    string `csv:"severity"`
	Kind        string `csv:"kind"`
	BayID       string `csv:"bay_id"`
	RouteID     string `csv:"route_id"`
	Trips       string `csv:"trips"`
	WindowStart string `csv:"window_start"`
	WindowEnd   string `csv:"window_end"`
	Message     string `csv:"message"`
}

// WriteCSV writes one row per finding, in report order.
func WriteCSV(w io.Writer, rep report.Report) error {
	rows := make([]FindingRow, 0, len(rep.Findings))
	for _, f := range rep.Findings {
		row := FindingRow{
			RunID:    rep.RunID,
			Severity: f.Severity.String(),
			Kind:     f.Kind,
			BayID:    f.BayID,
			RouteID:  f.RouteID,
			Trips:    strings.Join(f.Trips, ";"),
			Message:  f.Message,
		}
		if f.Window != nil {
			row.WindowStart = f.Window.Start.String()
			row.WindowEnd = f.Window.End.String()
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(&rows, w)
}

// AssignmentRow is the CSV shape of one assignment entry.
type AssignmentRow struct {
	TripID string `csv:"trip_id"`
	BayID  string `csv:"bay_id"`
}

// WriteAssignmentCSV writes the assignment sorted by trip ID.
func WriteAssignmentCSV(w io.Writer, a model.Assignment) error {
	ids := a.TripIDs()
	rows := make([]AssignmentRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, AssignmentRow{TripID: id, BayID: a[id]})
	}
	return gocsv.Marshal(&rows, w)
}
