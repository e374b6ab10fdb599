package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/report"
)

func sample() report.Report {
	w := model.Interval{Start: model.MustServiceTime("08:08"), End: model.MustServiceTime("08:10")}
	return report.Report{
		RunID:    "run-1",
		Severity: report.UnresolvedConflict,
		ExitCode: 2,
		Findings: []report.Finding{
			{Severity: report.UnresolvedConflict, Kind: report.KindConflict, BayID: "bay1", Trips: []string{"t1", "t2"}, Window: &w, Message: "overlap, on bay1"},
			{Severity: report.Info, Kind: report.KindPending, Trips: []string{"t3"}, Message: "1 trips have no bay"},
		},
		Assignment: model.Assignment{"t2": "bay1", "t1": "bay1"},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"run_id", "severity", "exit_code", "summary", "findings", "assignment"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
	if m["severity"] != "unresolved_conflict" {
		t.Errorf("severity: %v", m["severity"])
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "run_id,severity,kind,bay_id,route_id,trips,window_start,window_end,message" {
		t.Errorf("header: %s", lines[0])
	}
	want := `run-1,unresolved_conflict,conflict,bay1,,t1;t2,08:08:00,08:10:00,"overlap, on bay1"`
	if lines[1] != want {
		t.Errorf("row: got %s want %s", lines[1], want)
	}
}

func TestWriteAssignmentCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAssignmentCSV(&buf, sample().Assignment); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "trip_id,bay_id\nt1,bay1\nt2,bay1\n"
	if buf.String() != want {
		t.Errorf("got %q want %q", buf.String(), want)
	}
}
