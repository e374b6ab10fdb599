// Package report turns audit, optimisation and validation outcomes into one
// ordered, persisted result with an exit code.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bayplan/core/cluster"
	"github.com/kilianp07/bayplan/core/conflict"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
)

// Severity orders findings. Higher is worse.
type Severity int

const (
	Info Severity = iota
	ClusterMismatch
	UnresolvedConflict
	InfeasibleConfiguration
)

var severityNames = []string{"info", "cluster_mismatch", "unresolved_conflict", "infeasible_configuration"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, n := range severityNames {
		if n == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

// ExitCode maps the severity to the process exit status: 0 for info, then
// 1, 2 and 3.
func (s Severity) ExitCode() int { return int(s) }

// ExitDataError is the exit status of a run aborted by malformed input.
const ExitDataError = 4

// Finding kinds.
const (
	KindConflict           = "conflict"
	KindContinuityBreak    = "continuity_break"
	KindClusterMismatch    = "cluster_mismatch"
	KindUnassigned         = "unassigned"
	KindPending            = "pending"
	KindUndeclaredCluster  = "undeclared_cluster"
	KindSolverLimit        = "solver_limit"
	KindConfigurationError = "configuration_error"
	KindDataError          = "data_error"
)

// Finding is one itemised remark of a report.
type Finding struct {
	Severity Severity        `json:"severity"`
	Kind     string          `json:"kind"`
	BayID    string          `json:"bay_id,omitempty"`
	RouteID  string          `json:"route_id,omitempty"`
	Trips    []string        `json:"trips,omitempty"`
	Window   *model.Interval `json:"window,omitempty"`
	Message  string          `json:"message"`
}

// Summary carries the headline numbers of a run.
type Summary struct {
	Trips              int            `json:"trips"`
	Bays               int            `json:"bays"`
	Assigned           int            `json:"assigned"`
	Pending            int            `json:"pending"`
	BaselineConflicts  int            `json:"baseline_conflicts"`
	FinalConflicts     int            `json:"final_conflicts"`
	CapacityViolations int            `json:"capacity_violations"`
	ClusterMismatches  int            `json:"cluster_mismatches"`
	BaselineExposure   map[string]int `json:"baseline_exposure_seconds,omitempty"`
	FinalExposure      map[string]int `json:"final_exposure_seconds,omitempty"`
	Optimized          bool           `json:"optimized"`
	Moved              int            `json:"moved,omitempty"`
	Feasible           bool           `json:"feasible"`
	Optimal            bool           `json:"optimal"`
	LimitReached       bool           `json:"limit_reached"`
	ObjectiveValue     float64        `json:"objective_value"`
	Nodes              int            `json:"nodes,omitempty"`
	SolveTime          time.Duration  `json:"solve_time_ns,omitempty"`
}

// Report is the structured result of one analysis run.
type Report struct {
	RunID      string           `json:"run_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Label      string           `json:"label,omitempty"`
	Severity   Severity         `json:"severity"`
	ExitCode   int              `json:"exit_code"`
	Summary    Summary          `json:"summary"`
	Findings   []Finding        `json:"findings"`
	Assignment model.Assignment `json:"assignment,omitempty"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

// now is replaced in tests.
var now = time.Now

// Builder accumulates findings. It is not safe for concurrent use.
type Builder struct {
	rep      Report
	baseline model.Assignment
	// Feasibility is settled in Build so Final and Optimization may come in
	// any order.
	audited         bool
	conflictFree    bool
	solveInfeasible bool
}

// NewBuilder starts a report. An empty runID draws a new one.
func NewBuilder(runID string) *Builder {
	if runID == "" {
		runID = NewRunID()
	}
	return &Builder{rep: Report{RunID: runID, CreatedAt: now().UTC()}}
}

// Label tags the report, for instance with the what-if candidate name.
func (b *Builder) Label(l string) *Builder {
	b.rep.Label = l
	return b
}

// Schedule records the size of the snapshot.
func (b *Builder) Schedule(s *model.Schedule) *Builder {
	b.rep.Summary.Trips = len(s.Trips())
	b.rep.Summary.Bays = len(s.Bays())
	return b
}

// Baseline records the audit of the assignment the run started from.
func (b *Builder) Baseline(a model.Assignment, audit conflict.Audit, exposure map[string]int) *Builder {
	b.baseline = a
	b.rep.Summary.BaselineConflicts = len(audit.Conflicts)
	b.rep.Summary.BaselineExposure = exposure
	return b
}

// Final records the audit of the assignment the run ends with. Its
// conflicts become findings.
func (b *Builder) Final(a model.Assignment, audit conflict.Audit, exposure map[string]int) *Builder {
	sum := &b.rep.Summary
	b.rep.Assignment = a
	sum.Assigned = len(a)
	sum.Pending = len(audit.Pending)
	sum.FinalConflicts = len(audit.Conflicts)
	sum.CapacityViolations = len(audit.Violations)
	sum.FinalExposure = exposure
	if b.baseline != nil {
		sum.Moved = len(b.baseline.Diff(a))
	}
	b.audited = true
	b.conflictFree = len(audit.Conflicts) == 0
	for _, c := range audit.Conflicts {
		w := c.Window
		b.add(Finding{
			Severity: UnresolvedConflict,
			Kind:     KindConflict,
			BayID:    c.BayID,
			Trips:    []string{c.TripA, c.TripB},
			Window:   &w,
			Message: fmt.Sprintf("trips %s and %s share bay %s during %s with %d vehicles for capacity %d",
				c.TripA, c.TripB, c.BayID, c.Window, c.Occupancy, c.Capacity),
		})
	}
	if len(audit.Pending) > 0 {
		b.add(Finding{
			Severity: Info,
			Kind:     KindPending,
			Trips:    audit.Pending,
			Message:  fmt.Sprintf("%d trips have no bay", len(audit.Pending)),
		})
	}
	return b
}

// Optimization records the optimizer outcome.
func (b *Builder) Optimization(res optimizer.Result) *Builder {
	sum := &b.rep.Summary
	sum.Optimized = true
	sum.Optimal = res.Optimal
	sum.LimitReached = res.LimitReached
	sum.ObjectiveValue = res.ObjectiveValue
	sum.Nodes = res.Nodes
	sum.SolveTime = res.Elapsed
	for _, id := range res.Unassigned {
		b.add(Finding{
			Severity: Info,
			Kind:     KindUnassigned,
			Trips:    []string{id},
			Message:  fmt.Sprintf("trip %s left unassigned: every bay would add conflicts costing more than leaving it", id),
		})
	}
	for _, block := range res.ContinuityBreaks {
		b.add(Finding{
			Severity: UnresolvedConflict,
			Kind:     KindContinuityBreak,
			Message:  fmt.Sprintf("block %s breaks the continuity rule", block),
		})
	}
	if res.LimitReached {
		b.add(Finding{
			Severity: Info,
			Kind:     KindSolverLimit,
			Message:  fmt.Sprintf("solver stopped at its limit after %d nodes; the assignment may be suboptimal", res.Nodes),
		})
	}
	b.solveInfeasible = b.solveInfeasible || !res.Feasible
	return b
}

// Mismatches records cluster mismatches.
func (b *Builder) Mismatches(ms []cluster.Mismatch) *Builder {
	b.rep.Summary.ClusterMismatches = len(ms)
	for _, m := range ms {
		b.add(Finding{
			Severity: ClusterMismatch,
			Kind:     KindClusterMismatch,
			BayID:    m.BayID,
			RouteID:  m.RouteID,
			Trips:    []string{m.TripID},
			Message: fmt.Sprintf("trip %s of route %s uses bay %s outside its cluster (%s)",
				m.TripID, m.RouteID, m.BayID, strings.Join(m.Allowed, ", ")),
		})
	}
	return b
}

// Undeclared records routes that could not be validated.
func (b *Builder) Undeclared(routes []string) *Builder {
	for _, r := range routes {
		b.add(Finding{
			Severity: Info,
			Kind:     KindUndeclaredCluster,
			RouteID:  r,
			Message:  fmt.Sprintf("route %s declares no cluster", r),
		})
	}
	return b
}

// Lint records cluster geometry remarks.
func (b *Builder) Lint(fs []cluster.LintFinding) *Builder {
	for _, f := range fs {
		msg := fmt.Sprintf("bay %s of cluster %s is %.0fm from its nearest member %s", f.BayID, f.ClusterID, f.Distance, f.Other)
		if f.Kind == cluster.NearbyOutsider {
			msg = fmt.Sprintf("bay %s lies %.0fm from bay %s of cluster %s but belongs to no cluster", f.BayID, f.Distance, f.Other, f.ClusterID)
		}
		b.add(Finding{Severity: Info, Kind: f.Kind, BayID: f.BayID, Message: msg})
	}
	return b
}

func (b *Builder) add(f Finding) {
	b.rep.Findings = append(b.rep.Findings, f)
}

// Build orders the findings and derives severity and exit code.
func (b *Builder) Build() Report {
	rep := b.rep
	rep.Findings = append([]Finding{}, b.rep.Findings...)
	sortFindings(rep.Findings)
	rep.Severity = Info
	for _, f := range rep.Findings {
		rep.Severity = max(rep.Severity, f.Severity)
	}
	rep.ExitCode = rep.Severity.ExitCode()
	rep.Summary.Feasible = b.audited && b.conflictFree && !b.solveInfeasible
	return rep
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.BayID != b.BayID {
			return a.BayID < b.BayID
		}
		if c := compareTrips(a.Trips, b.Trips); c != 0 {
			return c < 0
		}
		return a.Message < b.Message
	})
}

func compareTrips(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return strings.Compare(a[i], b[i])
		}
	}
	return len(a) - len(b)
}

// FromError turns a fatal error into a report, so aborted runs are still
// persisted. ok is false for errors outside the taxonomy.
func FromError(runID string, err error) (rep Report, ok bool) {
	b := NewBuilder(runID)
	var ce *model.ConfigurationError
	var de *model.DataError
	switch {
	case errors.As(err, &ce):
		b.add(Finding{Severity: InfeasibleConfiguration, Kind: KindConfigurationError, Message: ce.Error()})
		return b.Build(), true
	case errors.As(err, &de):
		b.add(Finding{Severity: InfeasibleConfiguration, Kind: KindDataError, Message: de.Error()})
		rep = b.Build()
		rep.ExitCode = ExitDataError
		return rep, true
	}
	return Report{}, false
}
