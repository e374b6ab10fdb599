package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bayplan/core/cluster"
	"github.com/kilianp07/bayplan/core/conflict"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
)

func fixedNow(t *testing.T) {
	t.Helper()
	old := now
	now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = old })
}

func TestSeverityOrderAndExitCodes(t *testing.T) {
	assert.Less(t, Info, ClusterMismatch)
	assert.Less(t, ClusterMismatch, UnresolvedConflict)
	assert.Less(t, UnresolvedConflict, InfeasibleConfiguration)
	assert.Equal(t, 0, Info.ExitCode())
	assert.Equal(t, 3, InfeasibleConfiguration.ExitCode())
	assert.Equal(t, "unresolved_conflict", UnresolvedConflict.String())

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("cluster_mismatch")))
	assert.Equal(t, ClusterMismatch, s)
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
}

func TestNewBuilder_DrawsRunID(t *testing.T) {
	a := NewBuilder("").Build()
	b := NewBuilder("").Build()
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, "fixed", NewBuilder("fixed").Build().RunID)
}

func TestBuild_EmptyReportIsClean(t *testing.T) {
	rep := NewBuilder("r").Build()
	assert.Equal(t, Info, rep.Severity)
	assert.Equal(t, 0, rep.ExitCode)
	assert.Empty(t, rep.Findings)
}

func TestBuild_OrdersFindingsAndTakesHighestSeverity(t *testing.T) {
	fixedNow(t)
	conflicts := []conflict.Conflict{
		{BayID: "bay2", TripA: "t3", TripB: "t4", Occupancy: 2, Capacity: 1},
		{BayID: "bay1", TripA: "t1", TripB: "t2", Occupancy: 2, Capacity: 1},
	}
	rep := NewBuilder("r1").
		Undeclared([]string{"Z"}).
		Mismatches([]cluster.Mismatch{{TripID: "t9", RouteID: "B", BayID: "bay3", Allowed: []string{"bay1"}}}).
		Final(model.Assignment{"t1": "bay1"}, conflict.Audit{Conflicts: conflicts, Pending: []string{"t7"}}, nil).
		Build()

	require.Len(t, rep.Findings, 5)
	kinds := make([]string, 0, len(rep.Findings))
	for _, f := range rep.Findings {
		kinds = append(kinds, f.Kind+"/"+f.BayID)
	}
	assert.Equal(t, []string{
		"conflict/bay1", "conflict/bay2",
		"cluster_mismatch/bay3",
		"pending/", "undeclared_cluster/",
	}, kinds)
	assert.Equal(t, UnresolvedConflict, rep.Severity)
	assert.Equal(t, 2, rep.ExitCode)
	assert.Equal(t, 2, rep.Summary.FinalConflicts)
	assert.Equal(t, 1, rep.Summary.ClusterMismatches)
	assert.False(t, rep.Summary.Feasible)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), rep.CreatedAt)
}

func TestBuild_MismatchOnlyExitsOne(t *testing.T) {
	rep := NewBuilder("r").
		Final(model.Assignment{"b1": "Bay3"}, conflict.Audit{}, nil).
		Mismatches([]cluster.Mismatch{{TripID: "b1", RouteID: "B", BayID: "Bay3"}}).
		Build()
	assert.Equal(t, ClusterMismatch, rep.Severity)
	assert.Equal(t, 1, rep.ExitCode)
	assert.True(t, rep.Summary.Feasible)
}

func TestBuild_BaselineComparison(t *testing.T) {
	base := model.Assignment{"t1": "bay1", "t2": "bay1"}
	final := model.Assignment{"t1": "bay1", "t2": "bay2"}
	rep := NewBuilder("r").
		Baseline(base, conflict.Audit{Conflicts: make([]conflict.Conflict, 1)}, map[string]int{"A": 120}).
		Final(final, conflict.Audit{}, map[string]int{}).
		Optimization(optimizer.Result{Feasible: true, Optimal: true, Nodes: 3}).
		Build()
	assert.Equal(t, 1, rep.Summary.BaselineConflicts)
	assert.Equal(t, 0, rep.Summary.FinalConflicts)
	assert.Equal(t, 1, rep.Summary.Moved)
	assert.Equal(t, map[string]int{"A": 120}, rep.Summary.BaselineExposure)
	assert.True(t, rep.Summary.Optimized)
	assert.True(t, rep.Summary.Optimal)
	assert.Equal(t, 0, rep.ExitCode)
}

func TestOptimization_UnassignedAndLimitAreInfo(t *testing.T) {
	rep := NewBuilder("r").
		Final(model.Assignment{}, conflict.Audit{}, nil).
		Optimization(optimizer.Result{
			Feasible:     true,
			LimitReached: true,
			Unassigned:   []string{"t2", "t1"},
		}).
		Build()
	assert.Equal(t, Info, rep.Severity)
	require.Len(t, rep.Findings, 3)
	assert.Equal(t, KindSolverLimit, rep.Findings[0].Kind)
	assert.Equal(t, []string{"t1"}, rep.Findings[1].Trips)
	assert.Equal(t, []string{"t2"}, rep.Findings[2].Trips)
	assert.True(t, rep.Summary.LimitReached)
}

func TestBuild_FeasibilityIgnoresCallOrder(t *testing.T) {
	broken := optimizer.Result{Feasible: false, ContinuityBreaks: []string{"blk"}}
	a := model.Assignment{"t1": "bay1"}

	rep := NewBuilder("r").Optimization(broken).Final(a, conflict.Audit{}, nil).Build()
	assert.False(t, rep.Summary.Feasible)
	assert.Equal(t, UnresolvedConflict, rep.Severity)

	rep = NewBuilder("r").Final(a, conflict.Audit{}, nil).Optimization(broken).Build()
	assert.False(t, rep.Summary.Feasible)

	rep = NewBuilder("r").Optimization(optimizer.Result{Feasible: true}).Final(a, conflict.Audit{}, nil).Build()
	assert.True(t, rep.Summary.Feasible)
}

func TestOptimization_ContinuityBreakIsUnresolved(t *testing.T) {
	rep := NewBuilder("r").
		Optimization(optimizer.Result{ContinuityBreaks: []string{"b1"}}).
		Build()
	assert.Equal(t, UnresolvedConflict, rep.Severity)
	assert.Contains(t, rep.Findings[0].Message, "block b1")
}

func TestLint_Messages(t *testing.T) {
	rep := NewBuilder("r").Lint([]cluster.LintFinding{
		{Kind: cluster.DistantMember, ClusterID: "east", BayID: "Bay5", Other: "Bay2", Distance: 880},
		{Kind: cluster.NearbyOutsider, ClusterID: "east", BayID: "Bay4", Other: "Bay2", Distance: 25},
	}).Build()
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, cluster.DistantMember, rep.Findings[0].Kind)
	assert.Contains(t, rep.Findings[0].Message, "880m")
	assert.Contains(t, rep.Findings[1].Message, "belongs to no cluster")
	assert.Equal(t, Info, rep.Severity)
}

func TestFromError(t *testing.T) {
	rep, ok := FromError("r", fmt.Errorf("optimize: %w", &model.ConfigurationError{Subject: "route Z", Reason: "trip z1 has no compatible bay"}))
	require.True(t, ok)
	assert.Equal(t, InfeasibleConfiguration, rep.Severity)
	assert.Equal(t, 3, rep.ExitCode)
	assert.Equal(t, KindConfigurationError, rep.Findings[0].Kind)
	assert.Contains(t, rep.Findings[0].Message, "route Z")

	rep, ok = FromError("r", &model.DataError{Record: "trip t1", Field: "arrival_time", Err: errors.New("bad time")})
	require.True(t, ok)
	assert.Equal(t, ExitDataError, rep.ExitCode)
	assert.Equal(t, KindDataError, rep.Findings[0].Kind)

	_, ok = FromError("r", errors.New("disk full"))
	assert.False(t, ok)
}

func TestReport_JSONUsesSeverityNames(t *testing.T) {
	rep := NewBuilder("r").Mismatches([]cluster.Mismatch{{TripID: "t", BayID: "b"}}).Build()
	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"severity":"cluster_mismatch"`)

	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, ClusterMismatch, back.Severity)
	assert.Equal(t, rep.Findings, back.Findings)
}
