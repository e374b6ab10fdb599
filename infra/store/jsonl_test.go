package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/report"
)

func rep(id string, at time.Time, sev report.Severity, label string) report.Report {
	return report.Report{
		RunID:      id,
		CreatedAt:  at,
		Label:      label,
		Severity:   sev,
		ExitCode:   sev.ExitCode(),
		Findings:   []report.Finding{{Severity: sev, Kind: "k", Message: "m"}},
		Assignment: model.Assignment{"t1": "bay1"},
	}
}

func TestJSONLStore_AppendQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	s, err := NewJSONLStore(path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, rep("r1", t0, report.Info, "")))
	require.NoError(t, s.Append(ctx, rep("r2", t0.Add(time.Hour), report.UnresolvedConflict, "spread")))
	require.NoError(t, s.Append(ctx, rep("r3", t0.Add(2*time.Hour), report.ClusterMismatch, "")))

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.Assignment{"t1": "bay1"}, all[0].Assignment)
	assert.True(t, all[1].CreatedAt.Equal(t0.Add(time.Hour)))

	byRun, err := s.Query(ctx, Query{RunID: "r2"})
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, report.UnresolvedConflict, byRun[0].Severity)
	assert.Equal(t, "spread", byRun[0].Label)

	since, err := s.Query(ctx, Query{Since: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	window, err := s.Query(ctx, Query{Since: t0, Until: t0.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, window, 1)

	severe, err := s.Query(ctx, Query{MinSeverity: report.ClusterMismatch})
	require.NoError(t, err)
	assert.Len(t, severe, 2)

	last, err := s.Query(ctx, Query{Last: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "r3", last[0].RunID)
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	s, err := NewJSONLStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, rep("r1", time.Now(), report.Info, "")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(ctx, rep("r2", time.Now(), report.Info, "")))

	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJSONLStore_CancelledContext(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "r.jsonl"), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Append(ctx, report.Report{}), context.Canceled)
}

func TestNewJSONLStore_BadPath(t *testing.T) {
	_, err := NewJSONLStore(filepath.Join(t.TempDir(), "missing", "r.jsonl"), nil)
	assert.Error(t, err)
}
