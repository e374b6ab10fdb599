// Package store persists analysis reports. The report history is the only
// artefact the engine keeps between runs.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/bayplan/core/report"
)

// Query filters stored reports. Zero fields match everything.
type Query struct {
	RunID string
	// Since and Until bound the report creation time, both inclusive.
	Since time.Time
	Until time.Time
	Label string
	// MinSeverity drops reports below this severity.
	MinSeverity report.Severity
	// Last keeps only the most recent matches when positive.
	Last int
}

func (q Query) match(r report.Report) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && r.CreatedAt.After(q.Until) {
		return false
	}
	if q.Label != "" && r.Label != q.Label {
		return false
	}
	return r.Severity >= q.MinSeverity
}

// ReportStore persists reports and supports querying.
type ReportStore interface {
	Append(ctx context.Context, rep report.Report) error
	Query(ctx context.Context, q Query) ([]report.Report, error)
	Close() error
}
