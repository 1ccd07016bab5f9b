// Package runlog records one ledger row per finished crawl or dedupe run.
package runlog

import (
	"context"
	"time"
)

// Commands recorded in the ledger.
const (
	CommandCrawl  = "crawl"
	CommandDedupe = "dedupe"
)

// Run describes a finished run and the dataset it produced.
type Run struct {
	ID          string
	Command     string
	StartPage   int
	EndPage     int
	Pages       int
	Records     int
	Fetches     int
	StartedAt   time.Time
	FinishedAt  time.Time
	DatasetPath string
	DatasetHash string
	BlobURI     string
	// Error is empty for runs that completed cleanly.
	Error string
}

// Ledger stores run rows.
type Ledger interface {
	RecordRun(ctx context.Context, run Run) error
}

// NoopLedger drops every row.
type NoopLedger struct{}

// RecordRun does nothing.
func (NoopLedger) RecordRun(context.Context, Run) error {
	return nil
}
