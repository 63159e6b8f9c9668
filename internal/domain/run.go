package domain

import (
	"context"
	"time"
)

// RunRecord is a persisted batch run and its recorded outcomes.
type RunRecord struct {
	ID             string
	DestinationDir string
	Force          bool
	Entries        int
	TotalBytes     int64
	BytesDone      int64
	StartedAt      time.Time
	FinishedAt     *time.Time
	Outcomes       []OutcomeRecord
}

// OutcomeRecord is one entry's persisted outcome.
type OutcomeRecord struct {
	Position   int
	Name       string
	URL        string
	Kind       ContentKind
	Outcome    OutcomeKind
	Reason     string
	RecordedAt time.Time
}

// RunStore is the driven port for reading the run ledger.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	LatestRun(ctx context.Context) (*RunRecord, error)
}
