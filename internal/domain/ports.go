package domain

import "context"

// Progress is the narrow update contract handed to fetchers and unpackers.
type Progress interface {
	Add(n int64)
	SetLabel(label string)
}

// ProgressTracker is the per-batch progress state owned by BatchService.
type ProgressTracker interface {
	Progress
	Finish()
}

// ProgressReporter creates a fresh tracker for each batch.
type ProgressReporter interface {
	Begin(totalBytes int64) ProgressTracker
}

// SizeProber discovers an entry's expected size without fetching the body.
type SizeProber interface {
	ContentLength(ctx context.Context, url string) (int64, error)
}

// Fetcher is the driven port for streaming a remote resource to disk.
// Implementations report written bytes through p and never retry.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, p Progress) error
}

// Unpacker is the driven port for archive extraction.
type Unpacker interface {
	Unpack(ctx context.Context, archive, destDir string, p Progress) error
}

// RunRecorder observes a batch run. Recorder errors never abort a batch.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, req BatchRequest, totalBytes int64) error
	RecordResult(ctx context.Context, runID string, position int, res EntryResult) error
	FinishRun(ctx context.Context, report *BatchReport) error
}
