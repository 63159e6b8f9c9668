package domain

// OutcomeKind is the terminal state of one entry within a batch.
type OutcomeKind string

const (
	OutcomeSkipped        OutcomeKind = "skipped"
	OutcomeDownloaded     OutcomeKind = "downloaded"
	OutcomeDownloadFailed OutcomeKind = "download_failed"
	OutcomeExtracted      OutcomeKind = "extracted"
	OutcomeExtractFailed  OutcomeKind = "extract_failed"
)

// Failed returns true for the two failure outcomes.
func (k OutcomeKind) Failed() bool {
	return k == OutcomeDownloadFailed || k == OutcomeExtractFailed
}

// Outcome is the per-entry result. Err is set only for failures.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Reason returns the failure detail, or an empty string.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// EntryResult pairs an entry with its outcome. Size is the entry file's
// on-disk size after processing, 0 when no file is present.
type EntryResult struct {
	Entry   DatasetEntry
	Outcome Outcome
	Size    int64
}

// BatchReport holds one result per input entry, in input order.
type BatchReport struct {
	RunID      string
	TotalBytes int64
	BytesDone  int64
	Results    []EntryResult
}

// Failures returns the results whose outcome is a failure.
func (r *BatchReport) Failures() []EntryResult {
	var failed []EntryResult
	for _, res := range r.Results {
		if res.Outcome.Kind.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Count returns how many results ended in the given outcome.
func (r *BatchReport) Count(kind OutcomeKind) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Kind == kind {
			n++
		}
	}
	return n
}
