package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BatchService orchestrates one download-and-extract batch at a time.
type BatchService struct {
	prober    SizeProber
	fetcher   Fetcher
	unpacker  Unpacker
	reporter  ProgressReporter
	recorders []RunRecorder
}

// NewBatchService creates a new BatchService.
func NewBatchService(prober SizeProber, fetcher Fetcher, unpacker Unpacker, reporter ProgressReporter, recorders ...RunRecorder) *BatchService {
	return &BatchService{
		prober:    prober,
		fetcher:   fetcher,
		unpacker:  unpacker,
		reporter:  reporter,
		recorders: recorders,
	}
}

// Run processes every entry of req sequentially, in order. Per-entry
// failures are recorded in the report; only a failure to create the
// destination directory returns an error.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	if err := os.MkdirAll(req.DestinationDir, 0755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}

	entries := make([]DatasetEntry, len(req.Entries))
	for i, e := range req.Entries {
		if e.Kind == "" {
			e.Kind = KindOf(e.Name)
		}
		entries[i] = e
	}
	req.Entries = entries

	report := &BatchReport{
		RunID:      uuid.NewString(),
		TotalBytes: s.planSize(ctx, entries),
		Results:    make([]EntryResult, 0, len(entries)),
	}
	log.Printf("run %s: %d entries, %d bytes expected, destination %s",
		report.RunID, len(entries), report.TotalBytes, req.DestinationDir)

	// Recording outlives cancellation so an interrupted batch is still logged.
	recCtx := context.WithoutCancel(ctx)
	for _, rec := range s.recorders {
		if err := rec.StartRun(recCtx, report.RunID, req, report.TotalBytes); err != nil {
			log.Printf("run %s: start record failed: %v", report.RunID, err)
		}
	}

	tracker := s.reporter.Begin(report.TotalBytes)
	progress := &countingProgress{Progress: tracker}

	for i, entry := range entries {
		res := EntryResult{Entry: entry, Outcome: s.processEntry(ctx, req, entry, progress)}
		if info, err := os.Stat(filepath.Join(req.DestinationDir, entry.Name)); err == nil && info.Mode().IsRegular() {
			res.Size = info.Size()
		}
		report.Results = append(report.Results, res)
		log.Printf("entry %s: %s", entry.Name, describe(res.Outcome))

		for _, rec := range s.recorders {
			if err := rec.RecordResult(recCtx, report.RunID, i, res); err != nil {
				log.Printf("run %s: record %s failed: %v", report.RunID, entry.Name, err)
			}
		}
	}

	report.BytesDone = progress.n
	tracker.Finish()

	for _, rec := range s.recorders {
		if err := rec.FinishRun(recCtx, report); err != nil {
			log.Printf("run %s: finish record failed: %v", report.RunID, err)
		}
	}
	log.Println("All downloads and extractions completed!")
	return report, nil
}

// planSize sums the advertised sizes of all entries. Unknown sizes count as 0.
func (s *BatchService) planSize(ctx context.Context, entries []DatasetEntry) int64 {
	var total int64
	for _, e := range entries {
		n, err := s.prober.ContentLength(ctx, e.URL)
		if err != nil {
			log.Printf("entry %s: %v", e.Name, err)
			continue
		}
		total += n
	}
	return total
}

func (s *BatchService) processEntry(ctx context.Context, req BatchRequest, entry DatasetEntry, p Progress) Outcome {
	path := filepath.Join(req.DestinationDir, entry.Name)

	if !req.Force {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			p.SetLabel(fmt.Sprintf("Skipping %s: File already exists", entry.Name))
			p.Add(info.Size())
			return Outcome{Kind: OutcomeSkipped}
		}
	}

	p.SetLabel("Downloading " + entry.Name)
	if err := s.fetcher.Fetch(ctx, entry.URL, path, p); err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Name: entry.Name, URL: entry.URL, Err: err}
		}
		return Outcome{Kind: OutcomeDownloadFailed, Err: err}
	}

	if !entry.Kind.IsArchive() {
		return Outcome{Kind: OutcomeDownloaded}
	}

	p.SetLabel("Extracting " + entry.Name)
	if err := s.unpacker.Unpack(ctx, path, req.DestinationDir, p); err != nil {
		var ue *UnpackError
		if !errors.As(err, &ue) {
			err = &UnpackError{Archive: entry.Name, Err: err}
		}
		return Outcome{Kind: OutcomeExtractFailed, Err: err}
	}
	return Outcome{Kind: OutcomeExtracted}
}

func describe(o Outcome) string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
	return string(o.Kind)
}

// countingProgress tallies bytes for the report while forwarding to the tracker.
type countingProgress struct {
	Progress
	n int64
}

func (c *countingProgress) Add(n int64) {
	c.n += n
	c.Progress.Add(n)
}
