package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/fetchdata/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    destination_dir TEXT NOT NULL,
    force           INTEGER NOT NULL DEFAULT 0,
    entries         INTEGER NOT NULL,
    total_bytes     INTEGER NOT NULL DEFAULT 0,
    bytes_done      INTEGER NOT NULL DEFAULT 0,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME
);
CREATE TABLE IF NOT EXISTS outcomes (
    run_id      TEXT NOT NULL REFERENCES runs(id),
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL,
    url         TEXT NOT NULL,
    kind        TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    reason      TEXT,
    recorded_at DATETIME NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Repository implements domain.RunRecorder and domain.RunStore using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// StartRun inserts the run row.
func (r *Repository) StartRun(ctx context.Context, runID string, req domain.BatchRequest, totalBytes int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, destination_dir, force, entries, total_bytes, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, req.DestinationDir, req.Force, len(req.Entries), totalBytes, time.Now(),
	)
	return err
}

// RecordResult stores one entry outcome.
func (r *Repository) RecordResult(ctx context.Context, runID string, position int, res domain.EntryResult) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, position, name, url, kind, outcome, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, position, res.Entry.Name, res.Entry.URL, string(res.Entry.Kind),
		string(res.Outcome.Kind), res.Outcome.Reason(), time.Now(),
	)
	return err
}

// FinishRun stamps the run with its final byte count.
func (r *Repository) FinishRun(ctx context.Context, report *domain.BatchReport) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET bytes_done = ?, finished_at = ? WHERE id = ?`,
		report.BytesDone, time.Now(), report.RunID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run and its outcomes by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, destination_dir, force, entries, total_bytes, bytes_done, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadOutcomes(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recently started run.
func (r *Repository) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, destination_dir, force, entries, total_bytes, bytes_done, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadOutcomes(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *Repository) loadOutcomes(ctx context.Context, run *domain.RunRecord) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT position, name, url, kind, outcome, COALESCE(reason, ''), recorded_at
		 FROM outcomes WHERE run_id = ? ORDER BY position ASC`, run.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.OutcomeRecord
		var kind, outcome string
		if err := rows.Scan(&rec.Position, &rec.Name, &rec.URL, &kind, &outcome, &rec.Reason, &rec.RecordedAt); err != nil {
			return err
		}
		rec.Kind = domain.ContentKind(kind)
		rec.Outcome = domain.OutcomeKind(outcome)
		run.Outcomes = append(run.Outcomes, rec)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.DestinationDir, &run.Force, &run.Entries,
		&run.TotalBytes, &run.BytesDone, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
