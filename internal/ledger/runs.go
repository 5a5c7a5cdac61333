package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // committed, some transcripts failed
	StatusFailed  = "failed"
)

// Run is one recorded sync invocation.
type Run struct {
	ID          string
	Channel     string
	ArchivePath string
	Source      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Seen        int
	Skipped     int
	Appended    int
	DryRun      bool
	Status      string
	Error       string
	Failures    []Failure
}

// Failure is a transcript that could not be retrieved during a run.
type Failure struct {
	VideoID string
	Title   string
	Kind    string
	Reason  string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun inserts run and its failures. An empty ID is filled in.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, channel, archive_path, source, started_at, finished_at,
		seen, skipped, appended, dry_run, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Channel, run.ArchivePath, run.Source,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.Seen, run.Skipped, run.Appended, run.DryRun, run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("ledger: insert run: %w", err)
	}

	for i, f := range run.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_failures (run_id, position, video_id, title, kind, reason)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, f.VideoID, f.Title, f.Kind, f.Reason)
		if err != nil {
			return fmt.Errorf("ledger: insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first, with their failures.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, channel, archive_path, source, started_at, finished_at,
		seen, skipped, appended, dry_run, status, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Channel, &r.ArchivePath, &r.Source, &started, &finished,
			&r.Seen, &r.Skipped, &r.Appended, &r.DryRun, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		failures, err := s.failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

func (s *Store) failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT video_id, title, kind, reason FROM run_failures
		WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.VideoID, &f.Title, &f.Kind, &f.Reason); err != nil {
			return nil, fmt.Errorf("ledger: scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
