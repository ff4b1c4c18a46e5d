package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StartRun inserts run with status running.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("history: run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, started_at, output_dir, folder, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.OutputDir, run.Folder, string(RunRunning),
	)
}

// RecordStage upserts the outcome of one stage.
func (s *Store) RecordStage(ctx context.Context, rec StageRecord) error {
	if rec.RunID == "" || rec.Stage == "" {
		return errors.New("history: run id and stage are required")
	}
	return s.exec(ctx,
		`INSERT INTO stage_results
			(run_id, stage, success, processed, succeeded, failed, detail, error_message, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
			success = excluded.success,
			processed = excluded.processed,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			detail = excluded.detail,
			error_message = excluded.error_message,
			duration_ms = excluded.duration_ms,
			recorded_at = excluded.recorded_at`,
		rec.RunID, rec.Stage, boolToInt(rec.Success), rec.Processed, rec.Succeeded, rec.Failed,
		rec.Detail, rec.Error, rec.Duration.Milliseconds(), time.Now().UTC().Format(timeLayout),
	)
}

// FinishRun stamps the final status. A non-nil runErr marks the run failed.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, message := RunCompleted, ""
	if runErr != nil {
		status, message = RunFailed, runErr.Error()
	}
	return s.exec(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), string(status), message, id,
	)
}

// Recent returns up to limit runs, newest first, with their stages.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, folder, status, error_message
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

// Get returns one run, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, folder, status, error_message FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.Stages, err = s.stages(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, success, processed, succeeded, failed, detail, error_message, duration_ms
		 FROM stage_results WHERE run_id = ? ORDER BY recorded_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []StageRecord
	for rows.Next() {
		rec := StageRecord{RunID: runID}
		var success int
		var durationMS int64
		if err := rows.Scan(&rec.Stage, &success, &rec.Processed, &rec.Succeeded, &rec.Failed, &rec.Detail, &rec.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		rec.Success = success != 0
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		stages = append(stages, rec)
	}
	return stages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		status     string
	)
	if err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.OutputDir, &run.Folder, &status, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	if finishedAt.Valid {
		run.FinishedAt, _ = time.Parse(timeLayout, finishedAt.String)
	}
	return run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
