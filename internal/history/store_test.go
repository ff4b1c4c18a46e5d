package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/history"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.StartRun(ctx, history.Run{ID: "run-1", OutputDir: "/out", Folder: "Work"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.RecordStage(ctx, history.StageRecord{RunID: "run-1", Stage: "normalize", Success: true, Processed: 3, Succeeded: 2, Failed: 1, Duration: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}
	if err := store.RecordStage(ctx, history.StageRecord{RunID: "run-1", Stage: "submission", Detail: "credential invalid"}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if run == nil || run.Status != history.RunCompleted || run.Folder != "Work" || run.FinishedAt.IsZero() {
		t.Fatalf("unexpected run %#v", run)
	}
	if len(run.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(run.Stages))
	}
	first := run.Stages[0]
	if first.Stage != "normalize" || !first.Success || first.Failed != 1 || first.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected stage %#v", first)
	}
}

func TestRecordStageUpserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.StartRun(ctx, history.Run{ID: "run-2", OutputDir: "/out"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	for _, processed := range []int{1, 4} {
		if err := store.RecordStage(ctx, history.StageRecord{RunID: "run-2", Stage: "recognition", Processed: processed}); err != nil {
			t.Fatalf("RecordStage failed: %v", err)
		}
	}
	run, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(run.Stages) != 1 || run.Stages[0].Processed != 4 {
		t.Fatalf("expected single updated stage, got %#v", run.Stages)
	}
}

func TestFinishRunRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.StartRun(ctx, history.Run{ID: "run-3", OutputDir: "/out"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.FinishRun(ctx, "run-3", errors.New("export script failed")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	run, err := store.Get(ctx, "run-3")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if run.Status != history.RunFailed || run.Error != "export script failed" {
		t.Fatalf("unexpected run %#v", run)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.StartRun(ctx, history.Run{ID: id, OutputDir: "/out", StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("StartRun failed: %v", err)
		}
	}
	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("unexpected order %v", runs)
	}
	if runs[0].Status != history.RunRunning {
		t.Fatalf("expected running status, got %s", runs[0].Status)
	}
}

func TestGetMissingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	run, err := store.Get(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("expected nil run without error, got %v %v", run, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.StartRun(context.Background(), history.Run{ID: "persisted", OutputDir: "/out"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenHistory(t, cfg)
	run, err := reopened.Get(context.Background(), "persisted")
	if err != nil || run == nil {
		t.Fatalf("expected persisted run, got %v %v", run, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
