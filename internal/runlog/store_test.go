package runlog_test

import (
	"context"
	"testing"
	"time"

	"orthopipe/internal/runlog"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", "prepare", "orthologues", true, 3); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.RecordJob(ctx, "run-1", 0, 1, 15, 0, 2*time.Second, ""); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := store.RecordJob(ctx, "run-1", 1, 0, 15, 2, time.Second, "scripted failure"); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "partial"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	failures, err := store.FailedJobs(ctx, "run-1")
	if err != nil {
		t.Fatalf("FailedJobs: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures: %+v", failures)
	}
	got := failures[0]
	if got.Query != 1 || got.Target != 0 || got.ExitCode != 2 || got.Detail != "scripted failure" {
		t.Fatalf("failure record: %+v", got)
	}
}

func TestRecordJobReplacesRetries(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", "search", "search", false, 2); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordJob(ctx, "run-1", 0, 0, 9, 1, time.Second, "first attempt"); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordJob(ctx, "run-1", 0, 0, 9, 0, time.Second, ""); err != nil {
		t.Fatal(err)
	}

	failures, err := store.FailedJobs(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 0 {
		t.Fatalf("retried job still recorded as failed: %+v", failures)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := runlog.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.StartRun(context.Background(), "run-1", "prepare", "search", true, 2); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := runlog.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	failures, err := second.FailedJobs(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("reopened ledger unreadable: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}
