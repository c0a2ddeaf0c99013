package search_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"orthopipe/internal/config"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/scheduler"
	"orthopipe/internal/services/search"
	"orthopipe/internal/workdir"
)

type stubExecutor struct {
	exitCode int
	stdout   string
	stderr   string
	argv     []string
}

func (s *stubExecutor) Run(_ context.Context, argv []string) (int, []byte, []byte, error) {
	s.argv = argv
	return s.exitCode, []byte(s.stdout), []byte(s.stderr), nil
}

func diamondClient(t *testing.T, exec search.Executor) (*search.Client, *workdir.Layout) {
	t.Helper()
	table := config.BuildTable(nil)
	program, ok := table.SearchProgram("diamond")
	if !ok {
		t.Fatal("diamond missing from built-in table")
	}
	layout := workdir.NewLayout(t.TempDir())
	return search.NewClient(program, layout, logging.NewNop(), search.WithExecutor(exec)), layout
}

func TestDatabaseCommandRendersPaths(t *testing.T) {
	client, layout := diamondClient(t, &stubExecutor{})
	argv := client.DatabaseCommand(3)
	want := []string{
		"diamond", "makedb", "--ignore-warnings",
		"--in", layout.SpeciesFasta(3),
		"-d", layout.Database("diamond", 3),
	}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv = %v\nwant %v", argv, want)
	}
}

func TestSearchCommandUsesQueryFastaAndTargetDatabase(t *testing.T) {
	client, layout := diamondClient(t, &stubExecutor{})
	argv := client.SearchCommand(scheduler.WorkOrder{Query: 0, Target: 2})

	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, layout.SpeciesFasta(0)) {
		t.Fatalf("query fasta missing: %s", joined)
	}
	if !strings.Contains(joined, layout.Database("diamond", 2)) {
		t.Fatalf("target database missing: %s", joined)
	}
	if !strings.Contains(joined, filepath.Join(layout.Root(), "Blast0_2.txt")) {
		t.Fatalf("result path missing: %s", joined)
	}
}

func TestSearchJobsPreserveOrder(t *testing.T) {
	client, _ := diamondClient(t, &stubExecutor{})
	orders := []scheduler.WorkOrder{
		{Query: 1, Target: 1, Cost: 25},
		{Query: 0, Target: 1, Cost: 15},
	}
	jobs := client.SearchJobs(orders)
	if len(jobs) != 2 || jobs[0].Seq != 0 || jobs[1].Seq != 1 {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Order != orders[0] {
		t.Fatalf("order not preserved: %+v", jobs[0])
	}
}

func TestBuildDatabaseFailureCarriesCommandAndOutput(t *testing.T) {
	stub := &stubExecutor{exitCode: 1, stderr: "could not parse input"}
	client, _ := diamondClient(t, stub)

	err := client.BuildDatabase(context.Background(), 0)
	var toolErr *pipeline.ExternalToolFailure
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ExternalToolFailure, got %v", err)
	}
	if toolErr.ExitCode != 1 {
		t.Fatalf("exit code: %d", toolErr.ExitCode)
	}
	if !strings.Contains(toolErr.Command, "diamond makedb") {
		t.Fatalf("command not reported: %q", toolErr.Command)
	}
	if !strings.Contains(toolErr.Output, "could not parse input") {
		t.Fatalf("tool output not reported: %q", toolErr.Output)
	}
}

func TestBuildDatabaseSucceedsOnZeroExit(t *testing.T) {
	client, _ := diamondClient(t, &stubExecutor{stdout: "done"})
	if err := client.BuildDatabase(context.Background(), 0); err != nil {
		t.Fatalf("BuildDatabase: %v", err)
	}
}

func TestDatabaseGlob(t *testing.T) {
	table := config.BuildTable(nil)
	layout := workdir.NewLayout(t.TempDir())

	blast, _ := table.SearchProgram("blast")
	if g := search.NewClient(blast, layout, nil).DatabaseGlob(); g != "BlastDBSpecies*" {
		t.Fatalf("blast glob: %q", g)
	}
	diamond, _ := table.SearchProgram("diamond")
	if g := search.NewClient(diamond, layout, nil).DatabaseGlob(); g != "diamondDBSpecies*" {
		t.Fatalf("diamond glob: %q", g)
	}
}
