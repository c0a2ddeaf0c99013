package msa_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orthopipe/internal/config"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/services/msa"
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

func program(t *testing.T, lookup func(*config.Table) (config.Program, bool)) config.Program {
	t.Helper()
	p, ok := lookup(config.BuildTable(nil))
	if !ok {
		t.Fatal("program missing from built-in table")
	}
	return p
}

func TestRunCapturesStdoutPrograms(t *testing.T) {
	mafft := program(t, func(tb *config.Table) (config.Program, bool) { return tb.MSAProgram("mafft") })
	stub := &stubExecutor{stdout: ">0_0\nMST-AVLE\n"}
	runner := msa.NewRunner(mafft, logging.NewNop(), msa.WithExecutor(stub))

	output := filepath.Join(t.TempDir(), "OG0000000.aln")
	if err := runner.Run(context.Background(), "in.fa", output); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stub.stdout {
		t.Fatalf("captured output: %q", data)
	}
	// The stdout-writing template must not have an {output} placeholder
	// left unrendered.
	if strings.Contains(strings.Join(stub.argv, " "), "{output}") {
		t.Fatalf("unrendered placeholder in argv: %v", stub.argv)
	}
}

func TestRunFilePrograms(t *testing.T) {
	muscle := program(t, func(tb *config.Table) (config.Program, bool) { return tb.MSAProgram("muscle") })
	stub := &stubExecutor{}
	runner := msa.NewRunner(muscle, logging.NewNop(), msa.WithExecutor(stub))

	output := filepath.Join(t.TempDir(), "OG0000001.aln")
	if err := runner.Run(context.Background(), "in.fa", output); err != nil {
		t.Fatalf("Run: %v", err)
	}
	joined := strings.Join(stub.argv, " ")
	if !strings.Contains(joined, output) {
		t.Fatalf("output path missing from argv: %s", joined)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatal("runner must not overwrite a file-writing program's output")
	}
}

func TestRunTreeProgram(t *testing.T) {
	fasttree := program(t, func(tb *config.Table) (config.Program, bool) { return tb.TreeProgram("fasttree") })
	stub := &stubExecutor{stdout: "(A:0.1,B:0.2);\n"}
	runner := msa.NewRunner(fasttree, logging.NewNop(), msa.WithExecutor(stub))

	output := filepath.Join(t.TempDir(), "OG0000000_tree.txt")
	if err := runner.Run(context.Background(), "in.aln", output); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(data)), ";") {
		t.Fatalf("tree output: %q", data)
	}
}

func TestRunFailureCarriesStderr(t *testing.T) {
	mafft := program(t, func(tb *config.Table) (config.Program, bool) { return tb.MSAProgram("mafft") })
	stub := &stubExecutor{exitCode: 1, stderr: "cannot open in.fa"}
	runner := msa.NewRunner(mafft, logging.NewNop(), msa.WithExecutor(stub))

	err := runner.Run(context.Background(), "in.fa", filepath.Join(t.TempDir(), "out"))
	var toolErr *pipeline.ExternalToolFailure
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ExternalToolFailure, got %v", err)
	}
	if !strings.Contains(toolErr.Output, "cannot open") {
		t.Fatalf("stderr not reported: %q", toolErr.Output)
	}
}
