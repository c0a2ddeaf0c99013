package preflight_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orthopipe/internal/config"
	"orthopipe/internal/deps"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/preflight"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if err := preflight.CheckDirectoryAccess(dir); err != nil {
		t.Fatalf("accessible directory rejected: %v", err)
	}

	err := preflight.CheckDirectoryAccess(filepath.Join(dir, "absent"))
	var inputErr *pipeline.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestCheckDirectoryAccessRejectsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := preflight.CheckDirectoryAccess(path); err == nil {
		t.Fatal("plain file accepted as directory")
	}
}

func TestCheckDirectoryAccessUnwritable(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	err := preflight.CheckDirectoryAccess(dir)
	var inputErr *pipeline.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for unwritable directory, got %v", err)
	}
}

func TestCheckSearchStackReportsAllMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Search.Program = "blast"
	cfg.Cluster.Program = "definitely-not-a-binary"
	table := config.BuildTable(cfg)
	t.Setenv("PATH", t.TempDir())

	err := preflight.CheckSearchStack(cfg, table, deps.Needs{Search: true, Cluster: true}, logging.NewNop())
	var inputErr *pipeline.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	for _, name := range []string{"makeblastdb", "blastp", "definitely-not-a-binary"} {
		if !strings.Contains(inputErr.Msg, name) {
			t.Fatalf("missing binary %q not listed in:\n%s", name, inputErr.Msg)
		}
	}
}

func TestCheckFileDescriptorsSmallRun(t *testing.T) {
	if err := preflight.CheckFileDescriptors(t.TempDir(), 3); err != nil {
		t.Fatalf("small probe should pass: %v", err)
	}
}

func TestCheckFileDescriptorsCleansProbeFiles(t *testing.T) {
	scratch := t.TempDir()
	if err := preflight.CheckFileDescriptors(scratch, 2); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("probe files left behind: %v", entries)
	}
}
