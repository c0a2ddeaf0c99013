// Package msa runs the per-orthogroup alignment and tree-inference
// programs. Both share the same shape, a single command template over
// one input and one output, so one runner serves both kinds.
package msa

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"orthopipe/internal/config"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
)

// Executor runs one external command, keeping stdout apart from stderr
// so stdout-producing tools can be captured to their output file.
type Executor interface {
	Run(ctx context.Context, argv []string) (exitCode int, stdout, stderr []byte, err error)
}

type processExecutor struct{}

func (processExecutor) Run(ctx context.Context, argv []string) (int, []byte, []byte, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
		}
		return -1, stdout.Bytes(), stderr.Bytes(), err
	}
	return 0, stdout.Bytes(), stderr.Bytes(), nil
}

// Runner executes one analysis program over orthogroup files.
type Runner struct {
	program config.Program
	logger  *slog.Logger
	exec    Executor
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor replaces the process-spawning executor, for tests.
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		r.exec = exec
	}
}

// NewRunner creates a runner for the given alignment or tree program.
func NewRunner(program config.Program, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		program: program,
		logger:  logging.NewComponentLogger(logger, "analysis"),
		exec:    processExecutor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Command renders the program argv for one input/output pair.
func (r *Runner) Command(input, output string) []string {
	return config.Render(r.program.Template, config.TemplateArgs{
		Input:   input,
		Output:  output,
		Threads: "1",
	})
}

// Run executes the program over input, producing output. Programs that
// write to stdout have their stdout captured into the output file; the
// rest are expected to write the output path named in their template.
func (r *Runner) Run(ctx context.Context, input, output string) error {
	argv := r.Command(input, output)
	command := strings.Join(argv, " ")

	exitCode, stdout, stderr, err := r.exec.Run(ctx, argv)
	if err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	if exitCode != 0 {
		return &pipeline.ExternalToolFailure{
			Command:  command,
			ExitCode: exitCode,
			Output:   string(stderr),
		}
	}
	if r.program.ToStdout {
		if err := os.WriteFile(output, stdout, 0o644); err != nil {
			return fmt.Errorf("capture %s output: %w", r.program.Name, err)
		}
	}
	return nil
}
