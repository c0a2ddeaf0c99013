// Package search wraps the configured sequence-search engine: database
// construction for each species and the command lines for the pairwise
// search jobs.
package search

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"orthopipe/internal/config"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/scheduler"
	"orthopipe/internal/workdir"
)

// makeblastdb normally prints a short fixed banner. More output than
// this, or anything on stderr, usually means it choked on the input.
const maxExpectedDBOutputLines = 12

// Executor runs one external command and reports its streams
// separately. Stdout and stderr stay apart because the database sanity
// check treats them differently.
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

// Client renders and runs commands for one search program variant.
type Client struct {
	program config.Program
	layout  *workdir.Layout
	logger  *slog.Logger
	exec    Executor
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor replaces the process-spawning executor, for tests.
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		c.exec = exec
	}
}

// NewClient creates a search client for the given program variant.
func NewClient(program config.Program, layout *workdir.Layout, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		program: program,
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "search"),
		exec:    processExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DatabaseCommand renders the database-construction argv for a species.
func (c *Client) DatabaseCommand(speciesID int) []string {
	return config.Render(c.program.DBTemplate, config.TemplateArgs{
		Input:    c.layout.SpeciesFasta(speciesID),
		Database: c.layout.Database(c.program.Name, speciesID),
		Scratch:  c.layout.ScratchDir(),
		Threads:  "1",
	})
}

// SearchCommand renders the pairwise search argv for a work order. The
// query species supplies the FASTA input, the target species the
// database, and the output path is the deterministic result filename
// for the pair.
func (c *Client) SearchCommand(order scheduler.WorkOrder) []string {
	return config.Render(c.program.SearchTemplate, config.TemplateArgs{
		Input:    c.layout.SpeciesFasta(order.Query),
		Database: c.layout.Database(c.program.Name, order.Target),
		Output:   c.layout.ResultFile(order.Query, order.Target),
		Scratch:  c.layout.ScratchDir(),
		Threads:  "1",
	})
}

// SearchJobs turns scheduled work orders into dispatchable jobs.
func (c *Client) SearchJobs(orders []scheduler.WorkOrder) []scheduler.Job {
	jobs := make([]scheduler.Job, len(orders))
	for i, order := range orders {
		jobs[i] = scheduler.Job{Seq: i, Order: order, Argv: c.SearchCommand(order)}
	}
	return jobs
}

// BuildDatabase constructs the search database for one species. A
// non-zero exit is an ExternalToolFailure carrying the command and its
// output. For the BLAST+ toolchain, suspicious-but-zero-exit output is
// logged as a warning with the full command and output, since
// makeblastdb has been known to report input problems without failing.
func (c *Client) BuildDatabase(ctx context.Context, speciesID int) error {
	argv := c.DatabaseCommand(speciesID)
	command := strings.Join(argv, " ")
	c.logger.Info("building search database",
		logging.Int("species", speciesID),
		logging.String("program", c.program.Name))

	exitCode, stdout, stderr, err := c.exec.Run(ctx, argv)
	if err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	if exitCode != 0 {
		return &pipeline.ExternalToolFailure{
			Command:  command,
			ExitCode: exitCode,
			Output:   string(stdout) + string(stderr),
		}
	}

	if c.program.BlastHeuristics {
		lines := strings.Count(strings.TrimRight(string(stdout), "\n"), "\n") + 1
		if lines > maxExpectedDBOutputLines || len(bytes.TrimSpace(stderr)) > 0 {
			c.logger.Warn("database construction produced unexpected output, check the input FASTA",
				logging.String("command", command),
				logging.String("stdout", string(stdout)),
				logging.String("stderr", string(stderr)))
		}
	}
	return nil
}

// DatabaseGlob returns the glob matching this program's database files,
// used by scratch cleanup after the search batch.
func (c *Client) DatabaseGlob() string {
	prefix := c.program.Name
	if c.program.Name == "blast" || c.program.Name == "blast_nucl" {
		prefix = "Blast"
	}
	return prefix + "DBSpecies*"
}
