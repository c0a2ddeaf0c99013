// Package mcl drives the Markov clustering engine that turns the
// similarity graph into orthogroup clusters.
package mcl

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/workdir"
)

// Executor runs the clustering command to completion.
type Executor interface {
	Run(ctx context.Context, argv []string) (exitCode int, output []byte, err error)
}

type processExecutor struct{}

func (processExecutor) Run(ctx context.Context, argv []string) (int, []byte, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), combined.Bytes(), nil
		}
		return -1, combined.Bytes(), err
	}
	return 0, combined.Bytes(), nil
}

// Client wraps one clustering engine binary.
type Client struct {
	command string
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

// NewClient creates a clustering client for the given binary name.
func NewClient(command string, layout *workdir.Layout, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		command: command,
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "mcl"),
		exec:    processExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command renders the clustering argv for the given inflation and
// thread count.
func (c *Client) Command(inflation float64, threads int) []string {
	return []string{
		c.command,
		c.layout.GraphFile(),
		"--abc",
		"-I", strconv.FormatFloat(inflation, 'f', 1, 64),
		"-o", c.layout.ClustersFile(inflation),
		"-te", strconv.Itoa(threads),
		"-V", "all",
	}
}

// Cluster runs the clustering engine over the similarity graph and
// returns the clusters file path.
func (c *Client) Cluster(ctx context.Context, inflation float64, threads int) (string, error) {
	argv := c.Command(inflation, threads)
	command := strings.Join(argv, " ")
	c.logger.Info("clustering similarity graph",
		logging.Float64("inflation", inflation),
		logging.Int("threads", threads))

	exitCode, output, err := c.exec.Run(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("run %q: %w", command, err)
	}
	if exitCode != 0 {
		return "", &pipeline.ExternalToolFailure{
			Command:  command,
			ExitCode: exitCode,
			Output:   string(output),
		}
	}
	return c.layout.ClustersFile(inflation), nil
}
