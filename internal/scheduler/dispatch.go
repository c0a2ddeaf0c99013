package scheduler

import (
	"context"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"orthopipe/internal/logging"
)

// Executor runs one external command to completion and reports its exit
// code and combined output. The error is reserved for failures to start
// the process at all; a non-zero exit is not an error here.
type Executor interface {
	Run(argv []string) (exitCode int, output []byte, err error)
}

type processExecutor struct{}

func (processExecutor) Run(argv []string) (int, []byte, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), output, nil
		}
		return -1, output, err
	}
	return 0, output, nil
}

// Job pairs a work order with the command line that performs it.
type Job struct {
	Seq   int
	Order WorkOrder
	Argv  []string
}

// Result records the outcome of one dispatched job.
type Result struct {
	Job      Job
	ExitCode int
	Output   string
	Err      error
	Duration time.Duration
}

// Failed reports whether the job did not complete successfully.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Pool dispatches jobs across a fixed number of concurrent workers.
// Workers pull from a shared queue, so the longest-job-first ordering
// established by BuildJobs keeps all of them busy until the tail of the
// batch.
type Pool struct {
	workers int
	logger  *slog.Logger
	exec    Executor
	batchID string
}

// Option configures a Pool.
type Option func(*Pool)

// WithExecutor replaces the process-spawning executor, for tests.
func WithExecutor(exec Executor) Option {
	return func(p *Pool) {
		p.exec = exec
	}
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int, logger *slog.Logger, opts ...Option) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pool{
		workers: workers,
		logger:  logger,
		exec:    processExecutor{},
		batchID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BatchID identifies this batch in logs and the run ledger.
func (p *Pool) BatchID() string {
	return p.batchID
}

// Dispatch runs every job and returns one result per job, ordered by
// job sequence. Individual failures are recorded, not fatal; the batch
// always runs to completion so the caller can report every failure at
// once. Cancellation is honored between jobs only: a worker checks the
// context before pulling the next job, and a job that has already
// started is left to finish rather than killed mid-write.
func (p *Pool) Dispatch(ctx context.Context, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	results := make([]Result, len(jobs))
	var mu sync.Mutex
	var done int

	logger := p.logger.With(logging.String("batch_id", p.batchID))
	logger.Info("dispatching search batch",
		logging.Int("jobs", len(jobs)),
		logging.Int("workers", p.workers))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				if err := ctx.Err(); err != nil {
					mu.Lock()
					results[job.Seq] = Result{Job: job, ExitCode: -1, Err: err}
					mu.Unlock()
					continue
				}

				start := time.Now()
				exitCode, output, err := p.exec.Run(job.Argv)
				res := Result{
					Job:      job,
					ExitCode: exitCode,
					Output:   string(output),
					Err:      err,
					Duration: time.Since(start),
				}

				mu.Lock()
				results[job.Seq] = res
				done++
				n := done
				mu.Unlock()

				attrs := []logging.Attr{
					logging.Int("task", n),
					logging.Int("of", len(jobs)),
					logging.Int("query", job.Order.Query),
					logging.Int("target", job.Order.Target),
					logging.Duration("duration", res.Duration),
				}
				if res.Failed() {
					attrs = append(attrs, logging.Int("exit_code", exitCode))
					if err != nil {
						attrs = append(attrs, logging.Error(err))
					}
					logger.Warn("search job failed", logging.Args(attrs...)...)
				} else {
					logger.Info("search job finished", logging.Args(attrs...)...)
				}
			}
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Job.Seq < results[j].Job.Seq
	})
	return results
}

// Failures filters the results down to the failed jobs.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}
