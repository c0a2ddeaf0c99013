package workflow

import (
	"context"
	"log/slog"
	"sync"

	"orthopipe/internal/logging"
	"orthopipe/internal/services/msa"
)

// Groups below these sizes are skipped: an alignment needs at least two
// sequences, an unrooted tree at least four.
const (
	minAlignSize = 2
	minTreeSize  = 4
)

type analysisTask struct {
	group  string
	input  string
	output string
}

// runAnalysis fans the per-group tasks over a bounded worker pool, the
// same shape as the search dispatch: a pre-seeded closed channel, one
// external process per worker, failures counted rather than fatal, and
// cancellation honored between tasks only.
func runAnalysis(ctx context.Context, runner *msa.Runner, tasks []analysisTask, workers int, logger *slog.Logger, stage string) int {
	if len(tasks) == 0 {
		return 0
	}
	if workers < 1 {
		workers = 1
	}

	queue := make(chan analysisTask, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	var failed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				if err := runner.Run(ctx, task.input, task.output); err != nil {
					logger.Warn(stage+" failed",
						logging.String("group", task.group),
						logging.Error(err))
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return failed
}
