package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"orthopipe/internal/config"
	"orthopipe/internal/deps"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/preflight"
	"orthopipe/internal/report"
	"orthopipe/internal/resume"
	"orthopipe/internal/runlog"
	"orthopipe/internal/scheduler"
	"orthopipe/internal/services/mcl"
	"orthopipe/internal/services/msa"
	"orthopipe/internal/services/search"
	"orthopipe/internal/species"
	"orthopipe/internal/workdir"
)

// Controller drives one run from its entry stage to its exit stage. All
// state it accumulates (layout, species set, ledger) lives for exactly
// one Run call; nothing is shared between invocations.
type Controller struct {
	cfg    *config.Config
	table  *config.Table
	opts   Options
	logger *slog.Logger
	stdout io.Writer

	searchExec search.Executor
	batchExec  scheduler.Executor
	mclExec    mcl.Executor
	msaExec    msa.Executor

	skipBinaryCheck bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithStdout redirects the printed summaries and prepared command list.
func WithStdout(w io.Writer) ControllerOption {
	return func(c *Controller) { c.stdout = w }
}

// WithSearchExecutor replaces the database-build executor, for tests.
func WithSearchExecutor(e search.Executor) ControllerOption {
	return func(c *Controller) { c.searchExec = e }
}

// WithBatchExecutor replaces the search-job executor, for tests.
func WithBatchExecutor(e scheduler.Executor) ControllerOption {
	return func(c *Controller) { c.batchExec = e }
}

// WithClusterExecutor replaces the clustering executor, for tests.
func WithClusterExecutor(e mcl.Executor) ControllerOption {
	return func(c *Controller) { c.mclExec = e }
}

// WithAnalysisExecutor replaces the alignment/tree executor, for tests.
func WithAnalysisExecutor(e msa.Executor) ControllerOption {
	return func(c *Controller) { c.msaExec = e }
}

// WithoutBinaryCheck disables the PATH availability probe, for tests
// whose executors never spawn anything.
func WithoutBinaryCheck() ControllerOption {
	return func(c *Controller) { c.skipBinaryCheck = true }
}

// New creates a controller for one configured run.
func New(cfg *config.Config, opts Options, logger *slog.Logger, ctrlOpts ...ControllerOption) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		cfg:    cfg,
		table:  config.BuildTable(cfg),
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "workflow"),
		stdout: os.Stdout,
	}
	for _, opt := range ctrlOpts {
		opt(c)
	}
	return c
}

// Run executes the planned stages in order. It returns nil only when
// every covered stage completed; per-job search failures surface as a
// single error after the whole batch, cleanup and summary have run.
func (c *Controller) Run(ctx context.Context) error {
	plan, err := c.opts.Resolve(c.cfg)
	if err != nil {
		return err
	}

	if c.opts.FastaDir != "" {
		if err := preflight.CheckDirectoryAccess(c.opts.FastaDir); err != nil {
			return err
		}
	}

	layout, resultsDir, err := c.resolveLayout(plan)
	if err != nil {
		return err
	}
	c.logger.Info("run starting",
		logging.String("entry", plan.Entry.String()),
		logging.String("exit", plan.Exit.String()),
		logging.String("working_dir", layout.Root()))

	lock := workdir.NewRunLock(layout)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	buildDatabases := plan.covers(StageSearch) || c.opts.OnlyPrepare
	if !c.skipBinaryCheck {
		needs := deps.Needs{
			Search:  buildDatabases,
			Cluster: plan.covers(StageCluster),
			MSA:     c.msaMode() && plan.covers(StageAlign),
			Trees:   c.msaMode() && plan.covers(StageTrees),
		}
		if err := preflight.CheckSearchStack(c.cfg, c.table, needs, c.logger); err != nil {
			return err
		}
	}

	set, names, err := c.enterRun(plan, layout)
	if err != nil {
		return err
	}

	ledger, err := runlog.Open(layout.Root())
	if err != nil {
		return err
	}
	defer ledger.Close()
	runID := uuid.NewString()
	if err := ledger.StartRun(ctx, runID, plan.Entry.String(), plan.Exit.String(), plan.TwoWay, set.NAll); err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, report.SpeciesTable(set, names))

	// The orthologue phase holds one file per species pair open at
	// once; probe for the descriptors now rather than fail hours in.
	if plan.Exit == StageOrthologues {
		if err := preflight.CheckFileDescriptors(layout.ScratchDir(), set.NAll); err != nil {
			return err
		}
	}

	if buildDatabases {
		if err := c.runSearch(ctx, plan, layout, set, ledger, runID, resultsDir); err != nil {
			finishQuietly(ctx, ledger, runID, "partial")
			return err
		}
		if c.opts.OnlyPrepare {
			finishQuietly(ctx, ledger, runID, "prepared")
			return nil
		}
	}

	clustersFile := layout.ClustersFile(c.cfg.Cluster.Inflation)
	if plan.covers(StageCluster) {
		if _, err := BuildGraph(layout, set, plan.TwoWay); err != nil {
			finishQuietly(ctx, ledger, runID, "failed")
			return err
		}
		clustersFile, err = c.runCluster(ctx, layout)
		if err != nil {
			finishQuietly(ctx, ledger, runID, "failed")
			return err
		}
		if c.opts.OnlyGroups {
			finishQuietly(ctx, ledger, runID, "complete")
			return nil
		}
	} else if plan.covers(StageSequenceExport) {
		if _, err := os.Stat(clustersFile); err != nil {
			return &pipeline.MissingArtifact{
				Dir:     layout.Root(),
				Missing: []string{clustersFile},
				Detail:  "restarting from orthogroups requires the clusters file of a previous run",
			}
		}
	}

	if c.msaMode() {
		if err := c.runAnalysisBranch(ctx, plan, layout, set, clustersFile); err != nil {
			finishQuietly(ctx, ledger, runID, "partial")
			return err
		}
	}

	if plan.covers(StageOrthologues) {
		// Orthologue reconciliation is delegated to downstream tooling
		// over the exported artifacts; this stage closes out the run.
		c.logger.Info("artifacts ready for orthologue inference",
			logging.String("working_dir", layout.Root()))
	}

	finishQuietly(ctx, ledger, runID, "complete")
	c.logger.Info("run complete", logging.String("results_dir", resultsDir))
	return nil
}

func (c *Controller) msaMode() bool {
	return c.cfg.Trees.Mode == config.TreeModeMSA
}

// resolveLayout creates a fresh results directory for runs entering
// with new FASTA input only, and reuses the given working directory for
// every resume variant.
func (c *Controller) resolveLayout(plan *Plan) (*workdir.Layout, string, error) {
	if c.opts.FastaDir != "" && !plan.Incremental {
		base := c.opts.OutputDir
		if base == "" {
			base = c.opts.FastaDir
		}
		return workdir.Create(base, c.opts.Name)
	}

	prior := c.opts.PriorDir
	if prior == "" {
		prior = c.opts.GroupsDir
	}
	if prior == "" {
		prior = c.opts.TreesDir
	}
	layout := workdir.NewLayout(prior)
	return layout, prior, nil
}

// enterRun produces the species set for the planned entry: registering
// new proteomes, validating prior artifacts, or both for incremental
// runs. Names runs parallel to set.ToUse.
func (c *Controller) enterRun(plan *Plan, layout *workdir.Layout) (*species.Set, []string, error) {
	registry := species.NewRegistry(layout, c.logger)

	switch {
	case plan.Incremental:
		outcome, err := resume.New(layout, c.logger).Validate(plan.TwoWay)
		if err != nil {
			return nil, nil, err
		}
		set, assigned, err := registry.AssignNewSpecies(c.opts.FastaDir, outcome.Set, outcome.Names, outcome.LastID, c.opts.DNA)
		if err != nil {
			return nil, nil, err
		}
		names := append([]string{}, outcome.Names...)
		for _, sp := range assigned {
			names = append(names, sp.SourceFasta)
		}
		if err := registry.CountSequences(set); err != nil {
			return nil, nil, err
		}
		return set, names, nil

	case c.opts.FastaDir != "":
		set, assigned, err := registry.AssignNewSpecies(c.opts.FastaDir, nil, nil, -1, c.opts.DNA)
		if err != nil {
			return nil, nil, err
		}
		names := make([]string, 0, len(assigned))
		for _, sp := range assigned {
			names = append(names, sp.SourceFasta)
		}
		return set, names, nil

	default:
		// Entries past the search stage only need the artifacts their
		// first stage reads, so the result-file check uses the laxer
		// one-way policy unless the search itself is being resumed.
		twoWay := plan.TwoWay
		if plan.Entry > StageCluster {
			twoWay = false
		}
		outcome, err := resume.New(layout, c.logger).Validate(twoWay)
		if err != nil {
			return nil, nil, err
		}
		if err := registry.CountSequences(outcome.Set); err != nil {
			return nil, nil, err
		}
		return outcome.Set, outcome.Names, nil
	}
}

// runSearch builds the per-species databases and either prints the
// search command list (prepare-only runs) or dispatches it. Scratch
// state is cleaned after the batch no matter how many jobs failed.
func (c *Controller) runSearch(ctx context.Context, plan *Plan, layout *workdir.Layout, set *species.Set, ledger *runlog.Store, runID, resultsDir string) error {
	program, ok := c.table.SearchProgram(c.cfg.Search.Program)
	if !ok {
		return pipeline.Inputf("unknown search program %q, available: %s",
			c.cfg.Search.Program, strings.Join(c.table.SearchNames(), ", "))
	}
	var clientOpts []search.Option
	if c.searchExec != nil {
		clientOpts = append(clientOpts, search.WithExecutor(c.searchExec))
	}
	client := search.NewClient(program, layout, c.logger, clientOpts...)

	for id := 0; id < set.NAll; id++ {
		if err := client.BuildDatabase(ctx, id); err != nil {
			return err
		}
	}

	orders := scheduler.BuildJobs(set, plan.TwoWay)
	jobs := client.SearchJobs(orders)

	if c.opts.OnlyPrepare {
		for _, job := range jobs {
			fmt.Fprintln(c.stdout, strings.Join(job.Argv, " "))
		}
		c.logger.Info("prepared search commands",
			logging.Int("jobs", len(jobs)),
			logging.String("results_dir", resultsDir))
		return nil
	}

	var poolOpts []scheduler.Option
	if c.batchExec != nil {
		poolOpts = append(poolOpts, scheduler.WithExecutor(c.batchExec))
	}
	pool := scheduler.NewPool(c.cfg.Workers.Search, c.logger, poolOpts...)
	results := pool.Dispatch(ctx, jobs)

	for _, r := range results {
		detail := ""
		if r.Failed() {
			if r.Err != nil {
				detail = r.Err.Error()
			} else {
				detail = firstLine(r.Output)
			}
		}
		if err := ledger.RecordJob(ctx, runID, r.Job.Order.Query, r.Job.Order.Target, r.Job.Order.Cost, r.ExitCode, r.Duration, detail); err != nil {
			c.logger.Warn("run ledger write failed", logging.Error(err))
		}
	}

	if err := layout.CleanScratch(client.DatabaseGlob()); err != nil {
		c.logger.Warn("scratch cleanup incomplete", logging.Error(err))
	}

	fmt.Fprintln(c.stdout, report.BatchSummary(results))
	failures := scheduler.Failures(results)
	if len(failures) > 0 {
		fmt.Fprintln(c.stdout, report.FailureTable(failures))
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%d of %d search jobs failed", len(failures), len(results))
	}
	return nil
}

func (c *Controller) runCluster(ctx context.Context, layout *workdir.Layout) (string, error) {
	var opts []mcl.Option
	if c.mclExec != nil {
		opts = append(opts, mcl.WithExecutor(c.mclExec))
	}
	client := mcl.NewClient(c.cfg.Cluster.Program, layout, c.logger, opts...)
	return client.Cluster(ctx, c.cfg.Cluster.Inflation, c.cfg.Workers.Search)
}

// runAnalysisBranch covers the MSA-mode stages: per-group sequence
// export, alignment, and gene-tree inference, each gated on the plan
// window.
func (c *Controller) runAnalysisBranch(ctx context.Context, plan *Plan, layout *workdir.Layout, set *species.Set, clustersFile string) error {
	if !plan.covers(StageSequenceExport) {
		return nil
	}
	groups, err := ExportSequences(layout, set, clustersFile)
	if err != nil {
		return err
	}
	c.logger.Info("orthogroup sequences exported", logging.Int("groups", len(groups)))
	if !plan.covers(StageAlign) {
		return nil
	}

	var runnerOpts []msa.Option
	if c.msaExec != nil {
		runnerOpts = append(runnerOpts, msa.WithExecutor(c.msaExec))
	}
	workers := c.cfg.AnalysisWorkers()

	alignProgram, ok := c.table.MSAProgram(c.cfg.Trees.MSAProgram)
	if !ok {
		return pipeline.Inputf("unknown alignment program %q, available: %s",
			c.cfg.Trees.MSAProgram, strings.Join(c.table.MSANames(), ", "))
	}
	if err := os.MkdirAll(layout.AlignmentsDir(), 0o755); err != nil {
		return fmt.Errorf("create alignments directory: %w", err)
	}
	aligner := msa.NewRunner(alignProgram, c.logger, runnerOpts...)
	var alignTasks []analysisTask
	for _, g := range groups {
		if len(g.IDs) < minAlignSize {
			continue
		}
		alignTasks = append(alignTasks, analysisTask{group: g.Name, input: g.FastaFile(layout), output: g.AlignmentFile(layout)})
	}
	if failed := runAnalysis(ctx, aligner, alignTasks, workers, c.logger, "alignment"); failed > 0 {
		return fmt.Errorf("%d of %d alignments failed", failed, len(alignTasks))
	}
	if !plan.covers(StageTrees) {
		return nil
	}

	treeProgram, ok := c.table.TreeProgram(c.cfg.Trees.TreeProgram)
	if !ok {
		return pipeline.Inputf("unknown tree program %q, available: %s",
			c.cfg.Trees.TreeProgram, strings.Join(c.table.TreeNames(), ", "))
	}
	if err := os.MkdirAll(layout.TreesDir(), 0o755); err != nil {
		return fmt.Errorf("create trees directory: %w", err)
	}
	treeRunner := msa.NewRunner(treeProgram, c.logger, runnerOpts...)
	var treeTasks []analysisTask
	for _, g := range groups {
		if len(g.IDs) < minTreeSize {
			continue
		}
		treeTasks = append(treeTasks, analysisTask{group: g.Name, input: g.AlignmentFile(layout), output: g.TreeFile(layout)})
	}
	if failed := runAnalysis(ctx, treeRunner, treeTasks, workers, c.logger, "tree inference"); failed > 0 {
		return fmt.Errorf("%d of %d gene trees failed", failed, len(treeTasks))
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func finishQuietly(ctx context.Context, ledger *runlog.Store, runID, outcome string) {
	// Ledger bookkeeping must not mask the run's own error, and must
	// still happen when ctx is already cancelled.
	_ = ledger.FinishRun(context.WithoutCancel(ctx), runID, outcome)
}
