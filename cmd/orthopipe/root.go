package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orthopipe/internal/config"
	"orthopipe/internal/logging"
	"orthopipe/internal/workflow"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		logLevel   string
		logFormat  string

		opts workflow.Options

		searchWorkers   int
		analysisWorkers int
		searchProgram   string
		treeMethod      string
		inflation       float64
	)

	rootCmd := &cobra.Command{
		Use:           "orthopipe",
		Short:         "Orthology inference pipeline coordinator",
		Long: "orthopipe assigns stable identifiers to input proteomes, schedules the\n" +
			"all-vs-all sequence search across external tools, and sequences the\n" +
			"clustering, alignment and tree stages over the resulting artifacts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configFlag)
			if err != nil {
				return err
			}

			// CLI flags override file settings.
			if cmd.Flags().Changed("search-workers") {
				cfg.Workers.Search = searchWorkers
			}
			if cmd.Flags().Changed("analysis-workers") {
				cfg.Workers.Analysis = analysisWorkers
			}
			if cmd.Flags().Changed("search") {
				cfg.Search.Program = searchProgram
			}
			if cmd.Flags().Changed("method") {
				cfg.Trees.Mode = treeMethod
			}
			if cmd.Flags().Changed("inflation") {
				cfg.Cluster.Inflation = inflation
			}
			if opts.MSAProgram != "" {
				cfg.Trees.MSAProgram = opts.MSAProgram
			}
			if opts.TreeProgram != "" {
				cfg.Trees.TreeProgram = opts.TreeProgram
			}
			if cmd.Flags().Changed("one-way") {
				cfg.Search.OneWay = opts.OneWay
			}
			opts.OneWay = cfg.Search.OneWay
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = logFormat
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: os.Stderr,
			})
			if err != nil {
				return err
			}

			controller := workflow.New(cfg, opts, logger)
			return controller.Run(cmd.Context())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.FastaDir, "fasta", "f", "", "Directory of input FASTA proteomes")
	flags.StringVarP(&opts.PriorDir, "blast", "b", "", "Working directory of a previous run with search results")
	flags.StringVar(&opts.GroupsDir, "from-groups", "", "Working directory of a previous run; restart from its orthogroups")
	flags.StringVar(&opts.TreesDir, "from-trees", "", "Working directory of a previous run; restart from its gene trees")

	flags.IntVarP(&searchWorkers, "search-workers", "t", 0, "Number of parallel search processes")
	flags.IntVarP(&analysisWorkers, "analysis-workers", "a", 0, "Number of parallel analysis processes")
	flags.StringVarP(&searchProgram, "search", "S", "", "Sequence search program (see config [tools.search])")
	flags.StringVarP(&treeMethod, "method", "M", "", "Gene tree method: dendroblast or msa")
	flags.StringVarP(&opts.MSAProgram, "msa-program", "A", "", "Alignment program for MSA mode")
	flags.StringVarP(&opts.TreeProgram, "tree-program", "T", "", "Tree program for MSA mode")
	flags.Float64VarP(&inflation, "inflation", "I", config.DefaultInflation, "MCL inflation parameter")
	flags.BoolVar(&opts.OneWay, "one-way", false, "Search each species pair in one direction only")
	flags.BoolVarP(&opts.DNA, "dna", "d", false, "Input contains nucleotide sequences")
	flags.StringVarP(&opts.Name, "name", "n", "", "Name suffix for the results directory")
	flags.StringVarP(&opts.OutputDir, "output", "o", "", "Output directory for a fresh run")

	flags.BoolVar(&opts.OnlyPrepare, "only-prepare", false, "Prepare files and print search commands, then stop")
	flags.BoolVar(&opts.OnlyGroups, "only-groups", false, "Stop after orthogroup clustering")
	flags.BoolVar(&opts.OnlySeqs, "only-seqs", false, "Stop after orthogroup sequence export (MSA mode)")
	flags.BoolVar(&opts.OnlyAlignments, "only-alignments", false, "Stop after alignments (MSA mode)")
	flags.BoolVar(&opts.OnlyTrees, "only-trees", false, "Stop after gene trees")

	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// newConfigCommand mirrors the config management surface: show the
// resolved path and write the commented sample.
func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the orthopipe configuration file",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing config at %s", path)
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	configCmd.AddCommand(pathCmd, initCmd)
	return configCmd
}
