package config

import "runtime"

const (
	// DefaultInflation is the MCL inflation parameter used when the
	// config and CLI leave it unset.
	DefaultInflation = 1.5

	// TreeModeDistance is the default fast distance-based tree method;
	// TreeModeMSA enables the alignment/tree branch of the workflow.
	TreeModeDistance = "dendroblast"
	TreeModeMSA      = "msa"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers: Workers{
			Search:   runtime.NumCPU(),
			Analysis: 0, // derived from search workers when zero
		},
		Search: Search{
			Program: "diamond",
			OneWay:  false,
		},
		Cluster: Cluster{
			Program:   "mcl",
			Inflation: DefaultInflation,
		},
		Trees: Trees{
			Mode:        TreeModeDistance,
			MSAProgram:  "mafft",
			TreeProgram: "fasttree",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// AnalysisWorkers resolves the analysis worker count, deriving it from
// the search worker count when not set explicitly.
func (c *Config) AnalysisWorkers() int {
	if c.Workers.Analysis > 0 {
		return c.Workers.Analysis
	}
	derived := c.Workers.Search / 8
	if derived < 1 {
		derived = 1
	}
	if derived > 16 {
		derived = 16
	}
	return derived
}
