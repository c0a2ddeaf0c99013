package workflow

import (
	"orthopipe/internal/config"
	"orthopipe/internal/pipeline"
)

// Options is the raw directive surface from the CLI. Resolve turns it
// into a validated Plan before any side effect happens.
type Options struct {
	// Entry directives.
	FastaDir  string // -f: new input proteomes
	PriorDir  string // -b: previous results directory
	GroupsDir string // --from-groups
	TreesDir  string // --from-trees

	// Exit directives, at most one.
	OnlyPrepare    bool
	OnlyGroups     bool
	OnlySeqs       bool
	OnlyAlignments bool
	OnlyTrees      bool

	// Run shaping.
	OneWay    bool
	DNA       bool
	Name      string
	OutputDir string

	// Analysis program selections, only meaningful in MSA tree mode.
	MSAProgram  string
	TreeProgram string
}

// Plan is the validated run shape: where the pipeline enters, where it
// stops, and whether it extends a previous run.
type Plan struct {
	Entry       Stage
	Exit        Stage
	Incremental bool
	TwoWay      bool
}

// Resolve validates the directive combination against the configured
// tree mode and produces the run plan. Every illegal combination is an
// InputError raised here, before the run touches the filesystem.
func (o Options) Resolve(cfg *config.Config) (*Plan, error) {
	plan := &Plan{Exit: StageOrthologues, TwoWay: !o.OneWay}

	switch {
	case o.FastaDir != "" && o.GroupsDir != "":
		return nil, pipeline.Inputf("new FASTA input cannot be combined with restarting from orthogroups")
	case o.FastaDir != "" && o.TreesDir != "":
		return nil, pipeline.Inputf("new FASTA input cannot be combined with restarting from gene trees")
	case o.PriorDir != "" && o.GroupsDir != "":
		return nil, pipeline.Inputf("previous search results cannot be combined with restarting from orthogroups")
	case o.PriorDir != "" && o.TreesDir != "":
		return nil, pipeline.Inputf("previous search results cannot be combined with restarting from gene trees")
	case o.GroupsDir != "" && o.TreesDir != "":
		return nil, pipeline.Inputf("restarting from orthogroups and from gene trees are mutually exclusive")
	case o.FastaDir != "" && o.PriorDir != "":
		plan.Entry = StagePrepare
		plan.Incremental = true
	case o.FastaDir != "":
		plan.Entry = StagePrepare
	case o.PriorDir != "":
		plan.Entry = StageCluster
	case o.GroupsDir != "":
		plan.Entry = StageSequenceExport
	case o.TreesDir != "":
		plan.Entry = StageOrthologues
	default:
		return nil, pipeline.Inputf("an input is required: new proteomes (-f), previous results (-b), orthogroups (--from-groups) or gene trees (--from-trees)")
	}

	msaMode := cfg.Trees.Mode == config.TreeModeMSA
	if (o.GroupsDir != "" || o.TreesDir != "") && !msaMode {
		return nil, pipeline.Inputf("restarting from orthogroups or gene trees requires MSA tree mode (-M msa)")
	}
	if o.MSAProgram != "" && !msaMode {
		return nil, pipeline.Inputf("an alignment program can only be chosen in MSA tree mode (-M msa)")
	}
	if o.TreeProgram != "" && !msaMode {
		return nil, pipeline.Inputf("a tree program can only be chosen in MSA tree mode (-M msa)")
	}

	stops := 0
	for _, set := range []bool{o.OnlyPrepare, o.OnlyGroups, o.OnlySeqs, o.OnlyAlignments, o.OnlyTrees} {
		if set {
			stops++
		}
	}
	if stops > 1 {
		return nil, pipeline.Inputf("at most one stop directive may be given")
	}
	switch {
	case o.OnlyPrepare:
		plan.Exit = StagePrepare
	case o.OnlyGroups:
		plan.Exit = StageCluster
	case o.OnlySeqs:
		if !msaMode {
			return nil, pipeline.Inputf("stopping after sequence export requires MSA tree mode (-M msa)")
		}
		plan.Exit = StageSequenceExport
	case o.OnlyAlignments:
		if !msaMode {
			return nil, pipeline.Inputf("stopping after alignments requires MSA tree mode (-M msa)")
		}
		plan.Exit = StageAlign
	case o.OnlyTrees:
		plan.Exit = StageTrees
	}

	if plan.Exit < plan.Entry {
		return nil, pipeline.Inputf("the requested stop stage (%s) precedes the entry stage (%s)", plan.Exit, plan.Entry)
	}

	if o.OutputDir != "" && (o.FastaDir == "" || o.PriorDir != "") {
		return nil, pipeline.Inputf("a custom output directory is only available for fresh runs starting from FASTA input")
	}
	return plan, nil
}
