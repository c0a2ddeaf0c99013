package workflow_test

import (
	"errors"
	"testing"

	"orthopipe/internal/config"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/workflow"
)

func TestResolvePlanMatrix(t *testing.T) {
	msaCfg := config.Default()
	msaCfg.Trees.Mode = config.TreeModeMSA

	cases := []struct {
		name    string
		opts    workflow.Options
		cfg     *config.Config
		want    workflow.Plan
		wantErr bool
	}{
		{
			name: "fresh fasta run",
			opts: workflow.Options{FastaDir: "in"},
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StageOrthologues, TwoWay: true},
		},
		{
			name: "incremental add",
			opts: workflow.Options{FastaDir: "in", PriorDir: "prev"},
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StageOrthologues, Incremental: true, TwoWay: true},
		},
		{
			name: "from previous search results",
			opts: workflow.Options{PriorDir: "prev"},
			want: workflow.Plan{Entry: workflow.StageCluster, Exit: workflow.StageOrthologues, TwoWay: true},
		},
		{
			name:    "from groups needs msa mode",
			opts:    workflow.Options{GroupsDir: "prev"},
			wantErr: true,
		},
		{
			name: "from groups in msa mode",
			opts: workflow.Options{GroupsDir: "prev"},
			cfg:  msaCfg,
			want: workflow.Plan{Entry: workflow.StageSequenceExport, Exit: workflow.StageOrthologues, TwoWay: true},
		},
		{
			name: "from trees in msa mode",
			opts: workflow.Options{TreesDir: "prev"},
			cfg:  msaCfg,
			want: workflow.Plan{Entry: workflow.StageOrthologues, Exit: workflow.StageOrthologues, TwoWay: true},
		},
		{
			name:    "no entry directive",
			opts:    workflow.Options{},
			wantErr: true,
		},
		{
			name:    "fasta with groups",
			opts:    workflow.Options{FastaDir: "in", GroupsDir: "prev"},
			wantErr: true,
		},
		{
			name:    "blast with trees",
			opts:    workflow.Options{PriorDir: "prev", TreesDir: "trees"},
			wantErr: true,
		},
		{
			name:    "two stop directives",
			opts:    workflow.Options{FastaDir: "in", OnlyPrepare: true, OnlyGroups: true},
			wantErr: true,
		},
		{
			name: "stop after prepare",
			opts: workflow.Options{FastaDir: "in", OnlyPrepare: true},
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StagePrepare, TwoWay: true},
		},
		{
			name: "stop after groups",
			opts: workflow.Options{FastaDir: "in", OnlyGroups: true},
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StageCluster, TwoWay: true},
		},
		{
			name:    "stop after seqs outside msa mode",
			opts:    workflow.Options{FastaDir: "in", OnlySeqs: true},
			wantErr: true,
		},
		{
			name: "stop after seqs in msa mode",
			opts: workflow.Options{FastaDir: "in", OnlySeqs: true},
			cfg:  msaCfg,
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StageSequenceExport, TwoWay: true},
		},
		{
			name:    "stop after alignments outside msa mode",
			opts:    workflow.Options{FastaDir: "in", OnlyAlignments: true},
			wantErr: true,
		},
		{
			name:    "stop precedes entry",
			opts:    workflow.Options{PriorDir: "prev", OnlyPrepare: true},
			wantErr: true,
		},
		{
			name:    "custom output dir on resume",
			opts:    workflow.Options{PriorDir: "prev", OutputDir: "out"},
			wantErr: true,
		},
		{
			name:    "custom output dir on incremental",
			opts:    workflow.Options{FastaDir: "in", PriorDir: "prev", OutputDir: "out"},
			wantErr: true,
		},
		{
			name:    "msa program outside msa mode",
			opts:    workflow.Options{FastaDir: "in", MSAProgram: "mafft"},
			wantErr: true,
		},
		{
			name:    "tree program outside msa mode",
			opts:    workflow.Options{FastaDir: "in", TreeProgram: "iqtree"},
			wantErr: true,
		},
		{
			name: "one way policy",
			opts: workflow.Options{FastaDir: "in", OneWay: true},
			want: workflow.Plan{Entry: workflow.StagePrepare, Exit: workflow.StageOrthologues, TwoWay: false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if cfg == nil {
				cfg = config.Default()
			}
			plan, err := tc.opts.Resolve(cfg)
			if tc.wantErr {
				var inputErr *pipeline.InputError
				if !errors.As(err, &inputErr) {
					t.Fatalf("expected InputError, got plan=%+v err=%v", plan, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if *plan != tc.want {
				t.Fatalf("plan = %+v, want %+v", *plan, tc.want)
			}
		})
	}
}
