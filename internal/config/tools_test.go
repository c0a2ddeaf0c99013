package config_test

import (
	"reflect"
	"testing"

	"orthopipe/internal/config"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	argv := config.Render("diamond blastp -d {database} -q {input} -o {output}", config.TemplateArgs{
		Input:    "Species0.fa",
		Database: "diamondDBSpecies1",
		Output:   "Blast0_1.txt",
	})
	want := []string{"diamond", "blastp", "-d", "diamondDBSpecies1", "-q", "Species0.fa", "-o", "Blast0_1.txt"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("rendered argv mismatch:\n got %v\nwant %v", argv, want)
	}
}

func TestRenderHandlesEmbeddedPlaceholder(t *testing.T) {
	argv := config.Render("tool --db={database}.idx", config.TemplateArgs{Database: "DB3"})
	if argv[1] != "--db=DB3.idx" {
		t.Fatalf("embedded placeholder not expanded: %v", argv)
	}
}

func TestBuiltinTable(t *testing.T) {
	table := config.BuildTable(nil)
	blast, ok := table.SearchProgram("blast")
	if !ok {
		t.Fatal("blast missing from builtin table")
	}
	if !blast.BlastHeuristics {
		t.Fatal("blast variant should carry the makeblastdb heuristic")
	}
	diamond, ok := table.SearchProgram("diamond")
	if !ok {
		t.Fatal("diamond missing from builtin table")
	}
	if diamond.BlastHeuristics {
		t.Fatal("diamond should not carry the blast heuristic")
	}
	mafft, ok := table.MSAProgram("mafft")
	if !ok || !mafft.ToStdout {
		t.Fatalf("mafft should capture stdout: %+v", mafft)
	}
	if _, ok := table.TreeProgram("fasttree"); !ok {
		t.Fatal("fasttree missing from builtin table")
	}
}

func TestUserToolsOverrideBuiltins(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Search = map[string]config.SearchTool{
		"diamond": {
			DBCommand:     "diamond makedb --in {input} -d {database} --custom",
			SearchCommand: "diamond blastp -d {database} -q {input} -o {output}",
		},
	}
	table := config.BuildTable(cfg)
	diamond, _ := table.SearchProgram("diamond")
	if diamond.DBTemplate != cfg.Tools.Search["diamond"].DBCommand {
		t.Fatal("user definition should replace the builtin")
	}
}
