package config

import (
	"sort"
	"strings"
)

// Kind tags the role an external program plays in the pipeline.
type Kind int

const (
	KindSearch Kind = iota
	KindMSA
	KindTree
)

// Program is one resolved external-tool variant. Command templates are
// whitespace-split argv lists carrying {input}, {database}, {output},
// {threads} and {scratch} placeholders; no shell is involved.
type Program struct {
	Kind           Kind
	Name           string
	DBTemplate     string
	SearchTemplate string
	Template       string
	ToStdout       bool

	// BlastHeuristics enables the makeblastdb output sanity check, which
	// only means anything for the BLAST+ toolchain.
	BlastHeuristics bool
}

// TemplateArgs carries placeholder values for command rendering.
type TemplateArgs struct {
	Input    string
	Database string
	Output   string
	Scratch  string
	Threads  string
}

// Render expands a template into an argv slice.
func Render(template string, args TemplateArgs) []string {
	replacer := strings.NewReplacer(
		"{input}", args.Input,
		"{database}", args.Database,
		"{output}", args.Output,
		"{scratch}", args.Scratch,
		"{threads}", args.Threads,
	)
	fields := strings.Fields(template)
	argv := make([]string, 0, len(fields))
	for _, f := range fields {
		argv = append(argv, replacer.Replace(f))
	}
	return argv
}

// Table is the closed set of external program variants available to a
// run, built once at startup from the built-ins plus the configuration
// document. Lookups return copies; the table is immutable afterwards.
type Table struct {
	search map[string]Program
	msa    map[string]Program
	tree   map[string]Program
}

// BuildTable merges user-configured tools over the built-in programs.
func BuildTable(cfg *Config) *Table {
	t := &Table{
		search: map[string]Program{},
		msa:    map[string]Program{},
		tree:   map[string]Program{},
	}
	for name, p := range builtinSearch {
		t.search[name] = p
	}
	for name, p := range builtinMSA {
		t.msa[name] = p
	}
	for name, p := range builtinTree {
		t.tree[name] = p
	}
	if cfg != nil {
		for name, tool := range cfg.Tools.Search {
			t.search[name] = Program{
				Kind:           KindSearch,
				Name:           name,
				DBTemplate:     tool.DBCommand,
				SearchTemplate: tool.SearchCommand,
			}
		}
		for name, tool := range cfg.Tools.MSA {
			t.msa[name] = Program{Kind: KindMSA, Name: name, Template: tool.Command, ToStdout: tool.ToStdout}
		}
		for name, tool := range cfg.Tools.Tree {
			t.tree[name] = Program{Kind: KindTree, Name: name, Template: tool.Command, ToStdout: tool.ToStdout}
		}
	}
	return t
}

// SearchProgram returns the search variant registered under name.
func (t *Table) SearchProgram(name string) (Program, bool) {
	p, ok := t.search[name]
	return p, ok
}

// MSAProgram returns the alignment variant registered under name.
func (t *Table) MSAProgram(name string) (Program, bool) {
	p, ok := t.msa[name]
	return p, ok
}

// TreeProgram returns the tree-inference variant registered under name.
func (t *Table) TreeProgram(name string) (Program, bool) {
	p, ok := t.tree[name]
	return p, ok
}

// SearchNames lists the available search programs, sorted.
func (t *Table) SearchNames() []string { return sortedKeys(t.search) }

// MSANames lists the available alignment programs, sorted.
func (t *Table) MSANames() []string { return sortedKeys(t.msa) }

// TreeNames lists the available tree programs, sorted.
func (t *Table) TreeNames() []string { return sortedKeys(t.tree) }

func sortedKeys(m map[string]Program) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var builtinSearch = map[string]Program{
	"blast": {
		Kind:            KindSearch,
		Name:            "blast",
		DBTemplate:      "makeblastdb -dbtype prot -in {input} -out {database}",
		SearchTemplate:  "blastp -outfmt 6 -evalue 0.001 -query {input} -db {database} -out {output}",
		BlastHeuristics: true,
	},
	"blast_nucl": {
		Kind:            KindSearch,
		Name:            "blast_nucl",
		DBTemplate:      "makeblastdb -dbtype nucl -in {input} -out {database}",
		SearchTemplate:  "blastn -outfmt 6 -evalue 0.001 -query {input} -db {database} -out {output}",
		BlastHeuristics: true,
	},
	"diamond": {
		Kind:           KindSearch,
		Name:           "diamond",
		DBTemplate:     "diamond makedb --ignore-warnings --in {input} -d {database}",
		SearchTemplate: "diamond blastp --ignore-warnings -d {database} -q {input} -o {output} -e 0.001 -p 1 --quiet",
	},
	"mmseqs": {
		Kind:           KindSearch,
		Name:           "mmseqs",
		DBTemplate:     "mmseqs createdb {input} {database}",
		SearchTemplate: "mmseqs easy-search {input} {database} {output} {scratch} --threads 1",
	},
}

var builtinMSA = map[string]Program{
	"mafft": {
		Kind:     KindMSA,
		Name:     "mafft",
		Template: "mafft --localpair --maxiterate 1000 --anysymbol {input}",
		ToStdout: true,
	},
	"muscle": {
		Kind:     KindMSA,
		Name:     "muscle",
		Template: "muscle -align {input} -output {output}",
	},
}

var builtinTree = map[string]Program{
	"fasttree": {
		Kind:     KindTree,
		Name:     "fasttree",
		Template: "fasttree {input}",
		ToStdout: true,
	},
	"iqtree": {
		Kind:     KindTree,
		Name:     "iqtree",
		Template: "iqtree -s {input} -pre {output} -quiet",
	},
}
