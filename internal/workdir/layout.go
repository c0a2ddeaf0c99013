// Package workdir owns the on-disk layout of a pipeline run: the
// deterministic names of identifier files, per-species FASTA files,
// search databases and pairwise result artifacts, plus the lock that
// keeps two invocations out of the same working directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"orthopipe/internal/fileutil"
)

const (
	speciesIDsName  = "SpeciesIDs.txt"
	sequenceIDsName = "SequenceIDs.txt"
	scratchName     = "Scratch"
	workingDirName  = "WorkingDirectory"
)

// Layout resolves artifact paths inside one working directory. All
// naming is a pure function of species ids so that concurrent workers
// never contend on a filename.
type Layout struct {
	root string
}

// NewLayout wraps an existing working directory.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Create builds a fresh results directory under base and returns the
// layout of its working directory. The results directory is named
// Results_<name>, with <name> defaulting to the current date the way
// the established output convention expects (e.g. Results_Jan01).
func Create(base, name string) (*Layout, string, error) {
	if name == "" {
		name = time.Now().Format("Jan02")
	}
	resultsDir := filepath.Join(base, "Results_"+name)
	root := filepath.Join(resultsDir, workingDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, "", fmt.Errorf("create working directory: %w", err)
	}
	return &Layout{root: root}, resultsDir, nil
}

// Root returns the working directory path.
func (l *Layout) Root() string { return l.root }

// SpeciesIDsFile returns the species identifier mapping file path.
func (l *Layout) SpeciesIDsFile() string { return filepath.Join(l.root, speciesIDsName) }

// SequenceIDsFile returns the sequence identifier mapping file path.
func (l *Layout) SequenceIDsFile() string { return filepath.Join(l.root, sequenceIDsName) }

// SpeciesFasta returns the rewritten FASTA file path for a species id.
func (l *Layout) SpeciesFasta(id int) string {
	return filepath.Join(l.root, fmt.Sprintf("Species%d.fa", id))
}

// Database returns the search database path for a species id under the
// named program. BLAST keeps its historical capitalized prefix.
func (l *Layout) Database(program string, id int) string {
	prefix := program
	if program == "blast" || program == "blast_nucl" {
		prefix = "Blast"
	}
	return filepath.Join(l.root, fmt.Sprintf("%sDBSpecies%d", prefix, id))
}

// ResultFile returns the pairwise result path for (query, target). The
// validator additionally accepts a ".gz" variant of this name.
func (l *Layout) ResultFile(query, target int) string {
	return filepath.Join(l.root, fmt.Sprintf("Blast%d_%d.txt", query, target))
}

// ScratchDir returns the transient scratch directory for this run.
func (l *Layout) ScratchDir() string { return filepath.Join(l.root, scratchName) }

// GraphFile returns the similarity graph handed to the clustering engine.
func (l *Layout) GraphFile() string { return filepath.Join(l.root, "similarity_graph.txt") }

// ClustersFile returns the clustering engine output path for the given
// inflation parameter.
func (l *Layout) ClustersFile(inflation float64) string {
	return filepath.Join(l.root, fmt.Sprintf("clusters_I%.1f.txt", inflation))
}

// OrthogroupSequencesDir returns where per-orthogroup FASTA exports go.
func (l *Layout) OrthogroupSequencesDir() string {
	return filepath.Join(l.root, "Orthogroup_Sequences")
}

// AlignmentsDir returns where per-orthogroup alignments go.
func (l *Layout) AlignmentsDir() string { return filepath.Join(l.root, "Alignments") }

// TreesDir returns where per-orthogroup gene trees go.
func (l *Layout) TreesDir() string { return filepath.Join(l.root, "Gene_Trees") }

var speciesFastaRe = regexp.MustCompile(`^Species(\d+)\.fa$`)

// SpeciesFastaFiles lists the per-species FASTA files present in the
// working directory, sorted by species id.
func (l *Layout) SpeciesFastaFiles() ([]string, []int, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, nil, fmt.Errorf("read working directory: %w", err)
	}
	type numbered struct {
		name string
		id   int
	}
	var found []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := speciesFastaRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{name: entry.Name(), id: id})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].id < found[j].id })
	names := make([]string, len(found))
	ids := make([]int, len(found))
	for i, f := range found {
		names[i] = filepath.Join(l.root, f.name)
		ids[i] = f.id
	}
	return names, ids, nil
}

// CleanScratch removes transient search-engine state: the scratch
// directory and, for database prefixes listed, leftover database files.
// It is called after the search batch regardless of per-job failures so
// a rerun never trips over stale scratch.
func (l *Layout) CleanScratch(databaseGlobs ...string) error {
	var firstErr error
	if err := fileutil.RemoveTree(l.ScratchDir()); err != nil {
		firstErr = err
	}
	for _, glob := range databaseGlobs {
		matches, err := filepath.Glob(filepath.Join(l.root, glob))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DisplayName derives a species display name from its source FASTA
// filename by dropping the final extension.
func DisplayName(sourceFasta string) string {
	base := filepath.Base(sourceFasta)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}
