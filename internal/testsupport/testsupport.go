// Package testsupport provides builders for test fixtures: input FASTA
// directories and previously-computed working directories.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ProteinSeqs returns n distinct short protein sequences.
func ProteinSeqs(n int) []string {
	base := []string{"MSTAVLENPGLGRKLSE", "MELPQFILREDAAKST", "MQIFVKTLTGKTITLE", "MPELNDAEQILRSKFQ", "MAEGEITTFTALTEKF"}
	seqs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		seqs = append(seqs, base[i%len(base)])
	}
	return seqs
}

// WriteFasta writes a FASTA file with the given accessions and
// sequences into dir and returns its path.
func WriteFasta(t *testing.T, dir, name string, accessions []string, seqs []string) string {
	t.Helper()
	var b strings.Builder
	for i, acc := range accessions {
		fmt.Fprintf(&b, ">%s\n%s\n", acc, seqs[i%len(seqs)])
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write fasta %s: %v", name, err)
	}
	return path
}

// FastaDir builds an input directory with one FASTA file per entry of
// counts (filename -> number of sequences).
func FastaDir(t *testing.T, counts map[string]int) string {
	t.Helper()
	dir := t.TempDir()
	for name, n := range counts {
		accessions := make([]string, n)
		for i := range accessions {
			accessions[i] = fmt.Sprintf("%s|seq%d", strings.TrimSuffix(name, filepath.Ext(name)), i)
		}
		WriteFasta(t, dir, name, accessions, ProteinSeqs(n))
	}
	return dir
}

// PriorRun assembles a fake previous working directory: identifier
// files, per-species FASTA files and pairwise result files for the given
// per-species sequence counts. When twoWay is false only the triangular
// result set is written.
func PriorRun(t *testing.T, counts []int, twoWay bool) string {
	t.Helper()
	dir := t.TempDir()

	var speciesLines, sequenceLines []string
	for id, n := range counts {
		speciesLines = append(speciesLines, fmt.Sprintf("%d: species_%d.fa", id, id))
		var fasta strings.Builder
		for j := 0; j < n; j++ {
			sequenceLines = append(sequenceLines, fmt.Sprintf("%d_%d: species_%d|seq%d", id, j, id, j))
			fmt.Fprintf(&fasta, ">%d_%d\n%s\n", id, j, ProteinSeqs(1)[0])
		}
		fastaPath := filepath.Join(dir, fmt.Sprintf("Species%d.fa", id))
		if err := os.WriteFile(fastaPath, []byte(fasta.String()), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeLines(t, filepath.Join(dir, "SpeciesIDs.txt"), speciesLines)
	writeLines(t, filepath.Join(dir, "SequenceIDs.txt"), sequenceLines)

	for i := range counts {
		for j := range counts {
			if !twoWay && j < i {
				continue
			}
			path := filepath.Join(dir, fmt.Sprintf("Blast%d_%d.txt", i, j))
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return dir
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	body := strings.Join(lines, "\n")
	if body != "" {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
