package workflow

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"orthopipe/internal/species"
	"orthopipe/internal/workdir"
)

// Group is one orthogroup: its export name and the global sequence ids
// it contains.
type Group struct {
	Name string
	IDs  []string
}

// FastaFile returns the exported per-group FASTA path.
func (g Group) FastaFile(layout *workdir.Layout) string {
	return filepath.Join(layout.OrthogroupSequencesDir(), g.Name+".fa")
}

// AlignmentFile returns the per-group alignment path.
func (g Group) AlignmentFile(layout *workdir.Layout) string {
	return filepath.Join(layout.AlignmentsDir(), g.Name+".aln")
}

// TreeFile returns the per-group gene tree path.
func (g Group) TreeFile(layout *workdir.Layout) string {
	return filepath.Join(layout.TreesDir(), g.Name+"_tree.txt")
}

// readClusters parses the clustering engine output: one cluster per
// line, whitespace-separated global sequence ids.
func readClusters(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clusters file: %w", err)
	}
	defer f.Close()

	var clusters [][]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		clusters = append(clusters, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read clusters file: %w", err)
	}
	return clusters, nil
}

// loadSequences reads every in-use per-species FASTA into a global-id
// lookup table.
func loadSequences(layout *workdir.Layout, set *species.Set) (map[string]string, error) {
	seqs := make(map[string]string)
	for _, id := range set.ToUse {
		path := layout.SpeciesFasta(id)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var current string
		var body strings.Builder
		flush := func() {
			if current != "" {
				seqs[current] = body.String()
			}
			body.Reset()
		}
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, ">") {
				flush()
				current = strings.TrimSpace(line[1:])
				continue
			}
			body.WriteString(line)
			body.WriteString("\n")
		}
		flush()
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, scanErr)
		}
	}
	return seqs, nil
}

// ExportSequences writes one FASTA file per cluster into the orthogroup
// sequences directory. Groups are numbered by descending size, ties in
// cluster-file order, which keeps the naming stable across reruns.
func ExportSequences(layout *workdir.Layout, set *species.Set, clustersFile string) ([]Group, error) {
	clusters, err := readClusters(clustersFile)
	if err != nil {
		return nil, err
	}
	seqs, err := loadSequences(layout, set)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(layout.OrthogroupSequencesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create orthogroup sequences directory: %w", err)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i]) > len(clusters[j])
	})

	groups := make([]Group, 0, len(clusters))
	for i, ids := range clusters {
		group := Group{Name: fmt.Sprintf("OG%07d", i), IDs: ids}
		var b strings.Builder
		for _, id := range ids {
			body, ok := seqs[id]
			if !ok {
				return nil, fmt.Errorf("cluster %s references unknown sequence id %q", group.Name, id)
			}
			fmt.Fprintf(&b, ">%s\n%s", id, body)
		}
		if err := os.WriteFile(group.FastaFile(layout), []byte(b.String()), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", group.FastaFile(layout), err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
