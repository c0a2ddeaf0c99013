package workflow

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"orthopipe/internal/pipeline"
	"orthopipe/internal/species"
	"orthopipe/internal/workdir"
)

// BuildGraph assembles the similarity graph handed to the clustering
// engine from the pairwise result files: one ABC line per hit,
// "query<TAB>target<TAB>bitscore". Result files are tabular (BLAST
// outfmt 6 and its diamond/mmseqs equivalents); compressed ".gz"
// variants are read transparently. Self-hits are dropped.
func BuildGraph(layout *workdir.Layout, set *species.Set, twoWay bool) (string, error) {
	out, err := os.Create(layout.GraphFile())
	if err != nil {
		return "", fmt.Errorf("create similarity graph: %w", err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	for _, i := range set.ToUse {
		for _, j := range set.ToUse {
			if !twoWay && j < i {
				continue
			}
			if err := appendResultFile(w, layout.ResultFile(i, j)); err != nil {
				return "", err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("write similarity graph: %w", err)
	}
	return layout.GraphFile(), out.Close()
}

func appendResultFile(w *bufio.Writer, path string) error {
	r, closeFn, err := openMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer closeFn()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// query, target and the trailing bitscore column.
		if len(fields) < 3 {
			return pipeline.Inputf("%s line %d is not tabular search output: %q", path, lineNo, scanner.Text())
		}
		query, target, score := fields[0], fields[1], fields[len(fields)-1]
		if query == target {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", query, target, score); err != nil {
			return fmt.Errorf("write similarity graph: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func openMaybeCompressed(path string) (io.Reader, func(), error) {
	if f, err := os.Open(path); err == nil {
		return f, func() { f.Close() }, nil
	}
	f, err := os.Open(path + ".gz")
	if err != nil {
		return nil, nil, &pipeline.MissingArtifact{Missing: []string{path}, Detail: "pairwise result file disappeared between validation and graph construction"}
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read %s.gz: %w", path, err)
	}
	return gz, func() { gz.Close(); f.Close() }, nil
}
