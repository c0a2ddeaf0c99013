package species

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"orthopipe/internal/pipeline"
)

// Record is one identifier mapping line. IDs are strings at this layer
// because the grammar is shared between the species file (integer ids)
// and the sequence file (ids of the form "<species>_<index>").
type Record struct {
	ID    string
	Label string
}

// ReadIDFile parses an identifier mapping file. Each line is either a
// comment starting with '#', blank, or `"<id>: <label>"` with a
// non-empty label. A malformed line fails with its exact content so the
// operator can locate it; nothing is silently skipped.
func ReadIDFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, label, ok := splitIDLine(line)
		if !ok {
			return nil, pipeline.Inputf("%s contains a malformed line: %q", path, line)
		}
		records = append(records, Record{ID: id, Label: label})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func splitIDLine(line string) (id, label string, ok bool) {
	id, label, found := strings.Cut(line, ": ")
	if !found || label == "" {
		return "", "", false
	}
	return id, label, true
}

// appendIDLine writes one mapping record in the shared grammar.
func appendIDLine(w *bufio.Writer, id, label string) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", id, label)
	return err
}
