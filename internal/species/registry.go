package species

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/workdir"
)

// fastaExtensions are the input filename extensions treated as FASTA.
var fastaExtensions = map[string]struct{}{
	"fa": {}, "faa": {}, "fasta": {}, "fas": {}, "pep": {},
}

// Registry assigns and persists species and sequence identifiers.
type Registry struct {
	layout *workdir.Layout
	logger *slog.Logger
}

// NewRegistry constructs a registry over the given working directory.
func NewRegistry(layout *workdir.Layout, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{layout: layout, logger: logger}
}

// LoadExisting reads the persisted species id file of a previous run.
// It returns the species set (commented-out lines are excluded from use
// but still occupy their ids), the source FASTA names of the in-use
// species, and the highest id ever assigned (for extension).
func (r *Registry) LoadExisting() (*Set, []string, int, error) {
	path := r.layout.SpeciesIDsFile()
	records, err := ReadIDFile(path)
	if err != nil {
		return nil, nil, -1, err
	}

	set := &Set{Counts: map[int]int{}}
	var names []string
	maxID := -1
	for _, rec := range records {
		id, err := strconv.Atoi(rec.ID)
		if err != nil || id < 0 {
			return nil, nil, -1, pipeline.Inputf("%s contains a non-numeric species id: %q", path, rec.ID)
		}
		set.ToUse = append(set.ToUse, id)
		names = append(names, rec.Label)
		if id > maxID {
			maxID = id
		}
	}
	// Commented lines mark excluded species; their ids stay reserved.
	if commentedMax, ok := highestCommentedID(path); ok && commentedMax > maxID {
		maxID = commentedMax
	}
	sort.Ints(set.ToUse)
	set.NAll = maxID + 1
	set.FirstNew = set.NAll
	return set, names, maxID, nil
}

func highestCommentedID(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	maxID := -1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		id, _, ok := splitIDLine(strings.TrimLeft(line, "# "))
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(id); err == nil && n > maxID {
			maxID = n
		}
	}
	if maxID < 0 {
		return 0, false
	}
	return maxID, true
}

// AssignNewSpecies registers every FASTA file in fastaDir, assigning ids
// that continue the prior id space, rewriting each proteome to its
// Species<id>.fa form and appending the species and sequence id records.
// Identifier lines are written before the corresponding FASTA data so a
// crash between the two is detectable on resume.
func (r *Registry) AssignNewSpecies(fastaDir string, prior *Set, priorNames []string, lastPriorID int, dna bool) (*Set, []Species, error) {
	inputs, err := listFastaInputs(fastaDir, r.logger)
	if err != nil {
		return nil, nil, err
	}

	priorSet := map[string]struct{}{}
	for _, name := range priorNames {
		priorSet[name] = struct{}{}
	}
	var duplicates []string
	for _, in := range inputs {
		if _, ok := priorSet[in]; ok {
			duplicates = append(duplicates, in)
		}
	}
	if len(duplicates) > 0 {
		return nil, nil, pipeline.Inputf("attempted to add a second copy of previously included species: %s", strings.Join(duplicates, ", "))
	}
	if len(inputs)+len(priorNames) < 2 {
		return nil, nil, pipeline.Inputf("at least two species are required, found %d", len(inputs)+len(priorNames))
	}

	set := &Set{Counts: map[int]int{}}
	if prior != nil {
		set.ToUse = append(set.ToUse, prior.ToUse...)
		for id, n := range prior.Counts {
			set.Counts[id] = n
		}
	}
	firstNew := lastPriorID + 1
	set.FirstNew = firstNew

	speciesFile, err := os.OpenFile(r.layout.SpeciesIDsFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open species id file: %w", err)
	}
	defer speciesFile.Close()
	sequenceFile, err := os.OpenFile(r.layout.SequenceIDsFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open sequence id file: %w", err)
	}
	defer sequenceFile.Close()

	speciesW := bufio.NewWriter(speciesFile)
	sequenceW := bufio.NewWriter(sequenceFile)

	var assigned []Species
	var nucleotideLooking []string
	id := firstNew
	for _, name := range inputs {
		if err := appendIDLine(speciesW, strconv.Itoa(id), name); err != nil {
			return nil, nil, fmt.Errorf("append species id: %w", err)
		}
		if err := speciesW.Flush(); err != nil {
			return nil, nil, fmt.Errorf("flush species id file: %w", err)
		}

		src := filepath.Join(fastaDir, name)
		nSeqs, hasAA, err := r.rewriteFasta(src, id, sequenceW)
		if err != nil {
			return nil, nil, err
		}
		if err := sequenceW.Flush(); err != nil {
			return nil, nil, fmt.Errorf("flush sequence id file: %w", err)
		}
		if !hasAA && !dna {
			nucleotideLooking = append(nucleotideLooking, name)
		}

		assigned = append(assigned, Species{ID: id, SourceFasta: name, DisplayName: workdir.DisplayName(name)})
		set.ToUse = append(set.ToUse, id)
		set.Counts[id] = nSeqs
		r.logger.Info("species registered",
			logging.Int("id", id),
			logging.String("file", name),
			logging.Int("sequences", nSeqs))
		id++
	}

	if len(nucleotideLooking) > 0 {
		return nil, nil, pipeline.Inputf("input appears to contain nucleotide sequences instead of amino acids (use DNA mode): %s", strings.Join(nucleotideLooking, ", "))
	}

	sort.Ints(set.ToUse)
	set.NAll = set.ToUse[len(set.ToUse)-1] + 1
	return set, assigned, nil
}

// rewriteFasta streams one input proteome into its Species<id>.fa form:
// headers are replaced by "<speciesId>_<localIndex>" global ids (the
// accession goes to the sequence id file first), residues are
// uppercased, and the first hundred body lines feed the amino-acid
// content heuristic.
func (r *Registry) rewriteFasta(src string, speciesID int, sequenceW *bufio.Writer) (nSeqs int, hasAA bool, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, false, fmt.Errorf("open input fasta: %w", err)
	}
	defer in.Close()

	outPath := r.layout.SpeciesFasta(speciesID)
	out, err := os.Create(outPath)
	if err != nil {
		return 0, false, fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	const linesToCheck = 100
	localIndex := 0
	lineNo := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if line[0] == '>' {
			accession := strings.TrimSpace(string(line[1:]))
			if accession == "" {
				return 0, false, pipeline.Inputf("%s contains a blank accession on line %d", src, lineNo)
			}
			globalID := fmt.Sprintf("%d_%d", speciesID, localIndex)
			if err := appendIDLine(sequenceW, globalID, accession); err != nil {
				return 0, false, fmt.Errorf("append sequence id: %w", err)
			}
			if _, err := fmt.Fprintf(w, ">%s\n", globalID); err != nil {
				return 0, false, fmt.Errorf("write %s: %w", outPath, err)
			}
			localIndex++
			continue
		}
		upper := bytes.ToUpper(line)
		if !hasAA && lineNo < linesToCheck {
			// Residues that exist in protein alphabets but not in
			// nucleotide ambiguity codes.
			hasAA = bytes.ContainsAny(upper, "EFILPQ")
		}
		if _, err := w.Write(upper); err != nil {
			return 0, false, fmt.Errorf("write %s: %w", outPath, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, false, fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, false, fmt.Errorf("read %s: %w", src, err)
	}
	if err := w.Flush(); err != nil {
		return 0, false, fmt.Errorf("flush %s: %w", outPath, err)
	}
	return localIndex, hasAA, out.Close()
}

// CountSequences fills Counts for every in-use species that lacks one by
// counting headers in its rewritten FASTA. Needed when resuming, where
// counts for previous species are not in memory.
func (r *Registry) CountSequences(set *Set) error {
	if set.Counts == nil {
		set.Counts = map[int]int{}
	}
	for _, id := range set.ToUse {
		if _, ok := set.Counts[id]; ok {
			continue
		}
		n, err := countHeaders(r.layout.SpeciesFasta(id))
		if err != nil {
			return err
		}
		set.Counts[id] = n
	}
	return nil
}

func countHeaders(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("count sequences: %w", err)
	}
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if b := scanner.Bytes(); len(b) > 0 && b[0] == '>' {
			n++
		}
	}
	return n, scanner.Err()
}

func listFastaInputs(dir string, logger *slog.Logger) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, pipeline.Inputf("input directory does not exist: %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var inputs, excluded []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "._") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if _, ok := fastaExtensions[ext]; ok {
			inputs = append(inputs, entry.Name())
		} else {
			excluded = append(excluded, entry.Name())
		}
	}
	if len(excluded) > 0 {
		logger.Warn("ignoring files without a FASTA extension",
			logging.String("files", strings.Join(excluded, ", ")))
	}
	if len(inputs) == 0 {
		return nil, pipeline.Inputf("no FASTA files found in %s", dir)
	}
	sort.Strings(inputs)
	return inputs, nil
}
