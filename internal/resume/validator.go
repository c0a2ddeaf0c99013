// Package resume validates that artifacts left by a previous run are
// complete and self-consistent before the pipeline trusts them.
package resume

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"orthopipe/internal/fileutil"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/species"
	"orthopipe/internal/workdir"
)

// Outcome carries what a successful validation learned about the prior
// run: the species set and the source names of the in-use species.
type Outcome struct {
	Set    *species.Set
	Names  []string
	LastID int
}

// Validator checks a claimed previous working directory.
type Validator struct {
	layout *workdir.Layout
	logger *slog.Logger
}

// New constructs a validator over the prior run's working directory.
func New(layout *workdir.Layout, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{layout: layout, logger: logger}
}

// Validate confirms the identifier files and pairwise result artifacts
// required to resume are present and mutually consistent. Missing result
// files are accumulated and reported together; when the triangular set
// is complete but the complementary two-way set is not, the returned
// error carries the distinct one-way diagnosis, because the remediation
// (switch policy vs rerun the search) differs. Validation reads only;
// running it twice over unchanged artifacts yields the same result.
func (v *Validator) Validate(twoWay bool) (*Outcome, error) {
	root := v.layout.Root()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, &pipeline.MissingArtifact{
			Dir:    root,
			Detail: fmt.Sprintf("previous results directory does not exist: %s", root),
		}
	}

	if _, err := os.Stat(v.layout.SpeciesIDsFile()); err != nil {
		return nil, &pipeline.MissingArtifact{
			Dir:     root,
			Missing: []string{v.layout.SpeciesIDsFile()},
			Detail:  "the species identifier file must be present when resuming from previous results",
		}
	}
	registry := species.NewRegistry(v.layout, v.logger)
	set, names, lastID, err := registry.LoadExisting()
	if err != nil {
		return nil, err
	}
	if len(set.ToUse) < 2 {
		return nil, pipeline.Inputf("previous run lists %d species in use; at least two are required", len(set.ToUse))
	}

	if err := v.checkSpeciesFastas(set); err != nil {
		return nil, err
	}
	if err := v.checkResultFiles(set, twoWay); err != nil {
		return nil, err
	}

	if _, err := os.Stat(v.layout.SequenceIDsFile()); err != nil {
		return nil, &pipeline.MissingArtifact{
			Dir:     root,
			Missing: []string{v.layout.SequenceIDsFile()},
			Detail:  "the sequence identifier file must be present when resuming from previous results",
		}
	}
	if _, err := species.ReadIDFile(v.layout.SequenceIDsFile()); err != nil {
		return nil, err
	}

	return &Outcome{Set: set, Names: names, LastID: lastID}, nil
}

// checkSpeciesFastas confirms the per-species FASTA files are present
// and contiguously numbered from zero up to the highest id.
func (v *Validator) checkSpeciesFastas(set *species.Set) error {
	paths, ids, err := v.layout.SpeciesFastaFiles()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return &pipeline.MissingArtifact{
			Dir:    v.layout.Root(),
			Detail: fmt.Sprintf("no processed FASTA files found in %s", v.layout.Root()),
		}
	}
	lastID := ids[len(ids)-1]
	if len(ids) != lastID+1 {
		present := make(map[int]struct{}, len(ids))
		for _, id := range ids {
			present[id] = struct{}{}
		}
		for i := 0; i <= lastID; i++ {
			if _, ok := present[i]; !ok {
				return &pipeline.MissingArtifact{
					Dir:     v.layout.Root(),
					Missing: []string{v.layout.SpeciesFasta(i)},
					Detail: fmt.Sprintf("processed FASTA files are not contiguously numbered: highest index is %d but only %d files exist, %s is absent",
						lastID, len(ids), filepath.Base(v.layout.SpeciesFasta(i))),
				}
			}
		}
	}
	return nil
}

// checkResultFiles verifies the pairwise result artifacts. The
// triangular set (target >= query over the in-use ids) is always
// required; two-way additionally requires the complementary pairs.
func (v *Validator) checkResultFiles(set *species.Set, twoWay bool) error {
	var missingTriangular []string
	for _, i := range set.ToUse {
		for _, j := range set.ToUse {
			if j < i {
				continue
			}
			fn := v.layout.ResultFile(i, j)
			if !fileutil.ExistsMaybeCompressed(fn) {
				missingTriangular = append(missingTriangular, fn)
			}
		}
	}

	if !twoWay {
		if len(missingTriangular) > 0 {
			return &pipeline.MissingArtifact{Dir: v.layout.Root(), Missing: missingTriangular}
		}
		return nil
	}

	var missingComplement []string
	for _, i := range set.ToUse {
		for _, j := range set.ToUse {
			if j >= i {
				continue
			}
			fn := v.layout.ResultFile(i, j)
			if !fileutil.ExistsMaybeCompressed(fn) {
				missingComplement = append(missingComplement, fn)
			}
		}
	}

	switch {
	case len(missingTriangular) == 0 && len(missingComplement) == 0:
		return nil
	case len(missingTriangular) == 0:
		// The prior run was searched one-way only. Distinct diagnosis:
		// the artifacts are usable, just not under this policy.
		return &pipeline.MissingArtifact{
			Dir:          v.layout.Root(),
			Missing:      missingComplement,
			OneWayUsable: true,
		}
	default:
		return &pipeline.MissingArtifact{
			Dir:     v.layout.Root(),
			Missing: append(missingTriangular, missingComplement...),
		}
	}
}
