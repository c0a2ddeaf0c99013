package resume_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
	"orthopipe/internal/resume"
	"orthopipe/internal/testsupport"
	"orthopipe/internal/workdir"
)

func validatorFor(dir string) *resume.Validator {
	return resume.New(workdir.NewLayout(dir), logging.NewNop())
}

func TestValidateCompleteTwoWayRun(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{3, 5}, true)
	outcome, err := validatorFor(dir).Validate(true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(outcome.Set.ToUse, []int{0, 1}) {
		t.Fatalf("species to use: %v", outcome.Set.ToUse)
	}
	if outcome.Set.NAll != 2 || outcome.LastID != 1 {
		t.Fatalf("bounds: NAll=%d LastID=%d", outcome.Set.NAll, outcome.LastID)
	}
}

func TestValidateMissingDirectory(t *testing.T) {
	_, err := validatorFor(filepath.Join(t.TempDir(), "nope")).Validate(false)
	var missing *pipeline.MissingArtifact
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifact, got %v", err)
	}
}

func TestValidateAccumulatesAllMissingResults(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{2, 2, 2}, false)
	for _, name := range []string{"Blast0_1.txt", "Blast1_2.txt"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}

	_, err := validatorFor(dir).Validate(false)
	var missing *pipeline.MissingArtifact
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifact, got %v", err)
	}
	if len(missing.Missing) != 2 {
		t.Fatalf("all missing files should be listed together: %v", missing.Missing)
	}
	if missing.OneWayUsable {
		t.Fatal("triangular gaps must not be diagnosed as one-way usable")
	}
}

func TestValidateOneWayArtifactsUnderTwoWayPolicy(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{3, 5}, false)

	// One-way policy accepts the triangular set.
	if _, err := validatorFor(dir).Validate(false); err != nil {
		t.Fatalf("one-way validation should pass: %v", err)
	}

	// Two-way policy gets the distinct diagnosis.
	_, err := validatorFor(dir).Validate(true)
	var missing *pipeline.MissingArtifact
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifact, got %v", err)
	}
	if !missing.OneWayUsable {
		t.Fatal("expected the one-way-usable diagnosis")
	}
	if !strings.Contains(missing.Error(), "one-way") {
		t.Fatalf("diagnosis text should mention one-way mode: %v", missing)
	}
}

func TestValidateAcceptsCompressedResults(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{2, 2}, true)
	plain := filepath.Join(dir, "Blast1_0.txt")
	if err := os.Rename(plain, plain+".gz"); err != nil {
		t.Fatal(err)
	}
	if _, err := validatorFor(dir).Validate(true); err != nil {
		t.Fatalf("compressed result should satisfy validation: %v", err)
	}
}

func TestValidateNonContiguousFastaNumbering(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{2, 2, 2}, true)
	if err := os.Remove(filepath.Join(dir, "Species1.fa")); err != nil {
		t.Fatal(err)
	}

	_, err := validatorFor(dir).Validate(true)
	var missing *pipeline.MissingArtifact
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifact, got %v", err)
	}
	if !strings.Contains(missing.Error(), "Species1.fa") {
		t.Fatalf("gap diagnosis should name the absent file: %v", missing)
	}
}

func TestValidateMalformedIDLine(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{2, 2}, true)
	path := filepath.Join(dir, "SpeciesIDs.txt")
	if err := os.WriteFile(path, []byte("0: A.fa\n3: \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := validatorFor(dir).Validate(true)
	var inputErr *pipeline.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if !strings.Contains(inputErr.Msg, `"3: "`) {
		t.Fatalf("malformed line content missing from error: %v", inputErr)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	dir := testsupport.PriorRun(t, []int{3, 5}, false)
	v := validatorFor(dir)

	_, err1 := v.Validate(true)
	_, err2 := v.Validate(true)
	var m1, m2 *pipeline.MissingArtifact
	if !errors.As(err1, &m1) || !errors.As(err2, &m2) {
		t.Fatalf("expected MissingArtifact both times: %v / %v", err1, err2)
	}
	if !reflect.DeepEqual(m1.Missing, m2.Missing) || m1.OneWayUsable != m2.OneWayUsable {
		t.Fatal("validation must be idempotent over unchanged artifacts")
	}
}
