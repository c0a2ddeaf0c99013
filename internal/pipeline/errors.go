// Package pipeline defines the error taxonomy shared across the
// orthopipe stages.
//
// Four failure classes exist: InputError (bad CLI combinations or
// malformed input data, always fatal), MissingArtifact (a resume point
// lacks files, reported as an itemized list), ExternalToolFailure (a
// dispatched process misbehaved) and ResourceExhaustion (a pre-flight
// probe showed the system cannot support the run).
package pipeline

import (
	"fmt"
	"strings"
)

// InputError reports malformed user input: incompatible flags, a bad
// identifier-file line, duplicate species, an empty accession, or too
// few species. It is always fatal and never retried.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Inputf builds an InputError from a format string.
func Inputf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// MissingArtifact reports that artifacts expected at a resume point are
// absent. Missing holds every path discovered missing in one validation
// pass so the operator sees the full picture at once. OneWayUsable marks
// the special case where the triangular result set is complete but the
// complementary pairs needed for a two-way search are not; the
// remediation (switch to one-way, or rerun the search) differs from a
// plain missing file.
type MissingArtifact struct {
	Dir          string
	Missing      []string
	OneWayUsable bool
	Detail       string
}

func (e *MissingArtifact) Error() string {
	var b strings.Builder
	if e.Detail != "" {
		b.WriteString(e.Detail)
	} else {
		fmt.Fprintf(&b, "previous run in %s is incomplete", e.Dir)
	}
	if e.OneWayUsable {
		b.WriteString("\nresult files are present for a one-way search but not for the requested two-way search; rerun with --one-way or repeat the search stage")
	}
	for _, m := range e.Missing {
		b.WriteString("\n  missing: ")
		b.WriteString(m)
	}
	return b.String()
}

// ExternalToolFailure reports a dispatched process that exited non-zero
// or produced output violating a sanity heuristic. The exact command and
// captured output are preserved for diagnosis.
type ExternalToolFailure struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExternalToolFailure) Error() string {
	msg := fmt.Sprintf("external command failed (exit %d): %s", e.ExitCode, e.Command)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

// ResourceExhaustion reports a failed pre-flight resource probe, most
// commonly too few file descriptors for the orthologue phase.
type ResourceExhaustion struct {
	Needed int
	Limit  uint64
	Advice string
}

func (e *ResourceExhaustion) Error() string {
	msg := fmt.Sprintf("insufficient system resources: need roughly %d open files, current limit is %d", e.Needed, e.Limit)
	if e.Advice != "" {
		msg += "\n" + e.Advice
	}
	return msg
}
