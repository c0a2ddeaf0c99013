// Package deps verifies the external binaries a run needs before any
// work starts.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"orthopipe/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired filters statuses down to unavailable non-optional
// dependencies.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// Stage flags select which parts of the pipeline a requirement list
// must cover.
type Needs struct {
	Search  bool
	Cluster bool
	MSA     bool
	Trees   bool
}

// Requirements derives the binary list for a run from the configured
// programs. Each command template contributes its leading word; the
// database and search templates of one program may name different
// binaries (makeblastdb vs blastp), so both are checked.
func Requirements(cfg *config.Config, table *config.Table, needs Needs) []Requirement {
	var reqs []Requirement
	seen := map[string]struct{}{}
	add := func(name, command, description string) {
		if command == "" {
			return
		}
		if _, ok := seen[command]; ok {
			return
		}
		seen[command] = struct{}{}
		reqs = append(reqs, Requirement{Name: name, Command: command, Description: description})
	}

	if needs.Search {
		if p, ok := table.SearchProgram(cfg.Search.Program); ok {
			add(p.Name+" (database)", firstWord(p.DBTemplate), "builds per-species search databases")
			add(p.Name+" (search)", firstWord(p.SearchTemplate), "runs the pairwise sequence search")
		}
	}
	if needs.Cluster {
		add(cfg.Cluster.Program, cfg.Cluster.Program, "clusters the similarity graph into orthogroups")
	}
	if needs.MSA {
		if p, ok := table.MSAProgram(cfg.Trees.MSAProgram); ok {
			add(p.Name, firstWord(p.Template), "aligns orthogroup sequences")
		}
	}
	if needs.Trees {
		if p, ok := table.TreeProgram(cfg.Trees.TreeProgram); ok {
			add(p.Name, firstWord(p.Template), "infers orthogroup gene trees")
		}
	}
	return reqs
}

func firstWord(template string) string {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
