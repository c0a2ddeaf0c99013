// Package preflight probes the environment before a run commits to
// hours of external-tool work: directory permissions, required
// binaries, and the file-descriptor headroom the orthologue phase
// needs.
package preflight

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"orthopipe/internal/config"
	"orthopipe/internal/deps"
	"orthopipe/internal/logging"
	"orthopipe/internal/pipeline"
)

// fdHeadroom pads the per-species-pair file estimate to cover the
// process's own open files (logs, databases, the run ledger).
const fdHeadroom = 50

// CheckDirectoryAccess confirms the directory exists and the process
// can read, write and traverse it.
func CheckDirectoryAccess(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return pipeline.Inputf("directory %s is not accessible: %v", dir, err)
	}
	if !info.IsDir() {
		return pipeline.Inputf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return pipeline.Inputf("insufficient permissions on %s: %v", dir, err)
	}
	return nil
}

// CheckSearchStack verifies every binary the planned stages will invoke
// is on PATH, reporting all missing binaries together.
func CheckSearchStack(cfg *config.Config, table *config.Table, needs deps.Needs, logger *slog.Logger) error {
	statuses := deps.CheckBinaries(deps.Requirements(cfg, table, needs))
	for _, s := range statuses {
		if s.Available {
			logger.Debug("dependency available", logging.String("name", s.Name), logging.String("command", s.Command))
		}
	}
	missing := deps.MissingRequired(statuses)
	if len(missing) == 0 {
		return nil
	}
	var lines []string
	for _, s := range missing {
		lines = append(lines, fmt.Sprintf("%s: %s", s.Name, s.Detail))
	}
	return pipeline.Inputf("required external programs are not available:\n  %s", strings.Join(lines, "\n  "))
}

// CheckFileDescriptors probes whether the process can hold one file per
// species pair open at once, the worst case of the orthologue phase, by
// actually opening that many scratch files. Probing beats arithmetic on
// the rlimit because other limits (per-user, container) bind too.
func CheckFileDescriptors(scratchDir string, nSpecies int) error {
	needed := nSpecies*nSpecies + fdHeadroom
	probeDir := filepath.Join(scratchDir, "fd_probe")
	if err := os.MkdirAll(probeDir, 0o755); err != nil {
		return fmt.Errorf("create fd probe directory: %w", err)
	}
	defer os.RemoveAll(probeDir)

	files := make([]*os.File, 0, needed)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for i := 0; i < needed; i++ {
		f, err := os.Create(filepath.Join(probeDir, fmt.Sprintf("probe%d", i)))
		if err != nil {
			var rl unix.Rlimit
			var limit uint64
			if rlErr := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); rlErr == nil {
				limit = rl.Cur
			}
			return &pipeline.ResourceExhaustion{
				Needed: needed,
				Limit:  limit,
				Advice: fmt.Sprintf("raise the open-file limit, e.g. ulimit -n %d, or analyse fewer species at once", needed),
			}
		}
		files = append(files, f)
	}
	return nil
}
