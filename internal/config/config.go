package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Workers contains the two independent parallelism settings. Search
// workers bound concurrent external search processes; analysis workers
// are passed through to the clustering and tree stages.
type Workers struct {
	Search   int `toml:"search"`
	Analysis int `toml:"analysis"`
}

// Search contains pairwise-search settings.
type Search struct {
	Program string `toml:"program"`
	OneWay  bool   `toml:"one_way"`
}

// Cluster contains graph-clustering settings.
type Cluster struct {
	Program   string  `toml:"program"`
	Inflation float64 `toml:"inflation"`
}

// Trees contains gene-tree inference settings. Mode selects between the
// default distance-based method and the MSA branch.
type Trees struct {
	Mode        string `toml:"mode"`
	MSAProgram  string `toml:"msa_program"`
	TreeProgram string `toml:"tree_program"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// SearchTool defines one external search program: a database-build
// command and a search command, both as argv templates.
type SearchTool struct {
	DBCommand     string `toml:"db_command"`
	SearchCommand string `toml:"search_command"`
}

// MSATool defines one external alignment program.
type MSATool struct {
	Command  string `toml:"command"`
	ToStdout bool   `toml:"to_stdout"`
}

// TreeTool defines one external tree-inference program.
type TreeTool struct {
	Command  string `toml:"command"`
	ToStdout bool   `toml:"to_stdout"`
}

// Tools holds user-supplied external program definitions, merged over
// the built-in table at startup.
type Tools struct {
	Search map[string]SearchTool `toml:"search"`
	MSA    map[string]MSATool    `toml:"msa"`
	Tree   map[string]TreeTool   `toml:"tree"`
}

// Config encapsulates all configuration values for orthopipe.
type Config struct {
	Workers Workers `toml:"workers"`
	Search  Search  `toml:"search"`
	Cluster Cluster `toml:"cluster"`
	Trees   Trees   `toml:"trees"`
	Logging Logging `toml:"logging"`
	Tools   Tools   `toml:"tools"`
}

// DefaultConfigPath returns the expected configuration file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "orthopipe", "config.toml"), nil
}

// Load reads the configuration from path, or from the default location
// when path is empty. A missing file yields defaults; exists reports
// whether a file was actually read.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved = path
	if resolved == "" {
		resolved, err = DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
	}

	cfg = Default()
	data, readErr := os.ReadFile(resolved)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, readErr)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	return cfg, resolved, true, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
