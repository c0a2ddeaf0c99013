package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateCluster(); err != nil {
		return err
	}
	if err := c.validateTrees(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Search <= 0 {
		return errors.New("workers.search must be positive")
	}
	if c.Workers.Analysis < 0 {
		return errors.New("workers.analysis must be >= 0 (0 derives it from workers.search)")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if strings.TrimSpace(c.Search.Program) == "" {
		return errors.New("search.program must be set")
	}
	return nil
}

func (c *Config) validateCluster() error {
	if strings.TrimSpace(c.Cluster.Program) == "" {
		return errors.New("cluster.program must be set")
	}
	if c.Cluster.Inflation <= 1.0 {
		return errors.New("cluster.inflation must be greater than 1.0")
	}
	return nil
}

func (c *Config) validateTrees() error {
	switch c.Trees.Mode {
	case TreeModeDistance, TreeModeMSA:
	default:
		return fmt.Errorf("trees.mode must be %q or %q", TreeModeDistance, TreeModeMSA)
	}
	if c.Trees.Mode == TreeModeMSA {
		if strings.TrimSpace(c.Trees.MSAProgram) == "" {
			return errors.New("trees.msa_program must be set when trees.mode is \"msa\"")
		}
		if strings.TrimSpace(c.Trees.TreeProgram) == "" {
			return errors.New("trees.tree_program must be set when trees.mode is \"msa\"")
		}
	}
	return nil
}

func (c *Config) validateTools() error {
	for name, tool := range c.Tools.Search {
		if strings.TrimSpace(tool.DBCommand) == "" {
			return fmt.Errorf("tools.search.%s.db_command must be set", name)
		}
		if strings.TrimSpace(tool.SearchCommand) == "" {
			return fmt.Errorf("tools.search.%s.search_command must be set", name)
		}
	}
	for name, tool := range c.Tools.MSA {
		if strings.TrimSpace(tool.Command) == "" {
			return fmt.Errorf("tools.msa.%s.command must be set", name)
		}
	}
	for name, tool := range c.Tools.Tree {
		if strings.TrimSpace(tool.Command) == "" {
			return fmt.Errorf("tools.tree.%s.command must be set", name)
		}
	}
	return nil
}
