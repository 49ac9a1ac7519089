// Package config holds the engine configuration: storage location,
// context budget, compaction thresholds, and retrieval limits.
//
// Defaults come from code; an optional YAML file under the data
// directory overlays them so deployments can tune budgets without
// rebuilding.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	// DataDir is where the SQLite database and config file live.
	DataDir string `yaml:"data_dir"`

	// MaxContextChars is the total character budget the enriched
	// context is allocated from, and the base for compaction
	// thresholds.
	MaxContextChars int `yaml:"max_context_chars"`

	// L1ThresholdPercent of MaxContextChars worth of raw turn text
	// triggers an L1 compaction pass.
	L1ThresholdPercent float64 `yaml:"l1_threshold_percent"`

	// L2ThresholdPercent of MaxContextChars worth of unconsolidated L1
	// summary text triggers an L2 consolidation pass.
	L2ThresholdPercent float64 `yaml:"l2_threshold_percent"`

	// L2TriggerMetric selects what the L2 threshold is measured
	// against: "chars" (summary text length, the default) or "count"
	// (number of unconsolidated L1 summaries).
	L2TriggerMetric string `yaml:"l2_trigger_metric"`

	// L2TriggerCount is the summary count that triggers consolidation
	// when L2TriggerMetric is "count".
	L2TriggerCount int `yaml:"l2_trigger_count"`

	// SemanticMinScore is the similarity floor for vector search hits.
	SemanticMinScore float64 `yaml:"semantic_min_score"`

	// CodeSearchInitialLimit caps merged search results before budget
	// assembly.
	CodeSearchInitialLimit int `yaml:"code_search_initial_limit"`

	// RetrievalTimeout bounds each retrieval source independently.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`

	// EmbeddingDim is the vector width of the default hash embedder.
	EmbeddingDim int `yaml:"embedding_dim"`

	// ProjectRoot is the codebase the engine serves, used by the
	// semantic-search eligibility check. Empty means no project loaded.
	ProjectRoot string `yaml:"project_root"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:                filepath.Join(home, ".ragforge"),
		MaxContextChars:        100_000,
		L1ThresholdPercent:     0.10,
		L2ThresholdPercent:     0.10,
		L2TriggerMetric:        "chars",
		L2TriggerCount:         10,
		SemanticMinScore:       0.3,
		CodeSearchInitialLimit: 100,
		RetrievalTimeout:       10 * time.Second,
		EmbeddingDim:           256,
	}
}

// DefaultPath is where Load looks when no config path is given.
func DefaultPath() string {
	return filepath.Join(Default().DataDir, "config.yaml")
}

// Load returns Default overlaid with the YAML file at path, if present.
// An empty path means DefaultPath. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// normalized clamps user-supplied values back into sane ranges.
func (c Config) normalized() Config {
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = Default().MaxContextChars
	}
	if c.L1ThresholdPercent <= 0 || c.L1ThresholdPercent > 1 {
		c.L1ThresholdPercent = Default().L1ThresholdPercent
	}
	if c.L2ThresholdPercent <= 0 || c.L2ThresholdPercent > 1 {
		c.L2ThresholdPercent = Default().L2ThresholdPercent
	}
	if c.L2TriggerMetric != "count" {
		c.L2TriggerMetric = "chars"
	}
	if c.L2TriggerCount <= 0 {
		c.L2TriggerCount = Default().L2TriggerCount
	}
	if c.SemanticMinScore < 0 || c.SemanticMinScore >= 1 {
		c.SemanticMinScore = Default().SemanticMinScore
	}
	if c.CodeSearchInitialLimit <= 0 {
		c.CodeSearchInitialLimit = Default().CodeSearchInitialLimit
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = Default().RetrievalTimeout
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = Default().EmbeddingDim
	}
	return c
}
