// Package config handles exporter configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all exporter settings.
type Config struct {
	Export     ExportConfig     `yaml:"export"`
	Decimation DecimationConfig `yaml:"decimation"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExportConfig holds chunking and coordinate settings.
type ExportConfig struct {
	TempDir           string     `yaml:"temp_dir"`
	Lods              int        `yaml:"lods"`
	MaxPartBytes      int        `yaml:"max_part_bytes"`     // raw mesh upload part size
	TextureResolution int        `yaml:"texture_resolution"` // longest texture side at LOD 0
	LocalCoordinates  bool       `yaml:"local_coordinates"`
	Translation       [3]float64 `yaml:"translation,flow"`
	SRS               string     `yaml:"srs"`
}

// DecimationConfig describes the external simplification tool.
type DecimationConfig struct {
	Tool          string        `yaml:"tool"`
	ScriptDir     string        `yaml:"script_dir"`
	ScriptPattern string        `yaml:"script_pattern"` // printf pattern taking the LOD
	Attributes    []string      `yaml:"attributes"`
	Timeout       time.Duration `yaml:"timeout"`
}

// StoreConfig selects the staging store.
type StoreConfig struct {
	Kind string `yaml:"kind"` // "dir" or "memory"
	Root string `yaml:"root"`
	User string `yaml:"user"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Store kinds.
const (
	StoreDir    = "dir"
	StoreMemory = "memory"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			TempDir:           filepath.Join(os.TempDir(), "chimera-importer"),
			Lods:              8,
			MaxPartBytes:      8 << 20,
			TextureResolution: 4096,
		},
		Decimation: DecimationConfig{
			Tool:          "meshlabserver",
			ScriptDir:     "scripts",
			ScriptPattern: "testscript-%d.mlx",
			Attributes:    []string{"vc", "vn", "fc", "fn", "wt"},
			Timeout:       10 * time.Minute,
		},
		Store: StoreConfig{
			Kind: StoreDir,
			Root: "staging",
			User: os.Getenv("USER"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings the exporter cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Export.Lods < 1 || c.Export.Lods > 8:
		return fmt.Errorf("export.lods must be between 1 and 8, got %d", c.Export.Lods)
	case c.Export.MaxPartBytes <= 0:
		return fmt.Errorf("export.max_part_bytes must be positive, got %d", c.Export.MaxPartBytes)
	case c.Export.TextureResolution <= 0:
		return fmt.Errorf("export.texture_resolution must be positive, got %d", c.Export.TextureResolution)
	case c.Export.TempDir == "":
		return fmt.Errorf("export.temp_dir is empty")
	case c.Store.Kind != StoreDir && c.Store.Kind != StoreMemory:
		return fmt.Errorf("store.kind must be %q or %q, got %q", StoreDir, StoreMemory, c.Store.Kind)
	case c.Store.Kind == StoreDir && c.Store.Root == "":
		return fmt.Errorf("store.root is required for the dir store")
	}
	return nil
}
