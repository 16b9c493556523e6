package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked for when none is given.
const DefaultFile = "cpanmetagen.yaml"

// Config represents the generator configuration.
type Config struct {
	Mirror    MirrorConfig  `yaml:"mirror"`
	Output    OutputConfig  `yaml:"output"`
	Publish   PublishConfig `yaml:"publish"`
	BatchSize int           `yaml:"batch_size"`
}

// MirrorConfig locates the local mirror and, optionally, its upstream.
// An empty Upstream disables the refresh step.
type MirrorConfig struct {
	Upstream string `yaml:"upstream"`
	Root     string `yaml:"root"`
}

// OutputConfig locates the generated database.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// PublishConfig lists the artifact formats written after generation.
type PublishConfig struct {
	Formats []string `yaml:"formats"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Mirror: MirrorConfig{
			Root: "minicpan",
		},
		Output: OutputConfig{
			Dir:  "db",
			File: "cpanmeta.db",
		},
		BatchSize: 100,
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for cpanmetagen.yaml in the current
// directory. Values in the config file replace defaults entirely.
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = DefaultFile
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	defaults.Merge(&fileCfg)
	return defaults, nil
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Mirror.Upstream != "" {
		c.Mirror.Upstream = other.Mirror.Upstream
	}
	if other.Mirror.Root != "" {
		c.Mirror.Root = other.Mirror.Root
	}
	if other.Output.Dir != "" {
		c.Output.Dir = other.Output.Dir
	}
	if other.Output.File != "" {
		c.Output.File = other.Output.File
	}
	if len(other.Publish.Formats) > 0 {
		c.Publish.Formats = other.Publish.Formats
	}
	if other.BatchSize > 0 {
		c.BatchSize = other.BatchSize
	}
}

// DBPath returns the full path of the generated database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.Output.Dir, c.Output.File)
}
