package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// EnvironmentConfig describes a single named environment from docshift.toml.
type EnvironmentConfig struct {
	Description string `toml:"description"`
	SourceURL   string `toml:"source_url"`
	TargetURL   string `toml:"target_url"`
	TargetDB    string `toml:"target_db"`
}

// StrategyConfig tunes the embedding classifier. Zero values fall back to
// the classifier defaults.
type StrategyConfig struct {
	EmbedMaxRatio float64 `toml:"embed_max_ratio"`
	EmbedMaxRows  int64   `toml:"embed_max_rows"`
}

// TransferConfig tunes the bulk executor.
type TransferConfig struct {
	BatchSize int `toml:"batch_size"`
}

// Config represents the docshift.toml configuration file. Top-level
// source/target values act as fallbacks for environments that leave them
// unset.
type Config struct {
	DefaultEnvironment string `toml:"default_environment"`
	SourceURL          string `toml:"source_url"`
	TargetURL          string `toml:"target_url"`
	TargetDB           string `toml:"target_db"`

	Strategy StrategyConfig `toml:"strategy"`
	Transfer TransferConfig `toml:"transfer"`

	Environments map[string]EnvironmentConfig `toml:"environments"`

	ConfigFilePath string `toml:"-"`
	configDir      string
}

// ConfigDir returns the directory containing docshift.toml, empty when no
// config file was found.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// LoadConfig loads docshift.toml from the current directory or any parent
// directory, stopping at a project root marker.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := startDir
	for {
		configPath := filepath.Join(dir, "docshift.toml")
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, err
			}

			var config Config
			if err := toml.Unmarshal(data, &config); err != nil {
				return nil, err
			}

			config.ConfigFilePath = configPath
			config.configDir = dir
			return &config, nil
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return &Config{}, nil
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
