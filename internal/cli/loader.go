package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ebb-sync/ebb"
	"github.com/ebb-sync/ebb/internal/schema"
)

// Config is the YAML configuration file the query and exec commands read.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// Schema is the CUE schema definition path.
	Schema string `yaml:"schema"`
}

// LoadConfig reads and validates a config file. Relative paths inside the
// file resolve against the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("config: database is required")
	}
	if cfg.Schema == "" {
		return nil, fmt.Errorf("config: schema is required")
	}

	dir := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Database) {
		cfg.Database = filepath.Join(dir, cfg.Database)
	}
	if !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(dir, cfg.Schema)
	}
	return &cfg, nil
}

// openClient builds a client from a config file.
func openClient(configPath string) (*ebb.Client, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	reg, err := schema.LoadCUE(cfg.Schema)
	if err != nil {
		return nil, err
	}
	return ebb.Open(ebb.Config{DatabasePath: cfg.Database, Registry: reg})
}
