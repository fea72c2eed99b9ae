package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root string `yaml:"root"`
	} `yaml:"project"`
	Snapshot struct {
		Path    string `yaml:"path"`
		Workers int    `yaml:"workers"` // 0 means NumCPU
	} `yaml:"snapshot"`
	Manifest struct {
		Path string `yaml:"path"`
	} `yaml:"manifest"`
	Ignore []string `yaml:"ignore"` // project globs, appended to the built-in defaults
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Project.Root = "."
	cfg.Snapshot.Path = ".docdrift/snapshot.json"
	cfg.Manifest.Path = ".docdrift/manifest.db"
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := DefaultConfig()

	// 2. Load YAML config; a missing file just means defaults
	file, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if root := os.Getenv("DOCDRIFT_ROOT"); root != "" {
		cfg.Project.Root = root
	}
	if snap := os.Getenv("DOCDRIFT_SNAPSHOT"); snap != "" {
		cfg.Snapshot.Path = snap
	}
	if db := os.Getenv("DOCDRIFT_DB"); db != "" {
		cfg.Manifest.Path = db
	}
	if workers := os.Getenv("DOCDRIFT_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Snapshot.Workers = n
		}
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}

	return cfg, nil
}
