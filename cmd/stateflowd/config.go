package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from YAML.
type Config struct {
	// Addr is the listen address for the execution peer.
	Addr string `yaml:"addr"`
	// PeerURL is the base URL of the remote execution peer the host calls.
	PeerURL string `yaml:"peerUrl"`

	Database struct {
		// Path is the SQLite database file; ":memory:" keeps state in-process.
		Path  string `yaml:"path"`
		Table string `yaml:"table"`
	} `yaml:"database"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Refresh is a cron expression for periodic pipeline refreshes. Empty
	// disables scheduling.
	Refresh string `yaml:"refresh"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Addr = ":8085"
	cfg.PeerURL = "http://localhost:8085"
	cfg.Database.Path = "stateflow.db"
	cfg.Database.Table = "pipeline_values"
	cfg.Log.Level = "info"
	return cfg
}

// loadConfig reads YAML config from path, falling back to defaults when no
// path is given.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
