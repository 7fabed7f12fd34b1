// Package config loads and validates the server configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete backtest server configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Strategies StrategiesConfig `json:"strategies" yaml:"strategies"`
}

// ServerConfig contains HTTP listener parameters.
type ServerConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DataConfig locates the price data.
type DataConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Archive string `json:"archive,omitempty" yaml:"archive,omitempty"` // optional .zip bundle extracted into Dir at startup
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "none", "csv", or "sqlite"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	RunsFile      string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
}

// SimulationConfig contains engine defaults applied to sessions that do
// not set their own.
type SimulationConfig struct {
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`
	MetricsEvery int `json:"metrics_every" yaml:"metrics_every"`
}

// StrategiesConfig carries default strategy weights, merged under any
// per-request weights.
type StrategiesConfig struct {
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (or JSON for .json paths).
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.SnapshotsFile == "" || c.Journal.RunsFile == "" {
			return fmt.Errorf("journal trades_file, snapshots_file and runs_file required for csv type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	if c.Simulation.LookbackDays < 0 {
		return fmt.Errorf("simulation.lookback_days must not be negative")
	}
	if c.Simulation.MetricsEvery < 0 {
		return fmt.Errorf("simulation.metrics_every must not be negative")
	}
	for name, w := range c.Strategies.Weights {
		if w <= 0 {
			return fmt.Errorf("strategies.weights[%s] must be positive", name)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtests.sqlite",
		},
		Simulation: SimulationConfig{
			LookbackDays: 30,
			MetricsEvery: 5,
		},
	}
}
