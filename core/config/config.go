/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the YAML configuration shared by the tablesync
// binaries.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/tablesync/core/pagination"
	"github.com/google/tablesync/datasources"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path
const EnvConfig = "TABLESYNC_CONFIG"

// Config is the top-level configuration
type Config struct {
	// Listen is the HTTP listen address
	Listen string `yaml:"listen"`

	Log    LogConfig    `yaml:"log"`
	Source SourceConfig `yaml:"source"`
	Table  TableConfig  `yaml:"table"`
	Seed   SeedConfig   `yaml:"seed"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// SourceConfig selects where records come from
type SourceConfig struct {
	// Kind is one of memory, json, csv, sqlite, http
	Kind string `yaml:"kind"`
	// Path of the json or csv data file, or the sqlite database
	Path string `yaml:"path"`
	// URL of a remote table server (kind http)
	URL string `yaml:"url"`
	// Timeout bounds each remote fetch, e.g. "5s"
	Timeout string `yaml:"timeout"`
}

// TableConfig configures the table controller
type TableConfig struct {
	PageSizes       []int `yaml:"page_sizes"`
	DefaultPageSize int   `yaml:"default_page_size"`
	MaxPageLinks    int   `yaml:"max_page_links"`
	// URLSync applies to the terminal UI; the HTML table always syncs its URL
	URLSync      bool `yaml:"url_sync"`
	CacheEntries int  `yaml:"cache_entries"`
}

// SeedConfig configures generated sample data
type SeedConfig struct {
	Count      int   `yaml:"count"`
	RandomSeed int64 `yaml:"random_seed"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Listen: "127.0.0.1:8097",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Source: SourceConfig{
			Kind:    "memory",
			Timeout: "5s",
		},
		Table: TableConfig{
			PageSizes:       append([]int(nil), pagination.DefaultPageSizes...),
			DefaultPageSize: 10,
			MaxPageLinks:    10,
			URLSync:         true,
			CacheEntries:    32,
		},
		Seed: SeedConfig{
			Count:      1000,
			RandomSeed: 1,
		},
	}
}

// Load loads the file named by TABLESYNC_CONFIG, or returns the defaults
// when it is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
// Fields absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source.Path = os.ExpandEnv(cfg.Source.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q must be text or json", c.Log.Format)
	}

	switch c.Source.Kind {
	case "memory":
	case "json", "csv", "sqlite":
		if c.Source.Path == "" {
			return fmt.Errorf("source kind %s requires source.path", c.Source.Kind)
		}
	case "http":
		if c.Source.URL == "" {
			return fmt.Errorf("source kind http requires source.url")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if _, err := c.Source.TimeoutDuration(); err != nil {
		return err
	}

	sizes := pagination.PageSizes(c.Table.PageSizes)
	if err := sizes.Validate(); err != nil {
		return fmt.Errorf("table.page_sizes: %w", err)
	}
	if !sizes.Contains(c.Table.DefaultPageSize) {
		return fmt.Errorf("table.default_page_size %d is not one of %v", c.Table.DefaultPageSize, c.Table.PageSizes)
	}
	if c.Table.MaxPageLinks < 1 {
		return fmt.Errorf("table.max_page_links must be at least 1")
	}
	if c.Table.CacheEntries < 1 {
		return fmt.Errorf("table.cache_entries must be at least 1")
	}
	if c.Seed.Count < 0 {
		return fmt.Errorf("seed.count must not be negative")
	}
	return nil
}

// TimeoutDuration parses the fetch timeout. Empty means no timeout.
func (s SourceConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid source.timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// DataSource returns the data source registration for a file or remote kind
func (s SourceConfig) DataSource(name string) datasources.SourceConfig {
	return datasources.SourceConfig{
		Name: name,
		Type: s.Kind,
		Config: map[string]string{
			"path":    s.Path,
			"url":     s.URL,
			"timeout": s.Timeout,
		},
	}
}

// NewLogger builds the slog logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
