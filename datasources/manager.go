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

package datasources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
)

// Loader opens a Source from a string configuration.
// Each loader handles one source type ("json", "sqlite", "http", ...).
type Loader interface {
	// SourceType returns the source type this loader handles
	SourceType() string

	// Open creates a Source from the given configuration
	Open(ctx context.Context, config map[string]string) (Source, error)
}

// SourceConfig describes a named data source
type SourceConfig struct {
	Name   string
	Type   string
	Config map[string]string
}

// Manager handles opening and caching of data sources.
// Sources are registered eagerly and opened lazily on first use.
type Manager struct {
	mu sync.RWMutex

	// Source configurations indexed by name
	sources map[string]SourceConfig

	// Opened sources indexed by name - populated lazily
	opened map[string]Source

	// Registered loaders indexed by source type
	loaders map[string]Loader

	// Base directory for resolving relative paths
	baseDir string
}

// NewManager creates a new data source manager.
func NewManager() *Manager {
	return &Manager{
		sources: make(map[string]SourceConfig),
		opened:  make(map[string]Source),
		loaders: make(map[string]Loader),
	}
}

// RegisterLoader registers a loader for its source type.
// If a loader is already registered for this type, it will be replaced.
func (m *Manager) RegisterLoader(loader Loader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[loader.SourceType()] = loader
}

// AddSource registers a source configuration. A previously opened source
// with the same name is dropped from the cache.
func (m *Manager) AddSource(source SourceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source.Name] = source
	delete(m.opened, source.Name)
}

// SetBaseDir sets the base directory for resolving relative paths in config.
func (m *Manager) SetBaseDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseDir = dir
}

// GetSourceNames returns all registered source names, sorted.
func (m *Manager) GetSourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the source registered under name.
// Returns the cached source if already opened; otherwise opens it with the
// loader registered for its type.
func (m *Manager) Open(ctx context.Context, name string) (Source, error) {
	m.mu.RLock()
	if src, ok := m.opened[name]; ok {
		m.mu.RUnlock()
		return src, nil
	}
	cfg, ok := m.sources[name]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("source %q not found", name)
	}
	loader, hasLoader := m.loaders[cfg.Type]
	baseDir := m.baseDir
	m.mu.RUnlock()

	if !hasLoader {
		return nil, fmt.Errorf("no loader registered for source type %q", cfg.Type)
	}

	src, err := loader.Open(ctx, m.resolveConfigPaths(cfg.Config, baseDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open source %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have opened it in the meantime; keep the first
	if existing, ok := m.opened[name]; ok {
		closeSource(src)
		return existing, nil
	}
	m.opened[name] = src
	return src, nil
}

// resolveConfigPaths resolves relative file paths in config to absolute paths.
func (m *Manager) resolveConfigPaths(config map[string]string, baseDir string) map[string]string {
	if baseDir == "" {
		return config
	}

	resolved := make(map[string]string, len(config))
	for k, v := range config {
		if k == "path" && v != "" && v != ":memory:" && !filepath.IsAbs(v) {
			resolved[k] = filepath.Join(baseDir, v)
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

// IsOpen returns whether a source is currently cached.
func (m *Manager) IsOpen(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.opened[name]
	return ok
}

// InvalidateCache closes and forgets an opened source, forcing a reopen on next access.
func (m *Manager) InvalidateCache(name string) {
	m.mu.Lock()
	src, ok := m.opened[name]
	delete(m.opened, name)
	m.mu.Unlock()
	if ok {
		closeSource(src)
	}
}

// Close closes every opened source
func (m *Manager) Close() error {
	m.mu.Lock()
	opened := m.opened
	m.opened = make(map[string]Source)
	m.mu.Unlock()

	var errs []error
	for name, src := range opened {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close source %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func closeSource(src Source) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
