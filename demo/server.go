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

package demo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/config"
	"github.com/google/tablesync/core/server"
	"github.com/google/tablesync/datasources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// SourceName is the name the people table is registered under
const SourceName = "people"

// NewManager returns a data source manager with every loader registered.
// client is used by the http loader; nil means http.DefaultClient.
func NewManager(client *http.Client) *datasources.Manager {
	m := datasources.NewManager()
	m.RegisterLoader(NewLoader())
	m.RegisterLoader(datasources.NewJSONLoader())
	m.RegisterLoader(datasources.NewCSVLoader())
	m.RegisterLoader(datasources.NewSQLiteLoader())
	m.RegisterLoader(&datasources.HTTPLoader{Client: client})
	return m
}

// SourceConfig returns the registration of the configured people source
func SourceConfig(cfg *config.Config) datasources.SourceConfig {
	src := cfg.Source.DataSource(SourceName)
	if cfg.Source.Kind == "memory" {
		src.Config = map[string]string{
			"count": strconv.Itoa(cfg.Seed.Count),
			"seed":  strconv.FormatInt(cfg.Seed.RandomSeed, 10),
		}
	}
	return src
}

// OpenSource registers the configured people source with m and opens it
func OpenSource(ctx context.Context, cfg *config.Config, m *datasources.Manager) (datasources.Source, error) {
	m.AddSource(SourceConfig(cfg))
	src, err := m.Open(ctx, SourceName)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Setup is everything a running table server needs
type Setup struct {
	Server   *server.Server
	Manager  *datasources.Manager
	Registry *prometheus.Registry
}

// Close closes the opened data sources
func (s *Setup) Close() error {
	return s.Manager.Close()
}

// SetupServer opens the configured source and creates a server for it.
// Fetches are instrumented and the metrics are served on /metrics.
func SetupServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Setup, error) {
	manager := NewManager(nil)
	src, err := OpenSource(ctx, cfg, manager)
	if err != nil {
		return nil, err
	}
	logger.Info("opened data source", "kind", cfg.Source.Kind, "path", cfg.Source.Path, "url", cfg.Source.URL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := datasources.NewMetrics(reg)

	srv, err := server.NewServer(server.Options{
		Title:           "People",
		Source:          datasources.NewInstrumented(src, metrics, logger),
		Columns:         columns.PeopleColumns(),
		PageSizes:       cfg.Table.PageSizes,
		DefaultPageSize: cfg.Table.DefaultPageSize,
		MaxPageLinks:    cfg.Table.MaxPageLinks,
		CacheEntries:    cfg.Table.CacheEntries,
		Logger:          logger,
		Metrics:         metrics,
		Registry:        reg,
	})
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return &Setup{Server: srv, Manager: manager, Registry: reg}, nil
}
