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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for page fetches
type Metrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	StaleDiscards prometheus.Counter
}

// NewMetrics creates the fetch collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablesync_fetch_total",
				Help: "Total number of page fetches by result.",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tablesync_fetch_duration_seconds",
				Help:    "Latency of page fetches in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		StaleDiscards: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tablesync_stale_discards_total",
				Help: "Fetch results discarded because the table state moved on.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector owned by m
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.FetchTotal, m.FetchDuration, m.StaleDiscards}
}

// Instrumented wraps a Source with metrics and logging
type Instrumented struct {
	source  Source
	metrics *Metrics
	logger  *slog.Logger
}

// NewInstrumented wraps source. Nil metrics or logger disable that concern.
func NewInstrumented(source Source, metrics *Metrics, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Instrumented{source: source, metrics: metrics, logger: logger}
}

// Unwrap returns the wrapped source
func (s *Instrumented) Unwrap() Source {
	return s.source
}

// FetchPage implements Source
func (s *Instrumented) FetchPage(ctx context.Context, req Request) (Page, error) {
	start := time.Now()
	page, err := s.source.FetchPage(ctx, req)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
	}
	if s.metrics != nil {
		s.metrics.FetchTotal.WithLabelValues(result).Inc()
		s.metrics.FetchDuration.Observe(elapsed.Seconds())
	}

	if err != nil {
		s.logger.Warn("page fetch failed",
			"page", req.PageIndex+1, "per_page", req.PageSize, "sort", req.Sort.String(),
			"duration", elapsed, "error", err)
		return page, err
	}
	s.logger.Debug("page fetched",
		"page", req.PageIndex+1, "per_page", req.PageSize, "sort", req.Sort.String(),
		"records", len(page.Records), "total_pages", page.TotalPages, "duration", elapsed)
	return page, nil
}

// Close closes the wrapped source when it holds resources
func (s *Instrumented) Close() error {
	if c, ok := s.source.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
