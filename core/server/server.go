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

// Package server serves the people table over HTTP: an HTML view whose
// URL carries the full table state, and a JSON page endpoint that
// implements the paginated data source contract for remote clients.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/safehtml"
	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/controller"
	"github.com/google/tablesync/core/pagination"
	"github.com/google/tablesync/core/rendering"
	"github.com/google/tablesync/core/views"
	"github.com/google/tablesync/datasources"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TablePath is the path of the HTML table
const TablePath = "/people"

// Options configures a Server
type Options struct {
	Title           string
	Source          datasources.Source
	Columns         columns.Set
	PageSizes       pagination.PageSizes
	DefaultPageSize int
	MaxPageLinks    int
	CacheEntries    int
	Logger          *slog.Logger
	Metrics         *datasources.Metrics
	// Registry is served on /metrics; nil disables the endpoint
	Registry *prometheus.Registry
}

// Server represents the application server with all its dependencies
type Server struct {
	opts     Options
	logger   *slog.Logger
	renderer *rendering.TableRenderer
}

// NewServer creates a new server
func NewServer(opts Options) (*Server, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("server requires a data source")
	}
	if err := opts.Columns.Validate(); err != nil {
		return nil, fmt.Errorf("invalid columns: %w", err)
	}
	if len(opts.PageSizes) == 0 {
		opts.PageSizes = pagination.DefaultPageSizes
	}
	if opts.MaxPageLinks < 1 {
		opts.MaxPageLinks = 10
	}
	if opts.Title == "" {
		opts.Title = "People"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	renderer, err := rendering.NewTableRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return &Server{
		opts:     opts,
		logger:   opts.Logger,
		renderer: renderer,
	}, nil
}

// Handler returns the HTTP handler serving every endpoint, gzip-compressed
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.HandleFunc("GET "+TablePath, s.handleTable)
	mux.HandleFunc("GET "+datasources.PeoplePath, s.handlePeopleAPI)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	if s.opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	}
	return gzhttp.GzipHandler(s.logRequests(mux))
}

// TimingCollector collects timing measurements for various operations
type TimingCollector struct {
	entries []views.TimingEntry
	start   time.Time
}

// NewTimingCollector creates a new timing collector
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{start: time.Now()}
}

// Record records a timing entry
func (tc *TimingCollector) Record(operation string, duration time.Duration) {
	tc.entries = append(tc.entries, views.TimingEntry{
		Operation:  operation,
		DurationMs: fmt.Sprintf("%.2f", float64(duration.Microseconds())/1000.0),
	})
}

// GetEntries returns all timing entries
func (tc *TimingCollector) GetEntries() []views.TimingEntry {
	return tc.entries
}

// TotalMs returns total elapsed time in milliseconds as formatted string
func (tc *TimingCollector) TotalMs() string {
	return fmt.Sprintf("%.2f", float64(time.Since(tc.start).Microseconds())/1000.0)
}

// NewController creates a table controller for a request URL query
func (s *Server) NewController(r *http.Request) *controller.Controller {
	values := r.URL.Query()
	c := controller.New(values, controller.Options{
		Columns:         s.opts.Columns,
		PageSizes:       s.opts.PageSizes,
		DefaultPageSize: s.opts.DefaultPageSize,
		URLSync:         true,
		CacheEntries:    s.opts.CacheEntries,
		Logger:          s.logger,
		Metrics:         s.opts.Metrics,
	})
	views.ApplyPresentation(c, values)
	return c
}

// handleTable renders the HTML table. A request whose URL is not canonical
// (disallowed page size, unknown sort column, page past the end) is
// redirected to the canonical URL.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	timing := NewTimingCollector()

	decodeStart := time.Now()
	c := s.NewController(r)
	mount := c.Mount()
	timing.Record("Decode URL", time.Since(decodeStart))

	fetchStart := time.Now()
	muts, fetchErr := c.Settle(r.Context(), s.opts.Source, mount.Fetch)
	timing.Record("Fetch Page", time.Since(fetchStart))

	if len(mount.Mutations) > 0 || len(muts) > 0 {
		http.Redirect(w, r, views.CanonicalURL(c, r.URL.Path), http.StatusFound)
		return
	}
	if fetchErr != nil {
		s.logger.Warn("rendering table without fresh data", "error", fetchErr)
	}

	vmStart := time.Now()
	vm := views.BuildViewModel(c, r.URL.Path, s.opts.Title, s.opts.MaxPageLinks)
	timing.Record("Build ViewModel", time.Since(vmStart))
	vm.RenderTimeMs = timing.TotalMs()
	vm.TimingBreakdown = timing.GetEntries()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, vm); err != nil {
		// the renderer may have already written part of the response
		s.logger.Error("template rendering failed", "error", err)
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	vm := views.LandingViewModel{
		Title:    s.opts.Title,
		Subtitle: "A paginated table whose URL reproduces the exact view",
		Tables: []views.TableInfo{
			{
				Name:        s.opts.Title,
				Description: "Sort by clicking a header, group by one column, hide columns, and page through the records.",
				URL:         safehtml.URLSanitized(TablePath),
				ColumnCount: len(s.opts.Columns),
			},
		},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderLanding(w, vm); err != nil {
		s.logger.Error("template rendering failed", "error", err)
	}
}

// handlePeopleAPI serves one page as JSON
func (s *Server) handlePeopleAPI(w http.ResponseWriter, r *http.Request) {
	req := datasources.RequestFromValues(r.URL.Query())
	if err := s.validateRequest(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	page, err := s.opts.Source.FetchPage(r.Context(), req)
	if err != nil {
		if errors.Is(err, datasources.ErrInvalidRequest) {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Warn("page fetch failed", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("data source unavailable"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(datasources.NewPageResponse(page)); err != nil {
		s.logger.Error("failed to encode page", "error", err)
	}
}

func (s *Server) validateRequest(req datasources.Request) error {
	if largest := s.opts.PageSizes[len(s.opts.PageSizes)-1]; req.PageSize > largest {
		return fmt.Errorf("%w: per_page %d exceeds %d", datasources.ErrInvalidRequest, req.PageSize, largest)
	}
	for _, sc := range req.Sort {
		def, ok := s.opts.Columns.Lookup(sc.Name)
		if !ok || !def.Sortable {
			return fmt.Errorf("%w: cannot sort by %q", datasources.ErrInvalidRequest, sc.Name)
		}
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
