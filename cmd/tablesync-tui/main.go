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

// tablesync-tui browses the people table in the terminal. The initial view
// is taken from a URL query string (--query), and the query string of the
// current view is printed on exit so it can be pasted into the web UI.
//
// When stdout is not a terminal, or with --dump, the first page is printed
// as a static table instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/config"
	"github.com/google/tablesync/core/controller"
	"github.com/google/tablesync/core/tui"
	"github.com/google/tablesync/datasources"
	"github.com/google/tablesync/demo"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, rawQuery, sourceKind, sourcePath, sourceURL string
	var dump bool

	flagSet := pflag.NewFlagSet("tablesync-tui", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $"+config.EnvConfig+")")
	flagSet.StringVarP(&rawQuery, "query", "q", "", "initial view as a URL query, e.g. \"page=2&sort=-age\"")
	flagSet.StringVar(&sourceKind, "source", "", "data source kind: memory, json, csv, sqlite or http")
	flagSet.StringVar(&sourcePath, "source-path", "", "JSON or CSV file, or SQLite database path")
	flagSet.StringVar(&sourceURL, "source-url", "", "base URL of a remote tablesync server")
	flagSet.BoolVar(&dump, "dump", false, "print the page and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if flagSet.Changed("source") {
		cfg.Source.Kind = sourceKind
	}
	if flagSet.Changed("source-path") {
		cfg.Source.Path = sourcePath
	}
	if flagSet.Changed("source-url") {
		cfg.Source.URL = sourceURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	// The terminal owns stdout, so logs only go to stderr when dumping
	logger := cfg.NewLogger(os.Stderr)
	interactive := !dump && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		logger = cfg.NewLogger(io.Discard)
	}

	ctx := context.Background()
	manager := demo.NewManager(nil)
	defer manager.Close()
	src, err := demo.OpenSource(ctx, cfg, manager)
	if err != nil {
		return err
	}
	metrics := datasources.NewMetrics(nil)
	source := datasources.NewInstrumented(src, metrics, logger)

	c := controller.New(values, controller.Options{
		Columns:         columns.PeopleColumns(),
		PageSizes:       cfg.Table.PageSizes,
		DefaultPageSize: cfg.Table.DefaultPageSize,
		URLSync:         cfg.Table.URLSync,
		CacheEntries:    cfg.Table.CacheEntries,
		Logger:          logger,
		Metrics:         metrics,
	})

	if !interactive {
		mount := c.Mount()
		if _, err := c.Settle(ctx, source, mount.Fetch); err != nil {
			logger.Warn("fetch failed", "error", err)
		}
		fmt.Print(tui.Dump(c))
		return nil
	}

	model := tui.New(ctx, c, source, "People")
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if qs := c.QueryString(); qs != "" {
		fmt.Println("?" + qs)
	}
	return nil
}
