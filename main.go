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

// tablesync serves a paginated people table whose URL carries the whole
// view: page, page size, sort order and grouping. Records come from
// generated sample data, a JSON or CSV file, a SQLite database, or another
// tablesync server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/tablesync/core/config"
	"github.com/google/tablesync/demo"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, listen, sourceKind, sourcePath, sourceURL, logLevel string
	var seedCount int

	flagSet := pflag.NewFlagSet("tablesync", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address")
	flagSet.StringVar(&sourceKind, "source", "", "data source kind: memory, json, csv, sqlite or http")
	flagSet.StringVar(&sourcePath, "source-path", "", "JSON or CSV file, or SQLite database path")
	flagSet.StringVar(&sourceURL, "source-url", "", "base URL of a remote tablesync server")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.IntVar(&seedCount, "seed-count", 0, "number of generated people for the memory source")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Listen = listen
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
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flagSet.Changed("seed-count") {
		cfg.Seed.Count = seedCount
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := demo.SetupServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer setup.Close()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           setup.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving", "url", "http://"+cfg.Listen+"/people")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
