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

// tablesync-seed writes generated people for the json, csv and sqlite
// data sources.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/tablesync/datasources"
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
	var jsonPath, csvPath, sqlitePath string
	var count int
	var seed int64

	flagSet := pflag.NewFlagSet("tablesync-seed", pflag.ContinueOnError)
	flagSet.StringVar(&jsonPath, "json", "", "write people to this JSON file")
	flagSet.StringVar(&csvPath, "csv", "", "write people to this CSV file")
	flagSet.StringVar(&sqlitePath, "sqlite", "", "insert people into this SQLite database")
	flagSet.IntVarP(&count, "count", "n", demo.DefaultPeopleCount, "number of people")
	flagSet.Int64Var(&seed, "seed", 1, "random seed")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if jsonPath == "" && csvPath == "" && sqlitePath == "" {
		return fmt.Errorf("nothing to do: pass --json, --csv or --sqlite")
	}
	if count < 0 {
		return fmt.Errorf("--count must not be negative")
	}

	people := demo.GeneratePeople(count, seed)

	if jsonPath != "" {
		if err := demo.WriteJSON(jsonPath, people); err != nil {
			return err
		}
		fmt.Printf("wrote %d people to %s\n", len(people), jsonPath)
	}

	if csvPath != "" {
		if err := demo.WriteCSVFile(csvPath, people); err != nil {
			return err
		}
		fmt.Printf("wrote %d people to %s\n", len(people), csvPath)
	}

	if sqlitePath != "" {
		ctx := context.Background()
		db, err := datasources.OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := demo.SeedSQLite(ctx, db, people); err != nil {
			return err
		}
		fmt.Printf("inserted %d people into %s\n", len(people), sqlitePath)
	}
	return nil
}
