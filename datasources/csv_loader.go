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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CSVOptions configures CSV import behavior
type CSVOptions struct {
	// Delimiter is the field delimiter (defaults to comma)
	Delimiter rune
}

// csvFields are the columns a people CSV must carry, in any order
var csvFields = []string{"id", "name", "age", "sex"}

// ImportCSVFile reads people from a CSV file with a header row
func ImportCSVFile(path string, options CSVOptions) ([]Person, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	people, err := ImportCSV(file, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return people, nil
}

// ImportCSV reads people from CSV data. The first row is a header naming
// the id, name, age and sex columns; header names are matched case
// insensitively and extra columns are ignored.
func ImportCSV(reader io.Reader, options CSVOptions) ([]Person, error) {
	csvReader := csv.NewReader(reader)
	if options.Delimiter != 0 {
		csvReader.Comma = options.Delimiter
	}
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, field := range csvFields {
		if _, ok := index[field]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", field)
		}
	}

	var people []Person
	for line := 2; ; line++ {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		get := func(field string) string {
			if i := index[field]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		age, err := strconv.Atoi(get("age"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid age %q", line, get("age"))
		}
		people = append(people, Person{
			ID:   get("id"),
			Name: get("name"),
			Age:  age,
			Sex:  get("sex"),
		})
	}
	return people, nil
}

// WriteCSV writes people as CSV with a header row
func WriteCSV(w io.Writer, people []Person) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvFields); err != nil {
		return err
	}
	for _, p := range people {
		if err := cw.Write([]string{p.ID, p.Name, strconv.Itoa(p.Age), p.Sex}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVLoader opens people CSV files. Config keys: "path" and optionally
// "delimiter" (a single character).
type CSVLoader struct{}

// NewCSVLoader creates a new CSV loader
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// SourceType returns "csv"
func (l *CSVLoader) SourceType() string {
	return "csv"
}

// Open implements Loader
func (l *CSVLoader) Open(_ context.Context, config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv source requires a path")
	}
	var options CSVOptions
	if d := config["delimiter"]; d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return nil, fmt.Errorf("delimiter %q must be a single character", d)
		}
		options.Delimiter = r
	}
	people, err := ImportCSVFile(path, options)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(PeopleRecords(people)), nil
}
