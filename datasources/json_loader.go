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
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// PeopleFile is the layout of a people data file: {"people": [...]}
type PeopleFile struct {
	People []Person `json:"people"`
}

// ParsePeople decodes a people data file. Comments and trailing commas are
// accepted.
func ParsePeople(data []byte) ([]Person, error) {
	var file PeopleFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("failed to parse people file: %w", err)
	}
	return file.People, nil
}

// LoadJSONFile reads a people data file into a MemorySource
func LoadJSONFile(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	people, err := ParsePeople(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMemorySource(PeopleRecords(people)), nil
}

// JSONLoader opens people data files. Config keys: "path".
type JSONLoader struct{}

// NewJSONLoader creates a new JSON file loader
func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

// SourceType returns "json"
func (l *JSONLoader) SourceType() string {
	return "json"
}

// Open implements Loader
func (l *JSONLoader) Open(_ context.Context, config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("json source requires a path")
	}
	return LoadJSONFile(path)
}
