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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/google/tablesync/datasources"
	"github.com/google/uuid"
)

// Sample data configuration
const (
	DefaultPeopleCount = 1000
	MinAge             = 1
	MaxAge             = 75
)

var firstNames = []string{
	"Ana", "Beatriz", "Bruna", "Camila", "Carla", "Clara", "Daniela", "Eduarda",
	"Fernanda", "Gabriela", "Helena", "Isabela", "Júlia", "Larissa", "Luana", "Manuela",
	"Mariana", "Natália", "Patrícia", "Rafaela", "Sofia", "Valentina", "Vitória", "Yasmin",
	"Antônio", "Arthur", "Bernardo", "Bruno", "Caio", "Carlos", "Davi", "Eduardo",
	"Felipe", "Gabriel", "Gustavo", "Heitor", "João", "Leonardo", "Lucas", "Matheus",
	"Miguel", "Nicolas", "Paulo", "Pedro", "Rafael", "Samuel", "Thiago", "Vinícius",
}

var sexes = []string{"female", "male"}

// GeneratePeople creates n people. The same seed always yields the same people.
// IDs are the first segment of a random UUID.
func GeneratePeople(n int, seed int64) []datasources.Person {
	rng := rand.New(rand.NewSource(seed))
	people := make([]datasources.Person, n)
	for i := range people {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			// math/rand never fails to read
			panic(fmt.Sprintf("failed to generate id: %v", err))
		}
		people[i] = datasources.Person{
			ID:   strings.SplitN(id.String(), "-", 2)[0],
			Name: firstNames[rng.Intn(len(firstNames))],
			Age:  MinAge + rng.Intn(MaxAge-MinAge+1),
			Sex:  sexes[rng.Intn(len(sexes))],
		}
	}
	return people
}

// MarshalPeople encodes people in the data file layout, indented
func MarshalPeople(people []datasources.Person) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(datasources.PeopleFile{People: people}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes people to a data file readable by datasources.LoadJSONFile
func WriteJSON(path string, people []datasources.Person) error {
	data, err := MarshalPeople(people)
	if err != nil {
		return fmt.Errorf("failed to encode people: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteCSVFile writes people to a CSV file readable by the csv source
func WriteCSVFile(path string, people []datasources.Person) error {
	var buf bytes.Buffer
	if err := datasources.WriteCSV(&buf, people); err != nil {
		return fmt.Errorf("failed to encode people: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SeedSQLite inserts people into a SQLite source that holds no rows yet
func SeedSQLite(ctx context.Context, src *datasources.SQLiteSource, people []datasources.Person) error {
	n, err := src.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("people table already holds %d rows", n)
	}
	return src.Insert(ctx, people)
}

// Loader generates an in-memory people table. Config keys: "count" and
// "seed", both optional.
type Loader struct{}

// NewLoader creates a new demo loader
func NewLoader() *Loader {
	return &Loader{}
}

// SourceType returns "memory"
func (l *Loader) SourceType() string {
	return "memory"
}

// Open implements datasources.Loader
func (l *Loader) Open(_ context.Context, config map[string]string) (datasources.Source, error) {
	count := DefaultPeopleCount
	if s := config["count"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count %q", s)
		}
		count = n
	}
	var seed int64 = 1
	if s := config["seed"]; s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q", s)
		}
		seed = n
	}
	return datasources.NewMemorySource(datasources.PeopleRecords(GeneratePeople(count, seed))), nil
}
