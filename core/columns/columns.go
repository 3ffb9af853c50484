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

package columns

import (
	"fmt"
	"strings"

	"github.com/google/tablesync/core/query"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Def describes one table column and what the user may do with it.
// Capabilities are declared up front instead of being probed at runtime.
type Def struct {
	ID        string // must not contain any of the following characters: & = , and must not start with -
	Header    string // optional display name, derived from ID when empty
	Sortable  bool
	Groupable bool
	Hideable  bool
}

// DisplayName returns the header text for the column
func (d Def) DisplayName() string {
	if d.Header != "" {
		return d.Header
	}
	// a Caser keeps state, so each call gets its own
	return cases.Title(language.English).String(strings.ReplaceAll(d.ID, "_", " "))
}

// Set is the ordered list of columns of a table
type Set []Def

// Lookup finds a column by ID
func (s Set) Lookup(id string) (Def, bool) {
	for _, d := range s {
		if d.ID == id {
			return d, true
		}
	}
	return Def{}, false
}

// IDs returns the column IDs in display order
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, d := range s {
		ids = append(ids, d.ID)
	}
	return ids
}

// Header returns the display name of a column, or the ID itself when the
// column is unknown
func (s Set) Header(id string) string {
	if d, ok := s.Lookup(id); ok {
		return d.DisplayName()
	}
	return id
}

// Visible returns the columns that are not hidden, in display order
func (s Set) Visible(visibility VisibilityState) Set {
	out := make(Set, 0, len(s))
	for _, d := range s {
		if visibility.IsVisible(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks that IDs are unique and safe to embed in a query string
func (s Set) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, d := range s {
		if d.ID == "" {
			return fmt.Errorf("column ID must not be empty")
		}
		if strings.ContainsAny(d.ID, "&=,") || strings.HasPrefix(d.ID, "-") {
			return fmt.Errorf("column ID %q contains a reserved character", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate column ID %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// VisibilityState maps column IDs to visibility. Absent columns are visible.
type VisibilityState map[string]bool

// IsVisible reports whether the column is shown
func (v VisibilityState) IsVisible(id string) bool {
	visible, ok := v[id]
	return !ok || visible
}

// Clone returns an independent copy
func (v VisibilityState) Clone() VisibilityState {
	out := make(VisibilityState, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ToggleSort returns the sort spec produced by clicking a column header.
// The clicked column replaces any existing sort: an unsorted or descending
// column becomes ascending, an ascending column becomes descending.
func ToggleSort(current query.SortSpec, id string) query.SortSpec {
	desc, sorted := current.Direction(id)
	return query.SortSpec{{Name: id, Descending: sorted && !desc}}
}

// PeopleColumns returns the column set of the people table
func PeopleColumns() Set {
	return Set{
		{ID: "id", Header: "ID", Hideable: true},
		{ID: "name", Sortable: true, Groupable: true, Hideable: true},
		{ID: "age", Sortable: true, Hideable: true},
		{ID: "sex", Sortable: true, Groupable: true, Hideable: true},
	}
}
