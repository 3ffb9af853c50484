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

// Package rows derives the displayed row tree from one fetched page.
// Grouping, filtering, expansion and column visibility are applied
// locally; the page itself is never refetched for them.
package rows

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/datasources"
)

// Kind distinguishes leaf rows from group rows
type Kind int

const (
	// LeafRow displays exactly one record
	LeafRow Kind = iota
	// GroupRow stands for all records sharing the grouped column's value
	GroupRow
)

// Cell is one displayed value
type Cell struct {
	Column string
	Value  string
	// Placeholder marks a cell whose value is implied by its group row
	Placeholder bool
	// Grouped marks the grouped column's cell in a group row
	Grouped bool
}

// Input is everything the row tree depends on
type Input struct {
	Records    []datasources.Record
	Columns    columns.Set
	Visibility columns.VisibilityState
	Grouping   string
	Expanded   map[string]bool
	Filters    map[string]string
}

// Row is one row of the tree
type Row struct {
	Kind     Kind
	Depth    int
	Record   datasources.Record // nil for group rows
	Cells    []Cell
	GroupKey string // formatted value of the grouped column
	Count    int    // member records of a group row
	Expanded bool

	members  []datasources.Record
	tree     *Tree
	once     sync.Once
	children []*Row
}

// Children returns the member leaf rows of a group row, built on first use.
// Leaf rows have no children.
func (r *Row) Children() []*Row {
	if r.Kind != GroupRow {
		return nil
	}
	r.once.Do(func() {
		r.children = make([]*Row, len(r.members))
		for i, rec := range r.members {
			r.children[i] = r.tree.leaf(rec, 1)
		}
	})
	return r.children
}

// Tree is the derived, read-only display model of one page
type Tree struct {
	Columns  columns.Set // visible columns in display order
	Grouping string
	Rows     []*Row

	leaves int
}

// Build derives the row tree. Filters apply before grouping.
func Build(in Input) *Tree {
	tree := &Tree{
		Columns:  in.Columns.Visible(in.Visibility),
		Grouping: in.Grouping,
	}

	records := filter(in.Records, in.Filters)
	tree.leaves = len(records)

	if in.Grouping == "" {
		tree.Rows = make([]*Row, len(records))
		for i, rec := range records {
			tree.Rows[i] = tree.leaf(rec, 0)
		}
		return tree
	}

	// Partition by value, keeping first-seen order of distinct values
	var order []string
	groups := make(map[string]*Row)
	for _, rec := range records {
		v, _ := rec.Value(in.Grouping)
		key := FormatValue(v)
		g, ok := groups[key]
		if !ok {
			g = &Row{
				Kind:     GroupRow,
				GroupKey: key,
				Expanded: in.Expanded[key],
				tree:     tree,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, rec)
	}

	tree.Rows = make([]*Row, len(order))
	for i, key := range order {
		g := groups[key]
		g.Count = len(g.members)
		g.Cells = tree.groupCells(key)
		tree.Rows[i] = g
	}
	return tree
}

func (t *Tree) leaf(rec datasources.Record, depth int) *Row {
	cells := make([]Cell, len(t.Columns))
	for i, col := range t.Columns {
		if depth > 0 && col.ID == t.Grouping {
			cells[i] = Cell{Column: col.ID, Placeholder: true}
			continue
		}
		v, _ := rec.Value(col.ID)
		cells[i] = Cell{Column: col.ID, Value: FormatValue(v)}
	}
	return &Row{Kind: LeafRow, Depth: depth, Record: rec, Cells: cells, tree: t}
}

func (t *Tree) groupCells(key string) []Cell {
	cells := make([]Cell, len(t.Columns))
	for i, col := range t.Columns {
		if col.ID == t.Grouping {
			cells[i] = Cell{Column: col.ID, Value: key, Grouped: true}
		} else {
			cells[i] = Cell{Column: col.ID, Placeholder: true}
		}
	}
	return cells
}

// Flatten returns the rows in display order: each expanded group row is
// followed by its members.
func (t *Tree) Flatten() []*Row {
	out := make([]*Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r)
		if r.Kind == GroupRow && r.Expanded {
			out = append(out, r.Children()...)
		}
	}
	return out
}

// GroupCount returns the number of group rows
func (t *Tree) GroupCount() int {
	if t.Grouping == "" {
		return 0
	}
	return len(t.Rows)
}

// LeafCount returns the number of records that survived filtering
func (t *Tree) LeafCount() int {
	return t.leaves
}

// Group returns the group row with the given key
func (t *Tree) Group(key string) (*Row, bool) {
	for _, r := range t.Rows {
		if r.Kind == GroupRow && r.GroupKey == key {
			return r, true
		}
	}
	return nil, false
}

func filter(records []datasources.Record, filters map[string]string) []datasources.Record {
	active := make(map[string]string, len(filters))
	for col, needle := range filters {
		if needle = strings.TrimSpace(needle); needle != "" {
			active[col] = strings.ToLower(needle)
		}
	}
	if len(active) == 0 {
		return records
	}

	out := make([]datasources.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, active) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec datasources.Record, filters map[string]string) bool {
	for col, needle := range filters {
		v, ok := rec.Value(col)
		if !ok || !strings.Contains(strings.ToLower(FormatValue(v)), needle) {
			return false
		}
	}
	return true
}

// FormatValue returns the display form of a cell value. Missing values
// format as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
