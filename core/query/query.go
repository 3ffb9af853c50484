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

package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/safehtml"
)

// URL parameter names
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSort    = "sort"
	ParamGroup   = "group"
)

// DefaultPageSize is used when per_page is absent or malformed
const DefaultPageSize = 10

// SortColumn is one entry of a sort specification
type SortColumn struct {
	Name       string
	Descending bool
}

// SortSpec is an ordered list of sort columns, primary first
type SortSpec []SortColumn

// Query represents the parsed state of a table view URL
type Query struct {
	// Base path (e.g., "/people")
	Path string

	PageIndex int      // 0-based page index (the URL carries it 1-based)
	PageSize  int      // Rows per page
	Sort      SortSpec // Server-side sort order
	Group     string   // Grouped column, empty when ungrouped
}

// Mutation is a single change to a URL query string.
// Delete removes Key; otherwise Key is set to Value.
type Mutation struct {
	Key    string
	Value  string
	Delete bool
}

// NewQuery creates a Query from a URL
func NewQuery(u *url.URL) *Query {
	q := Decode(u.Query())
	q.Path = u.Path
	return q
}

// ParseQuery decodes a raw query string such as "page=2&sort=-age".
// A leading "?" is accepted. Unparseable input decodes to the defaults.
func ParseQuery(raw string) *Query {
	// url.ParseQuery keeps every pair it could parse, so the error is dropped
	values, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	return Decode(values)
}

// Decode extracts the table state from query parameters.
// Missing or malformed values fall back to their defaults.
func Decode(values url.Values) *Query {
	state := &Query{
		PageIndex: 0,
		PageSize:  DefaultPageSize,
		Sort:      SortSpec{},
	}

	// page is 1-based in the URL; anything below 1 clamps to the first page
	if pageStr := values.Get(ParamPage); pageStr != "" {
		if page, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && page > 1 {
			state.PageIndex = page - 1
		}
	}

	if perPageStr := values.Get(ParamPerPage); perPageStr != "" {
		if perPage, err := strconv.Atoi(strings.TrimSpace(perPageStr)); err == nil && perPage > 0 {
			state.PageSize = perPage
		}
	}

	state.Sort = ParseSort(values.Get(ParamSort))
	state.Group = values.Get(ParamGroup)

	return state
}

// ParseSort parses the comma separated sort form ("-age,name").
// Empty tokens are skipped.
func ParseSort(s string) SortSpec {
	spec := SortSpec{}
	if s == "" {
		return spec
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if name == "" {
			continue
		}
		spec = append(spec, SortColumn{Name: name, Descending: desc})
	}
	return spec
}

// String returns the URL token form of the sort spec
func (s SortSpec) String() string {
	parts := make([]string, 0, len(s))
	for _, sc := range s {
		if sc.Descending {
			parts = append(parts, "-"+sc.Name)
		} else {
			parts = append(parts, sc.Name)
		}
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of the sort spec that shares no memory with s
func (s SortSpec) Clone() SortSpec {
	out := make(SortSpec, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both specs list the same columns in the same order
func (s SortSpec) Equal(other SortSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Direction returns the sort direction of a column and whether it is sorted at all
func (s SortSpec) Direction(name string) (descending bool, sorted bool) {
	for _, sc := range s {
		if sc.Name == name {
			return sc.Descending, true
		}
	}
	return false, false
}

// PageMutation writes the 1-based page number
func PageMutation(pageIndex int) Mutation {
	return Mutation{Key: ParamPage, Value: strconv.Itoa(pageIndex + 1)}
}

// PageSizeMutation writes per_page
func PageSizeMutation(pageSize int) Mutation {
	return Mutation{Key: ParamPerPage, Value: strconv.Itoa(pageSize)}
}

// SortMutation writes sort, or removes it when the spec is empty
func SortMutation(spec SortSpec) Mutation {
	if len(spec) == 0 {
		return Mutation{Key: ParamSort, Delete: true}
	}
	return Mutation{Key: ParamSort, Value: spec.String()}
}

// GroupMutation writes group, or removes it when grouping is cleared
func GroupMutation(group string) Mutation {
	if group == "" {
		return Mutation{Key: ParamGroup, Delete: true}
	}
	return Mutation{Key: ParamGroup, Value: group}
}

// Encode returns the mutations that make a URL reflect the query state
func Encode(q *Query) []Mutation {
	return []Mutation{
		PageMutation(q.PageIndex),
		PageSizeMutation(q.PageSize),
		SortMutation(q.Sort),
		GroupMutation(q.Group),
	}
}

// Apply returns a copy of values with the mutations applied in order.
// The input is never modified.
func Apply(values url.Values, muts []Mutation) url.Values {
	out := make(url.Values, len(values)+len(muts))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	for _, m := range muts {
		if m.Delete {
			out.Del(m.Key)
		} else {
			out.Set(m.Key, m.Value)
		}
	}
	return out
}

// Clone creates a deep copy of the Query
func (s *Query) Clone() *Query {
	return &Query{
		Path:      s.Path,
		PageIndex: s.PageIndex,
		PageSize:  s.PageSize,
		Sort:      s.Sort.Clone(),
		Group:     s.Group,
	}
}

// Values returns the query parameters for this state
func (s *Query) Values() url.Values {
	return Apply(nil, Encode(s))
}

// ToURL converts the Query back to a URL string
func (s *Query) ToURL() string {
	u := &url.URL{
		Path:     s.Path,
		RawQuery: s.Values().Encode(),
	}
	return u.String()
}

// ToSafeURL converts the Query to a safehtml.URL
func (s *Query) ToSafeURL() safehtml.URL {
	return safehtml.URLSanitized(s.ToURL())
}

// WithPage returns a copy of the query on another page
func (s *Query) WithPage(pageIndex int) *Query {
	newState := s.Clone()
	newState.PageIndex = pageIndex
	return newState
}
