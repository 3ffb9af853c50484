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
	"slices"

	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/pagination"
	"github.com/google/tablesync/core/query"
)

// MemorySource serves pages from an in-memory slice of records.
// The slice is never modified; each request sorts a copy.
type MemorySource struct {
	records []Record
}

// NewMemorySource creates a source over records in their natural order
func NewMemorySource(records []Record) *MemorySource {
	return &MemorySource{records: slices.Clone(records)}
}

// Len returns the number of records
func (s *MemorySource) Len() int {
	return len(s.records)
}

// FetchPage implements Source
func (s *MemorySource) FetchPage(ctx context.Context, req Request) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	ordered := s.records
	if len(req.Sort) > 0 {
		ordered = slices.Clone(s.records)
		slices.SortStableFunc(ordered, func(a, b Record) int {
			return compareRecords(a, b, req.Sort)
		})
	}

	total := pagination.TotalPages(len(ordered), req.PageSize)
	// checked before multiplying so a huge index cannot overflow start
	if req.PageIndex >= total {
		return Page{Records: []Record{}, TotalPages: total}, nil
	}
	start := req.PageIndex * req.PageSize
	end := min(start+req.PageSize, len(ordered))
	return Page{Records: slices.Clone(ordered[start:end]), TotalPages: total}, nil
}

// compareRecords orders two records by the sort spec, primary column first
func compareRecords(a, b Record, spec query.SortSpec) int {
	for _, sc := range spec {
		av, _ := a.Value(sc.Name)
		bv, _ := b.Value(sc.Name)
		c := columns.Compare(av, bv)
		if c == 0 {
			continue
		}
		if sc.Descending {
			return -c
		}
		return c
	}
	return 0
}
