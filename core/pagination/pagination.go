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

// Package pagination computes which page links a table exposes and
// validates the page sizes a table accepts.
package pagination

import (
	"fmt"
	"slices"
)

// Window returns the half-open range [start, end) of 0-based page indices
// to show as links. The window is centered on currentPage and shifted left
// when it would run past the last page, so it never holds more than
// min(maxPages, totalPages) entries. An unknown or empty page count yields
// an empty window.
func Window(currentPage, maxPages, totalPages int) (start, end int) {
	if totalPages <= 0 {
		return 0, 0
	}
	if maxPages < 1 {
		maxPages = 1
	}
	currentPage = min(currentPage, totalPages-1)
	start = max(currentPage-maxPages/2, 0)
	last := start + maxPages - 1
	if last >= totalPages {
		last = totalPages - 1
		start = max(last-maxPages+1, 0)
	}
	return start, last + 1
}

// Pages lists the page indices in [start, end)
func Pages(start, end int) []int {
	if end <= start {
		return []int{}
	}
	pages := make([]int, 0, end-start)
	for p := start; p < end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// TotalPages converts a row count into a page count
func TotalPages(totalRows, pageSize int) int {
	if totalRows <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalRows + pageSize - 1) / pageSize
}

// Links describes the pagination bar below a table
type Links struct {
	Current          int   // 0-based current page
	Total            int   // Total number of pages
	Pages            []int // Page indices inside the window
	LeadingEllipsis  bool  // Pages exist before the window
	TrailingEllipsis bool  // Pages exist after the window
	HasPrevious      bool
	HasNext          bool
}

// NewLinks builds the pagination bar for the current page
func NewLinks(currentPage, maxPages, totalPages int) Links {
	start, end := Window(currentPage, maxPages, totalPages)
	return Links{
		Current:          currentPage,
		Total:            totalPages,
		Pages:            Pages(start, end),
		LeadingEllipsis:  start > 0,
		TrailingEllipsis: end < totalPages,
		HasPrevious:      totalPages > 0 && currentPage > 0,
		HasNext:          currentPage+1 < totalPages,
	}
}

// PageSizes is the fixed set of page sizes a table offers, ascending
type PageSizes []int

// DefaultPageSizes mirrors the rows-per-page selector
var DefaultPageSizes = PageSizes{10, 20, 50, 100}

// Contains reports whether n is an allowed page size
func (p PageSizes) Contains(n int) bool {
	return slices.Contains(p, n)
}

// Default returns the smallest allowed page size
func (p PageSizes) Default() int {
	if len(p) == 0 {
		return DefaultPageSizes[0]
	}
	return p[0]
}

// Next returns the allowed size after n, or n itself at the top of the list
func (p PageSizes) Next(n int) int {
	for _, size := range p {
		if size > n {
			return size
		}
	}
	return n
}

// Previous returns the allowed size before n, or n itself at the bottom
func (p PageSizes) Previous(n int) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] < n {
			return p[i]
		}
	}
	return n
}

// Validate checks that the set is non-empty, positive and strictly ascending
func (p PageSizes) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("page sizes must not be empty")
	}
	for i, size := range p {
		if size <= 0 {
			return fmt.Errorf("page size %d must be positive", size)
		}
		if i > 0 && size <= p[i-1] {
			return fmt.Errorf("page sizes must be strictly ascending, got %d after %d", size, p[i-1])
		}
	}
	return nil
}
