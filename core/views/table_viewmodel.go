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

// Package views turns controller state into template-ready view models.
// Every link a view model carries is computed by cloning the controller,
// applying the transition the link stands for, and encoding the clone's URL.
package views

import (
	"net/url"
	"slices"
	"strings"

	"github.com/google/safehtml"
	"github.com/google/tablesync/core/controller"
	"github.com/google/tablesync/core/pagination"
	"github.com/google/tablesync/core/rows"
)

// Presentation-only URL keys. The HTML table is rendered on the server, so
// column visibility, expansion and filters travel in the URL as well; they
// are owned here and never read by the controller's codec.
const (
	ParamHide         = "hide"     // repeated: hidden column IDs
	ParamExpanded     = "expanded" // repeated: expanded group keys
	ParamFilterPrefix = "filter_"  // filter_<column>=<substring>
)

// TableViewModel contains the table formatted for template consumption
type TableViewModel struct {
	Title       string
	CurrentURL  safehtml.URL
	QueryString string // canonical table query

	Headers    []HeaderInfo
	Rows       []RowInfo
	Columns    []ColumnToggle // every column with its visibility toggle
	Pagination PaginationInfo
	PageSizes  []PageSizeOption
	Grouping   string
	Filters    []FilterInfo

	// Records on the displayed page before filtering
	RecordCount int
	// Records left after filtering
	DisplayedRecords int

	// Data source state
	Loading bool
	Failed  bool
	Error   string

	// Timing info
	RenderTimeMs    string
	TimingBreakdown []TimingEntry
}

// HeaderInfo describes one visible column header
type HeaderInfo struct {
	ID          string
	DisplayName string

	Sortable      bool
	SortURL       safehtml.URL // header click: toggles the sort
	SortIndicator string       // "▲", "▼" or empty

	Groupable     bool
	IsGrouped     bool
	GroupURL      safehtml.URL // groups by this column, or clears grouping
	GroupDisabled bool         // another column is grouped
}

// RowInfo is one displayed row
type RowInfo struct {
	IsGroup   bool
	Depth     int
	Cells     []CellInfo
	GroupKey  string
	Count     int
	Expanded  bool
	ToggleURL safehtml.URL // expands or collapses a group row
}

// CellInfo is one displayed cell
type CellInfo struct {
	Value       string
	Placeholder bool
	Grouped     bool
}

// ColumnToggle lists a column in the visibility menu
type ColumnToggle struct {
	ID          string
	DisplayName string
	Visible     bool
	Hideable    bool
	ToggleURL   safehtml.URL
}

// FilterInfo describes an active column filter
type FilterInfo struct {
	Column   string
	Value    string
	ClearURL safehtml.URL
}

// PageLink is one numbered page link
type PageLink struct {
	Number  int // 1-based
	URL     safehtml.URL
	Current bool
}

// PaginationInfo describes the pagination bar
type PaginationInfo struct {
	Current          int // 1-based
	Total            int
	Known            bool
	Pages            []PageLink
	LeadingEllipsis  bool
	TrailingEllipsis bool
	HasPrevious      bool
	HasNext          bool
	FirstURL         safehtml.URL
	PreviousURL      safehtml.URL
	NextURL          safehtml.URL
	LastURL          safehtml.URL
}

// PageSizeOption is one entry of the rows-per-page selector
type PageSizeOption struct {
	Size     int
	URL      safehtml.URL
	Selected bool
}

// LandingViewModel contains the data for the landing page
type LandingViewModel struct {
	Title    string
	Subtitle string
	Tables   []TableInfo
}

// TableInfo describes a table linked from the landing page
type TableInfo struct {
	Name        string
	Description string
	URL         safehtml.URL
	ColumnCount int
}

// TimingEntry represents a single timing measurement
type TimingEntry struct {
	Operation  string
	DurationMs string
}

// ApplyPresentation seeds the controller's local state (visibility,
// expansion, filters) from the presentation keys of a request URL.
// Entries the controller rejects are ignored.
func ApplyPresentation(c *controller.Controller, values url.Values) {
	for _, id := range values[ParamHide] {
		c.ToggleColumnVisibility(id, false)
	}
	c.SetExpanded(values[ParamExpanded])
	for key, vals := range values {
		if id, ok := strings.CutPrefix(key, ParamFilterPrefix); ok && len(vals) > 0 {
			c.SetColumnFilter(id, vals[0])
		}
	}
}

// EncodePresentation returns values with the presentation keys rewritten
// from the controller's local state
func EncodePresentation(values url.Values, state controller.State) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		if k == ParamHide || k == ParamExpanded || strings.HasPrefix(k, ParamFilterPrefix) {
			continue
		}
		out[k] = v
	}

	var hidden []string
	for id, visible := range state.Visibility {
		if !visible {
			hidden = append(hidden, id)
		}
	}
	slices.Sort(hidden)
	if len(hidden) > 0 {
		out[ParamHide] = hidden
	}

	var expanded []string
	for key, ok := range state.Expanded {
		if ok {
			expanded = append(expanded, key)
		}
	}
	slices.Sort(expanded)
	if len(expanded) > 0 {
		out[ParamExpanded] = expanded
	}

	for id, value := range state.Filters {
		out.Set(ParamFilterPrefix+id, value)
	}
	return out
}

// CanonicalURL returns the full URL of the controller's current view
func CanonicalURL(c *controller.Controller, path string) string {
	values := EncodePresentation(c.Values(), c.State())
	u := &url.URL{Path: path, RawQuery: values.Encode()}
	return u.String()
}

// linkBuilder computes link targets from clones of one controller
type linkBuilder struct {
	c    *controller.Controller
	path string
}

func (b linkBuilder) current() safehtml.URL {
	return safehtml.URLSanitized(CanonicalURL(b.c, b.path))
}

// to returns the URL reached by applying fn to a clone. A rejected
// transition links to the current view.
func (b linkBuilder) to(fn func(*controller.Controller) error) safehtml.URL {
	clone := b.c.Clone()
	if err := fn(clone); err != nil {
		return b.current()
	}
	return safehtml.URLSanitized(CanonicalURL(clone, b.path))
}

func ignoreTransition(_ controller.Transition, err error) error {
	return err
}

// BuildViewModel creates the view model for the controller's current state.
// path is the URL path of the table page.
func BuildViewModel(c *controller.Controller, path, title string, maxPageLinks int) TableViewModel {
	links := linkBuilder{c: c, path: path}
	state := c.State()
	display := c.Display()
	tree := c.Rows()

	vm := TableViewModel{
		Title:            title,
		CurrentURL:       links.current(),
		QueryString:      c.QueryString(),
		Grouping:         state.Grouping,
		RecordCount:      len(display.Page.Records),
		DisplayedRecords: tree.LeafCount(),
		Loading:          display.Loading,
		Failed:           display.Failed,
	}
	if display.Err != nil {
		vm.Error = display.Err.Error()
	}

	for _, def := range tree.Columns {
		h := HeaderInfo{
			ID:          def.ID,
			DisplayName: def.DisplayName(),
			Sortable:    def.Sortable,
			Groupable:   def.Groupable,
			IsGrouped:   state.Grouping == def.ID,
		}
		if def.Sortable {
			id := def.ID
			h.SortURL = links.to(func(clone *controller.Controller) error {
				return ignoreTransition(clone.ToggleSort(id))
			})
			if desc, sorted := state.Sort.Direction(def.ID); sorted {
				h.SortIndicator = "▲"
				if desc {
					h.SortIndicator = "▼"
				}
			}
		}
		if def.Groupable {
			h.GroupDisabled = state.Grouping != "" && !h.IsGrouped
			if !h.GroupDisabled {
				id := def.ID
				h.GroupURL = links.to(func(clone *controller.Controller) error {
					return ignoreTransition(clone.ToggleGrouping(id))
				})
			}
		}
		vm.Headers = append(vm.Headers, h)
	}

	for _, r := range tree.Flatten() {
		vm.Rows = append(vm.Rows, buildRow(r, links))
	}

	for _, def := range c.Columns() {
		visible := state.Visibility.IsVisible(def.ID)
		t := ColumnToggle{
			ID:          def.ID,
			DisplayName: def.DisplayName(),
			Visible:     visible,
			Hideable:    def.Hideable,
		}
		if def.Hideable {
			id := def.ID
			t.ToggleURL = links.to(func(clone *controller.Controller) error {
				return ignoreTransition(clone.ToggleColumnVisibility(id, !visible))
			})
		}
		vm.Columns = append(vm.Columns, t)
	}

	filterIDs := make([]string, 0, len(state.Filters))
	for id := range state.Filters {
		filterIDs = append(filterIDs, id)
	}
	slices.Sort(filterIDs)
	for _, id := range filterIDs {
		vm.Filters = append(vm.Filters, FilterInfo{
			Column: id,
			Value:  state.Filters[id],
			ClearURL: links.to(func(clone *controller.Controller) error {
				return ignoreTransition(clone.SetColumnFilter(id, ""))
			}),
		})
	}

	vm.Pagination = buildPagination(c, links, maxPageLinks)

	for _, size := range c.PageSizes() {
		vm.PageSizes = append(vm.PageSizes, PageSizeOption{
			Size:     size,
			Selected: size == state.PageSize,
			URL: links.to(func(clone *controller.Controller) error {
				return ignoreTransition(clone.SetPageSize(size))
			}),
		})
	}

	return vm
}

func buildRow(r *rows.Row, links linkBuilder) RowInfo {
	info := RowInfo{
		IsGroup:  r.Kind == rows.GroupRow,
		Depth:    r.Depth,
		GroupKey: r.GroupKey,
		Count:    r.Count,
		Expanded: r.Expanded,
	}
	for _, cell := range r.Cells {
		info.Cells = append(info.Cells, CellInfo{Value: cell.Value, Placeholder: cell.Placeholder, Grouped: cell.Grouped})
	}
	if info.IsGroup {
		key := r.GroupKey
		info.ToggleURL = links.to(func(clone *controller.Controller) error {
			clone.ToggleExpanded(key)
			return nil
		})
	}
	return info
}

func buildPagination(c *controller.Controller, links linkBuilder, maxPageLinks int) PaginationInfo {
	state := c.State()
	info := PaginationInfo{
		Current:     state.PageIndex + 1,
		Known:       state.TotalKnown,
		HasPrevious: c.CanPreviousPage(),
	}
	if !state.TotalKnown {
		// Page links are suppressed until the page count is known
		return info
	}

	bar := pagination.NewLinks(state.PageIndex, maxPageLinks, state.TotalPages)
	info.Total = bar.Total
	info.LeadingEllipsis = bar.LeadingEllipsis
	info.TrailingEllipsis = bar.TrailingEllipsis
	info.HasPrevious = bar.HasPrevious
	info.HasNext = bar.HasNext

	goTo := func(index int) safehtml.URL {
		return links.to(func(clone *controller.Controller) error {
			return ignoreTransition(clone.GoToPage(index))
		})
	}
	for _, index := range bar.Pages {
		info.Pages = append(info.Pages, PageLink{
			Number:  index + 1,
			URL:     goTo(index),
			Current: index == state.PageIndex,
		})
	}
	if bar.HasPrevious {
		info.FirstURL = goTo(0)
		info.PreviousURL = goTo(state.PageIndex - 1)
	}
	if bar.HasNext {
		info.NextURL = goTo(state.PageIndex + 1)
		info.LastURL = goTo(bar.Total - 1)
	}
	return info
}
