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

// Package controller owns the view state of a URL-synchronized paginated
// table. It is the only component that writes the table's URL query: every
// transition returns the query mutations to apply and, when the requested
// page changed, a ticket for the fetch that must follow.
//
// A Controller is not safe for concurrent use. Fetches may run on other
// goroutines (see Run); their results are handed back through Commit, which
// discards responses for keys the table has moved away from.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/pagination"
	"github.com/google/tablesync/core/query"
	"github.com/google/tablesync/core/rows"
	"github.com/google/tablesync/datasources"
)

// Rejected transitions. State is left untouched when one is returned.
var (
	ErrInvalidPage      = errors.New("page index out of range")
	ErrRejectedGrouping = errors.New("another column is already grouped")
	ErrInvalidPageSize  = errors.New("page size not allowed")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrNotSortable      = errors.New("column is not sortable")
	ErrNotGroupable     = errors.New("column is not groupable")
	ErrNotHideable      = errors.New("column is not hideable")
)

// Options configures a Controller
type Options struct {
	Columns         columns.Set
	PageSizes       pagination.PageSizes // nil means pagination.DefaultPageSizes
	DefaultPageSize int                  // used when the URL has no per_page; 0 means the smallest allowed size
	URLSync         bool                 // false keeps all state local and emits no mutations
	CacheEntries    int                  // placeholder cache size; 0 means DefaultCacheEntries
	Logger          *slog.Logger
	Metrics         *datasources.Metrics
}

// State is a snapshot of the view state
type State struct {
	PageIndex  int
	PageSize   int
	Sort       query.SortSpec
	Grouping   string
	Visibility columns.VisibilityState
	Expanded   map[string]bool
	Filters    map[string]string

	// TotalPages is valid only when TotalKnown is set
	TotalPages int
	TotalKnown bool
}

// Ticket is a fetch the caller must perform and hand back to Commit
type Ticket struct {
	Seq     uint64
	Request datasources.Request
	Key     datasources.Key
}

// Transition is the outcome of a state change
type Transition struct {
	Mutations []query.Mutation // URL changes, in order
	Fetch     *Ticket          // nil when the requested page did not change
}

// Display is what the presentation layer shows right now
type Display struct {
	Page    datasources.Page
	Key     datasources.Key // key of Page
	HasPage bool

	// Loading is set while a fetch for the current key is in flight
	Loading bool
	// Revalidating is set while Page is a cached copy for the current key
	Revalidating bool
	// Failed is set when the last fetch for the current key failed;
	// Page is then the last page that loaded successfully
	Failed bool
	Err    error
}

// Controller is the single authority for a table's view state
type Controller struct {
	opts   Options
	logger *slog.Logger

	values url.Values
	state  State

	seq        uint64 // last issued ticket
	displaySeq uint64 // ticket of the displayed page
	display    Display
	cache      *pageCache

	// corrections made while decoding the initial URL
	initial []query.Mutation
}

// New creates a controller seeded from the current URL query.
// Values that are malformed or not allowed fall back to defaults.
func New(values url.Values, opts Options) *Controller {
	if len(opts.PageSizes) == 0 {
		opts.PageSizes = pagination.DefaultPageSizes
	}
	if !opts.PageSizes.Contains(opts.DefaultPageSize) {
		opts.DefaultPageSize = opts.PageSizes.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		opts:   opts,
		logger: opts.Logger,
		values: query.Apply(values, nil),
		cache:  newPageCache(opts.CacheEntries),
	}

	decoded := query.Decode(values)
	c.state = State{
		PageIndex:  decoded.PageIndex,
		PageSize:   decoded.PageSize,
		Sort:       query.SortSpec{},
		Visibility: columns.VisibilityState{},
		Expanded:   map[string]bool{},
		Filters:    map[string]string{},
	}

	if !values.Has(query.ParamPerPage) {
		c.state.PageSize = opts.DefaultPageSize
	} else if n, err := strconv.Atoi(strings.TrimSpace(values.Get(query.ParamPerPage))); err != nil || !opts.PageSizes.Contains(n) {
		c.logger.Debug("per_page not allowed, using default", "per_page", values.Get(query.ParamPerPage))
		c.state.PageSize = opts.DefaultPageSize
		c.initial = append(c.initial, query.PageSizeMutation(c.state.PageSize))
	}

	for _, sc := range decoded.Sort {
		if err := c.checkSortable(sc.Name); err != nil {
			c.logger.Debug("dropping sort entry", "column", sc.Name, "error", err)
			continue
		}
		c.state.Sort = append(c.state.Sort, sc)
	}
	if len(c.state.Sort) != len(decoded.Sort) {
		c.initial = append(c.initial, query.SortMutation(c.state.Sort))
	}

	if decoded.Group != "" {
		if err := c.checkGroupable(decoded.Group); err != nil {
			c.logger.Debug("dropping grouping", "column", decoded.Group, "error", err)
			c.initial = append(c.initial, query.GroupMutation(""))
		} else {
			c.state.Grouping = decoded.Group
		}
	}

	return c
}

// Mount returns the URL corrections for the initial query and the first fetch
func (c *Controller) Mount() Transition {
	muts := c.apply(c.initial)
	c.initial = nil
	return Transition{Mutations: muts, Fetch: c.issue()}
}

// Refresh refetches the current page
func (c *Controller) Refresh() Transition {
	return Transition{Fetch: c.issue()}
}

// SetSorting replaces the sort order and refetches. An empty spec removes
// sort from the URL.
func (c *Controller) SetSorting(spec query.SortSpec) (Transition, error) {
	for _, sc := range spec {
		if err := c.checkSortable(sc.Name); err != nil {
			return c.reject("set sorting", err)
		}
	}
	c.state.Sort = spec.Clone()
	return Transition{
		Mutations: c.apply([]query.Mutation{query.SortMutation(c.state.Sort)}),
		Fetch:     c.issue(),
	}, nil
}

// ToggleSort applies a header click on column id
func (c *Controller) ToggleSort(id string) (Transition, error) {
	if err := c.checkSortable(id); err != nil {
		return c.reject("toggle sort", err)
	}
	return c.SetSorting(columns.ToggleSort(c.state.Sort, id))
}

// SetPageSize changes the page size. The page index is preserved.
func (c *Controller) SetPageSize(size int) (Transition, error) {
	if !c.opts.PageSizes.Contains(size) {
		return c.reject("set page size", fmt.Errorf("%w: %d", ErrInvalidPageSize, size))
	}
	if size != c.state.PageSize {
		c.state.TotalKnown = false
	}
	c.state.PageSize = size
	return Transition{
		Mutations: c.apply([]query.Mutation{query.PageSizeMutation(size)}),
		Fetch:     c.issue(),
	}, nil
}

// GoToPage moves to a 0-based page index. While the page count is unknown
// only the current page and the ones before it are reachable.
func (c *Controller) GoToPage(index int) (Transition, error) {
	if index < 0 || index >= c.pageLimit() {
		return c.reject("go to page", fmt.Errorf("%w: %d", ErrInvalidPage, index))
	}
	c.state.PageIndex = index
	return Transition{
		Mutations: c.apply([]query.Mutation{query.PageMutation(index)}),
		Fetch:     c.issue(),
	}, nil
}

// NextPage moves one page forward
func (c *Controller) NextPage() (Transition, error) {
	return c.GoToPage(c.state.PageIndex + 1)
}

// PreviousPage moves one page back
func (c *Controller) PreviousPage() (Transition, error) {
	return c.GoToPage(c.state.PageIndex - 1)
}

// CanNextPage reports whether NextPage would succeed
func (c *Controller) CanNextPage() bool {
	return c.state.PageIndex+1 < c.pageLimit()
}

// pageLimit is one past the highest page index navigation may reach
func (c *Controller) pageLimit() int {
	if !c.state.TotalKnown {
		return c.state.PageIndex + 1
	}
	return c.state.TotalPages
}

// CanPreviousPage reports whether PreviousPage would succeed
func (c *Controller) CanPreviousPage() bool {
	return c.state.PageIndex > 0
}

// ToggleGrouping groups by column id, or clears grouping when id is the
// grouped column. Grouping a second column is rejected. Grouping is applied
// to the fetched page, so no fetch follows.
func (c *Controller) ToggleGrouping(id string) (Transition, error) {
	if err := c.checkGroupable(id); err != nil {
		return c.reject("toggle grouping", err)
	}
	switch c.state.Grouping {
	case "":
		c.state.Grouping = id
	case id:
		c.state.Grouping = ""
	default:
		return c.reject("toggle grouping",
			fmt.Errorf("%w: %q is grouped, cannot group by %q", ErrRejectedGrouping, c.state.Grouping, id))
	}
	c.state.Expanded = map[string]bool{}
	return Transition{Mutations: c.apply([]query.Mutation{query.GroupMutation(c.state.Grouping)})}, nil
}

// ToggleColumnVisibility shows or hides a column. Visibility is never
// written to the URL.
func (c *Controller) ToggleColumnVisibility(id string, visible bool) (Transition, error) {
	def, ok := c.opts.Columns.Lookup(id)
	if !ok {
		return c.reject("toggle visibility", fmt.Errorf("%w: %q", ErrUnknownColumn, id))
	}
	if !def.Hideable {
		return c.reject("toggle visibility", fmt.Errorf("%w: %q", ErrNotHideable, id))
	}
	if visible {
		delete(c.state.Visibility, id)
	} else {
		c.state.Visibility[id] = false
	}
	return Transition{}, nil
}

// ShowAllColumns clears every visibility override
func (c *Controller) ShowAllColumns() Transition {
	c.state.Visibility = columns.VisibilityState{}
	return Transition{}
}

// ToggleExpanded expands or collapses the group row with the given key
func (c *Controller) ToggleExpanded(groupKey string) Transition {
	if c.state.Expanded[groupKey] {
		delete(c.state.Expanded, groupKey)
	} else {
		c.state.Expanded[groupKey] = true
	}
	return Transition{}
}

// SetExpanded replaces the set of expanded group keys
func (c *Controller) SetExpanded(keys []string) Transition {
	c.state.Expanded = make(map[string]bool, len(keys))
	for _, k := range keys {
		c.state.Expanded[k] = true
	}
	return Transition{}
}

// SetColumnFilter filters the fetched page by a case-insensitive substring
// of the column's value. An empty value removes the filter.
func (c *Controller) SetColumnFilter(id, value string) (Transition, error) {
	if _, ok := c.opts.Columns.Lookup(id); !ok {
		return c.reject("set filter", fmt.Errorf("%w: %q", ErrUnknownColumn, id))
	}
	if value == "" {
		delete(c.state.Filters, id)
	} else {
		c.state.Filters[id] = value
	}
	return Transition{}, nil
}

// Request returns the page request for the current state
func (c *Controller) Request() datasources.Request {
	return datasources.Request{
		PageIndex: c.state.PageIndex,
		PageSize:  c.state.PageSize,
		Sort:      c.state.Sort.Clone(),
	}
}

// issue creates a ticket for the current key and updates the display:
// a cached page for the key is shown at once, otherwise the previous page
// stays up while the fetch is in flight.
func (c *Controller) issue() *Ticket {
	req := c.Request()
	c.seq++
	t := &Ticket{Seq: c.seq, Request: req, Key: req.Key()}

	c.display.Loading = true
	c.display.Failed = false
	c.display.Err = nil
	c.display.Revalidating = false
	if cached, ok := c.cache.get(t.Key); ok {
		c.display.Page = cached
		c.display.Key = t.Key
		c.display.HasPage = true
		c.display.Revalidating = true
		c.state.TotalPages = cached.TotalPages
		c.state.TotalKnown = true
	}
	return t
}

// Commit hands back the result of a ticket. It returns false when the result
// was discarded because the table moved on to another key, or because a
// newer result for the same key is already displayed. An accepted result may
// clamp the page index, in which case the returned transition carries the
// page mutation and a follow-up fetch.
func (c *Controller) Commit(t *Ticket, page datasources.Page, err error) (Transition, bool) {
	current := c.Request().Key()
	if t.Key != current || (c.display.HasPage && c.display.Key == t.Key && t.Seq < c.displaySeq) {
		c.logger.Debug("discarding stale page", "seq", t.Seq, "key", t.Key.String())
		if c.opts.Metrics != nil {
			c.opts.Metrics.StaleDiscards.Inc()
		}
		return Transition{}, false
	}

	c.display.Loading = t.Seq < c.seq
	if err != nil {
		c.logger.Warn("page fetch failed, keeping previous page",
			"page", t.Request.PageIndex+1, "per_page", t.Request.PageSize, "error", err)
		c.display.Failed = true
		c.display.Err = err
		return Transition{}, true
	}

	c.cache.put(t.Key, page)
	c.display = Display{Page: page, Key: t.Key, HasPage: true, Loading: c.display.Loading}
	c.displaySeq = t.Seq
	c.state.TotalPages = page.TotalPages
	c.state.TotalKnown = true

	last := max(page.TotalPages-1, 0)
	if c.state.PageIndex > last {
		c.logger.Debug("clamping page index", "from", c.state.PageIndex, "to", last)
		c.state.PageIndex = last
		return Transition{
			Mutations: c.apply([]query.Mutation{query.PageMutation(last)}),
			Fetch:     c.issue(),
		}, true
	}
	return Transition{}, true
}

// Result is the outcome of running a ticket
type Result struct {
	Ticket *Ticket
	Page   datasources.Page
	Err    error
}

// Run performs the fetch for a ticket. It does not touch controller state and
// may be called from any goroutine; pass the Result to Commit.
func Run(ctx context.Context, source datasources.Source, t *Ticket) Result {
	page, err := source.FetchPage(ctx, t.Request)
	return Result{Ticket: t, Page: page, Err: err}
}

// Settle runs t and any follow-up fetches synchronously and returns the
// mutations they produced along with the last fetch error.
func (c *Controller) Settle(ctx context.Context, source datasources.Source, t *Ticket) ([]query.Mutation, error) {
	var muts []query.Mutation
	var lastErr error
	// a clamp needs at most one follow-up fetch; the bound guards against a
	// source whose page count changes between calls
	for i := 0; t != nil && i < 3; i++ {
		res := Run(ctx, source, t)
		lastErr = res.Err
		next, _ := c.Commit(res.Ticket, res.Page, res.Err)
		muts = append(muts, next.Mutations...)
		t = next.Fetch
	}
	return muts, lastErr
}

// Display returns what the table shows right now
func (c *Controller) Display() Display {
	d := c.display
	d.Page.Records = append([]datasources.Record(nil), d.Page.Records...)
	return d
}

// State returns a copy of the view state
func (c *Controller) State() State {
	s := c.state
	s.Sort = c.state.Sort.Clone()
	s.Visibility = c.state.Visibility.Clone()
	s.Expanded = maps.Clone(c.state.Expanded)
	s.Filters = maps.Clone(c.state.Filters)
	return s
}

// Columns returns the column set
func (c *Controller) Columns() columns.Set {
	return c.opts.Columns
}

// PageSizes returns the allowed page sizes
func (c *Controller) PageSizes() pagination.PageSizes {
	return c.opts.PageSizes
}

// Rows builds the display row tree for the displayed page
func (c *Controller) Rows() *rows.Tree {
	return rows.Build(rows.Input{
		Records:    c.display.Page.Records,
		Columns:    c.opts.Columns,
		Visibility: c.state.Visibility,
		Grouping:   c.state.Grouping,
		Expanded:   c.state.Expanded,
		Filters:    c.state.Filters,
	})
}

// Values returns a copy of the URL query the controller maintains
func (c *Controller) Values() url.Values {
	return query.Apply(c.values, nil)
}

// QueryString returns the encoded URL query
func (c *Controller) QueryString() string {
	return c.values.Encode()
}

// Clone returns an independent copy. The copy starts with an empty
// placeholder cache.
func (c *Controller) Clone() *Controller {
	clone := &Controller{
		opts:       c.opts,
		logger:     c.logger,
		values:     c.Values(),
		state:      c.State(),
		seq:        c.seq,
		displaySeq: c.displaySeq,
		display:    c.Display(),
		cache:      newPageCache(c.opts.CacheEntries),
		initial:    append([]query.Mutation(nil), c.initial...),
	}
	return clone
}

func (c *Controller) apply(muts []query.Mutation) []query.Mutation {
	if !c.opts.URLSync || len(muts) == 0 {
		return nil
	}
	c.values = query.Apply(c.values, muts)
	return muts
}

func (c *Controller) reject(op string, err error) (Transition, error) {
	c.logger.Debug("transition rejected", "op", op, "error", err)
	return Transition{}, err
}

func (c *Controller) checkSortable(id string) error {
	def, ok := c.opts.Columns.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, id)
	}
	if !def.Sortable {
		return fmt.Errorf("%w: %q", ErrNotSortable, id)
	}
	return nil
}

func (c *Controller) checkGroupable(id string) error {
	def, ok := c.opts.Columns.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, id)
	}
	if !def.Groupable {
		return fmt.Errorf("%w: %q", ErrNotGroupable, id)
	}
	return nil
}
