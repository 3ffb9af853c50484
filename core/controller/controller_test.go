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

package controller

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/query"
	"github.com/google/tablesync/datasources"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestController(t *testing.T, raw string) *Controller {
	t.Helper()
	values, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("bad query %q: %v", raw, err)
	}
	return New(values, Options{Columns: columns.PeopleColumns(), URLSync: true})
}

func pageOf(total int, ids ...string) datasources.Page {
	people := make([]datasources.Person, len(ids))
	for i, id := range ids {
		people[i] = datasources.Person{ID: id, Name: "n" + id, Age: i, Sex: "M"}
	}
	return datasources.Page{Records: datasources.PeopleRecords(people), TotalPages: total}
}

func displayedIDs(c *Controller) []string {
	var out []string
	for _, r := range c.Display().Page.Records {
		v, _ := r.Value("id")
		out = append(out, v.(string))
	}
	return out
}

func TestEndToEndScenario(t *testing.T) {
	c := newTestController(t, "page=2&per_page=20&sort=-age,name")

	want := State{
		PageIndex: 1,
		PageSize:  20,
		Sort: query.SortSpec{
			{Name: "age", Descending: true},
			{Name: "name", Descending: false},
		},
		Visibility: columns.VisibilityState{},
		Expanded:   map[string]bool{},
		Filters:    map[string]string{},
	}
	if diff := cmp.Diff(want, c.State()); diff != "" {
		t.Fatalf("initial state mismatch (-want +got):\n%s", diff)
	}

	mount := c.Mount()
	if len(mount.Mutations) != 0 {
		t.Errorf("expected no corrections for a valid URL, got %v", mount.Mutations)
	}
	c.Commit(mount.Fetch, pageOf(5, "x"), nil)

	tr, err := c.SetPageSize(50)
	if err != nil {
		t.Fatalf("SetPageSize failed: %v", err)
	}
	if diff := cmp.Diff([]query.Mutation{{Key: "per_page", Value: "50"}}, tr.Mutations); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if tr.Fetch == nil {
		t.Fatal("expected exactly one fetch")
	}
	wantReq := datasources.Request{PageIndex: 1, PageSize: 50, Sort: want.Sort}
	if diff := cmp.Diff(wantReq, tr.Fetch.Request); diff != "" {
		t.Errorf("fetch request mismatch (-want +got):\n%s", diff)
	}

	values := c.Values()
	if values.Get("page") != "2" || values.Get("sort") != "-age,name" || values.Get("per_page") != "50" {
		t.Errorf("unexpected URL after page size change: %s", c.QueryString())
	}
}

func TestSingleActiveGrouping(t *testing.T) {
	c := newTestController(t, "")

	tr, err := c.ToggleGrouping("sex")
	if err != nil {
		t.Fatalf("ToggleGrouping(sex) failed: %v", err)
	}
	if tr.Fetch != nil {
		t.Error("grouping must not fetch")
	}
	if diff := cmp.Diff([]query.Mutation{{Key: "group", Value: "sex"}}, tr.Mutations); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}

	_, err = c.ToggleGrouping("name")
	if !errors.Is(err, ErrRejectedGrouping) {
		t.Errorf("expected ErrRejectedGrouping, got %v", err)
	}
	if got := c.State().Grouping; got != "sex" {
		t.Errorf("expected grouping to stay sex, got %q", got)
	}

	tr, err = c.ToggleGrouping("sex")
	if err != nil {
		t.Fatalf("clearing grouping failed: %v", err)
	}
	if diff := cmp.Diff([]query.Mutation{{Key: "group", Delete: true}}, tr.Mutations); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if c.Values().Has("group") {
		t.Errorf("expected group to be removed from %s", c.QueryString())
	}

	if _, err := c.ToggleGrouping("age"); !errors.Is(err, ErrNotGroupable) {
		t.Errorf("expected ErrNotGroupable, got %v", err)
	}
}

func TestStaleResponseRejected(t *testing.T) {
	c := newTestController(t, "")
	mount := c.Mount()
	c.Commit(mount.Fetch, pageOf(10, "p1"), nil)

	first, _ := c.GoToPage(1)
	second, _ := c.GoToPage(2)
	if first.Fetch.Key == second.Fetch.Key {
		t.Fatal("expected distinct keys")
	}

	// K2 arrives first, then the slow K1
	if _, ok := c.Commit(second.Fetch, pageOf(10, "p3"), nil); !ok {
		t.Fatal("expected current key to be accepted")
	}
	if _, ok := c.Commit(first.Fetch, pageOf(10, "p2"), nil); ok {
		t.Error("expected superseded key to be discarded")
	}
	if diff := cmp.Diff([]string{"p3"}, displayedIDs(c)); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
	if c.Display().Loading {
		t.Error("expected no fetch in flight")
	}
}

func TestStaleResponseArrivingFirst(t *testing.T) {
	c := newTestController(t, "")
	mount := c.Mount()
	c.Commit(mount.Fetch, pageOf(10, "p1"), nil)

	first, _ := c.SetSorting(query.ParseSort("name"))
	second, _ := c.SetSorting(query.ParseSort("-name"))

	if _, ok := c.Commit(first.Fetch, pageOf(10, "asc"), nil); ok {
		t.Error("expected response for the old sort to be discarded")
	}
	if !c.Display().Loading {
		t.Error("expected the newer fetch to still be loading")
	}
	c.Commit(second.Fetch, pageOf(10, "desc"), nil)
	if diff := cmp.Diff([]string{"desc"}, displayedIDs(c)); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestOlderResultForSameKeyDiscarded(t *testing.T) {
	c := newTestController(t, "")
	older := c.Refresh()
	newer := c.Refresh()

	c.Commit(newer.Fetch, pageOf(3, "new"), nil)
	if _, ok := c.Commit(older.Fetch, pageOf(3, "old"), nil); ok {
		t.Error("expected older result for the same key to be discarded")
	}
	if diff := cmp.Diff([]string{"new"}, displayedIDs(c)); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptySortRemovesURLKey(t *testing.T) {
	c := newTestController(t, "sort=-age&page=3")

	tr, err := c.SetSorting(nil)
	if err != nil {
		t.Fatalf("SetSorting failed: %v", err)
	}
	if tr.Fetch == nil || len(tr.Fetch.Request.Sort) != 0 {
		t.Errorf("expected a fetch with empty sort, got %+v", tr.Fetch)
	}
	if c.Values().Has("sort") {
		t.Errorf("expected sort to be removed, got %s", c.QueryString())
	}
	if c.Values().Get("page") != "3" {
		t.Errorf("expected page to be kept, got %s", c.QueryString())
	}
}

func TestToggleSort(t *testing.T) {
	c := newTestController(t, "sort=-age,name")

	steps := []string{"age", "age", "age"}
	want := []string{"age", "-age", "age"}
	for i, id := range steps {
		if _, err := c.ToggleSort(id); err != nil {
			t.Fatalf("ToggleSort(%s) failed: %v", id, err)
		}
		if got := c.Values().Get("sort"); got != want[i] {
			t.Errorf("step %d: expected sort=%s, got %s", i, want[i], got)
		}
	}

	if _, err := c.ToggleSort("id"); !errors.Is(err, ErrNotSortable) {
		t.Errorf("expected ErrNotSortable, got %v", err)
	}
	if _, err := c.ToggleSort("height"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestFetchFailureKeepsPage(t *testing.T) {
	c := newTestController(t, "")
	mount := c.Mount()
	c.Commit(mount.Fetch, pageOf(4, "p1"), nil)

	tr, _ := c.NextPage()
	if _, ok := c.Commit(tr.Fetch, datasources.Page{}, errors.New("timeout")); !ok {
		t.Fatal("expected failure for the current key to be accepted")
	}

	d := c.Display()
	if !d.Failed || d.Err == nil {
		t.Errorf("expected failure to be surfaced, got %+v", d)
	}
	if diff := cmp.Diff([]string{"p1"}, displayedIDs(c)); diff != "" {
		t.Errorf("expected previous page to stay visible (-want +got):\n%s", diff)
	}
	if c.State().PageIndex != 1 {
		t.Errorf("expected page index 1, got %d", c.State().PageIndex)
	}
}

func TestCachedKeyRevalidates(t *testing.T) {
	c := newTestController(t, "")
	mount := c.Mount()
	c.Commit(mount.Fetch, pageOf(4, "p1"), nil)

	next, _ := c.NextPage()
	c.Commit(next.Fetch, pageOf(4, "p2"), nil)

	back, _ := c.PreviousPage()
	d := c.Display()
	if !d.Revalidating || !d.Loading {
		t.Errorf("expected cached page to be revalidating, got %+v", d)
	}
	if diff := cmp.Diff([]string{"p1"}, displayedIDs(c)); diff != "" {
		t.Errorf("expected cached page (-want +got):\n%s", diff)
	}

	c.Commit(back.Fetch, pageOf(4, "p1-fresh"), nil)
	d = c.Display()
	if d.Revalidating || d.Loading {
		t.Errorf("expected settled display, got %+v", d)
	}
	if diff := cmp.Diff([]string{"p1-fresh"}, displayedIDs(c)); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestUncachedKeyKeepsPreviousPage(t *testing.T) {
	c := newTestController(t, "")
	mount := c.Mount()
	c.Commit(mount.Fetch, pageOf(4, "p1"), nil)

	c.NextPage()
	d := c.Display()
	if !d.Loading || d.Revalidating {
		t.Errorf("expected loading without placeholder, got %+v", d)
	}
	if diff := cmp.Diff([]string{"p1"}, displayedIDs(c)); diff != "" {
		t.Errorf("expected previous page while loading (-want +got):\n%s", diff)
	}
}

func TestCommitClampsPageIndex(t *testing.T) {
	c := newTestController(t, "page=9")
	mount := c.Mount()

	tr, ok := c.Commit(mount.Fetch, pageOf(3), nil)
	if !ok {
		t.Fatal("expected commit to be accepted")
	}
	if diff := cmp.Diff([]query.Mutation{{Key: "page", Value: "3"}}, tr.Mutations); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if tr.Fetch == nil || tr.Fetch.Request.PageIndex != 2 {
		t.Fatalf("expected follow-up fetch for page index 2, got %+v", tr.Fetch)
	}
	if c.State().PageIndex != 2 {
		t.Errorf("expected clamped page index 2, got %d", c.State().PageIndex)
	}
}

func TestGoToPageBounds(t *testing.T) {
	c := newTestController(t, "")

	// Page count unknown before the first fetch: nothing past the current page
	if _, err := c.GoToPage(7); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("GoToPage(7) before the count is known: expected ErrInvalidPage, got %v", err)
	}
	for range 5 {
		if _, err := c.NextPage(); !errors.Is(err, ErrInvalidPage) {
			t.Fatalf("NextPage before the count is known: expected ErrInvalidPage, got %v", err)
		}
	}
	if c.CanNextPage() {
		t.Error("expected CanNextPage to be false before the count is known")
	}
	if c.QueryString() != "" {
		t.Errorf("refused moves must not touch the URL, got %s", c.QueryString())
	}
	tr, err := c.GoToPage(0)
	if err != nil {
		t.Fatalf("GoToPage(0): %v", err)
	}
	c.Commit(tr.Fetch, pageOf(2, "a"), nil)

	for _, idx := range []int{-1, 2, 50} {
		if _, err := c.GoToPage(idx); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("GoToPage(%d): expected ErrInvalidPage, got %v", idx, err)
		}
	}
	if _, err := c.PreviousPage(); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected PreviousPage to refuse on the first page, got %v", err)
	}

	next, err := c.NextPage()
	if err != nil {
		t.Fatal(err)
	}
	c.Commit(next.Fetch, pageOf(2, "b"), nil)
	if c.CanNextPage() {
		t.Error("expected no next page on the last page")
	}
	if _, err := c.NextPage(); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected NextPage to refuse on the last page, got %v", err)
	}
}

func TestSetPageSizeRejectsUnknownSize(t *testing.T) {
	c := newTestController(t, "per_page=20")
	if _, err := c.SetPageSize(15); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("expected ErrInvalidPageSize, got %v", err)
	}
	if c.State().PageSize != 20 {
		t.Errorf("expected page size to stay 20, got %d", c.State().PageSize)
	}
}

func TestNewNormalizesURL(t *testing.T) {
	c := newTestController(t, "per_page=15&sort=-height,age&group=age&theme=dark")

	s := c.State()
	if s.PageSize != 10 || s.Sort.String() != "age" || s.Grouping != "" {
		t.Errorf("unexpected normalized state %+v", s)
	}

	mount := c.Mount()
	want := []query.Mutation{
		{Key: "per_page", Value: "10"},
		{Key: "sort", Value: "age"},
		{Key: "group", Delete: true},
	}
	if diff := cmp.Diff(want, mount.Mutations); diff != "" {
		t.Errorf("corrections mismatch (-want +got):\n%s", diff)
	}
	if got := c.QueryString(); got != "per_page=10&sort=age&theme=dark" {
		t.Errorf("unexpected query string %q", got)
	}
}

func TestDefaultPageSizeOption(t *testing.T) {
	c := New(url.Values{}, Options{Columns: columns.PeopleColumns(), DefaultPageSize: 50})
	if got := c.State().PageSize; got != 50 {
		t.Errorf("expected default page size 50, got %d", got)
	}
}

func TestLocalTransitionsDoNotFetch(t *testing.T) {
	c := newTestController(t, "group=sex")
	mount := c.Mount()
	c.Commit(mount.Fetch, datasources.Page{
		Records: datasources.PeopleRecords([]datasources.Person{
			{ID: "a", Name: "Ann", Sex: "F"},
			{ID: "b", Name: "Bob", Sex: "M"},
			{ID: "c", Name: "Cid", Sex: "M"},
		}),
		TotalPages: 1,
	}, nil)
	before := c.QueryString()

	if tr, err := c.ToggleColumnVisibility("id", false); err != nil || tr.Fetch != nil || len(tr.Mutations) != 0 {
		t.Errorf("visibility toggle: unexpected transition %+v, err %v", tr, err)
	}
	if tr := c.ToggleExpanded("M"); tr.Fetch != nil {
		t.Error("expansion must not fetch")
	}
	if tr, err := c.SetColumnFilter("name", "b"); err != nil || tr.Fetch != nil {
		t.Errorf("filter: unexpected transition %+v, err %v", tr, err)
	}
	if c.QueryString() != before {
		t.Errorf("local transitions changed the URL: %s -> %s", before, c.QueryString())
	}

	tree := c.Rows()
	if diff := cmp.Diff([]string{"name", "age", "sex"}, tree.Columns.IDs()); diff != "" {
		t.Errorf("visible columns mismatch (-want +got):\n%s", diff)
	}
	flat := tree.Flatten()
	if len(flat) != 2 || flat[0].GroupKey != "M" || flat[1].Cells[0].Value != "Bob" {
		t.Errorf("unexpected rows after filter and expansion: %d rows", len(flat))
	}

	if _, err := c.SetColumnFilter("height", "x"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestNotHideable(t *testing.T) {
	cols := columns.Set{{ID: "id"}, {ID: "name", Hideable: true}}
	c := New(nil, Options{Columns: cols})
	if _, err := c.ToggleColumnVisibility("id", false); !errors.Is(err, ErrNotHideable) {
		t.Errorf("expected ErrNotHideable, got %v", err)
	}
}

func TestURLSyncDisabled(t *testing.T) {
	values := url.Values{"page": {"2"}}
	c := New(values, Options{Columns: columns.PeopleColumns(), URLSync: false})

	for name, step := range map[string]func() (Transition, error){
		"page":     func() (Transition, error) { return c.GoToPage(0) },
		"size":     func() (Transition, error) { return c.SetPageSize(20) },
		"sort":     func() (Transition, error) { return c.ToggleSort("name") },
		"grouping": func() (Transition, error) { return c.ToggleGrouping("sex") },
	} {
		tr, err := step()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(tr.Mutations) != 0 {
			t.Errorf("%s: expected no mutations, got %v", name, tr.Mutations)
		}
	}
	if c.QueryString() != "page=2" {
		t.Errorf("expected URL untouched, got %s", c.QueryString())
	}
}

func TestGoToPageBackwardBeforeCount(t *testing.T) {
	c := newTestController(t, "page=3")
	if _, err := c.GoToPage(3); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage past the URL page, got %v", err)
	}
	if _, err := c.PreviousPage(); err != nil {
		t.Fatalf("PreviousPage: %v", err)
	}
	if got := c.QueryString(); got != "page=2" {
		t.Errorf("unexpected query %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := newTestController(t, "page=2")
	clone := c.Clone()
	clone.ToggleSort("name")
	clone.ToggleGrouping("sex")

	if c.QueryString() != "page=2" || len(c.State().Sort) != 0 || c.State().Grouping != "" {
		t.Errorf("clone modified the original: %s", c.QueryString())
	}
	if clone.Values().Get("sort") != "name" {
		t.Errorf("expected clone URL to carry the sort, got %s", clone.QueryString())
	}
}

func TestSettle(t *testing.T) {
	people := make([]datasources.Person, 25)
	for i := range people {
		people[i] = datasources.Person{ID: string(rune('a' + i)), Age: i}
	}
	src := datasources.NewMemorySource(datasources.PeopleRecords(people))

	c := newTestController(t, "page=8")
	mount := c.Mount()
	muts, err := c.Settle(context.Background(), src, mount.Fetch)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if diff := cmp.Diff([]query.Mutation{{Key: "page", Value: "3"}}, muts); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if got := len(c.Display().Page.Records); got != 5 {
		t.Errorf("expected the 5 records of the last page, got %d", got)
	}
}

func TestStaleDiscardMetric(t *testing.T) {
	metrics := datasources.NewMetrics(nil)
	c := New(nil, Options{Columns: columns.PeopleColumns(), Metrics: metrics})
	old := c.Refresh()
	c.SetPageSize(20)
	c.Commit(old.Fetch, pageOf(1, "x"), nil)

	if got := testutil.ToFloat64(metrics.StaleDiscards); got != 1 {
		t.Errorf("expected one stale discard, got %v", got)
	}
}

func TestPageCacheEviction(t *testing.T) {
	cache := newPageCache(2)
	keys := []datasources.Key{
		(datasources.Request{PageSize: 10}).Key(),
		(datasources.Request{PageSize: 20}).Key(),
		(datasources.Request{PageSize: 50}).Key(),
	}
	cache.put(keys[0], pageOf(1, "a"))
	cache.put(keys[1], pageOf(1, "b"))
	cache.get(keys[0])
	cache.put(keys[2], pageOf(1, "c"))

	if cache.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.len())
	}
	if _, ok := cache.get(keys[1]); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := cache.get(keys[0]); !ok {
		t.Error("expected recently used entry to survive")
	}
}
