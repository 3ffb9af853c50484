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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/tablesync/core/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPSource(t *testing.T) {
	mem := NewMemorySource(PeopleRecords(testPeople()))
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PeoplePath {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		page, err := mem.FetchPage(r.Context(), RequestFromValues(r.URL.Query()))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(NewPageResponse(page))
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL+"/", nil, time.Second)
	req := Request{PageIndex: 1, PageSize: 2, Sort: query.ParseSort("-age,name")}

	got, err := src.FetchPage(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	want, _ := mem.FetchPage(context.Background(), req)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if gotQuery != "page=2&per_page=2&sort=-age%2Cname" {
		t.Errorf("unexpected request query %q", gotQuery)
	}
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, nil, 0)
	if _, err := src.FetchPage(context.Background(), Request{PageSize: 10}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestHTTPLoaderConfig(t *testing.T) {
	loader := NewHTTPLoader()
	if _, err := loader.Open(context.Background(), map[string]string{}); err == nil {
		t.Error("expected error without url")
	}
	if _, err := loader.Open(context.Background(), map[string]string{"url": "http://localhost:8097", "timeout": "soon"}); err == nil {
		t.Error("expected error for malformed timeout")
	}
	if _, err := loader.Open(context.Background(), map[string]string{"url": "http://localhost:8097", "timeout": "2s"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type failingSource struct{}

func (failingSource) FetchPage(context.Context, Request) (Page, error) {
	return Page{}, errors.New("unavailable")
}

func TestInstrumented(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	ok := NewInstrumented(NewMemorySource(PeopleRecords(testPeople())), metrics, nil)
	failing := NewInstrumented(failingSource{}, metrics, nil)

	ctx := context.Background()
	if _, err := ok.FetchPage(ctx, Request{PageSize: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := ok.FetchPage(ctx, Request{PageSize: 3, PageIndex: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := failing.FetchPage(ctx, Request{PageSize: 3}); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(metrics.FetchTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 ok fetches, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.FetchTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed fetch, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.FetchDuration); got != 1 {
		t.Errorf("expected one histogram series, got %d", got)
	}
}
