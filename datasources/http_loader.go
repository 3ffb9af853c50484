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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/tablesync/core/query"
)

// PeoplePath is the JSON page endpoint served by the table server
const PeoplePath = "/api/people"

// PageResponse is the JSON body of a page endpoint response
type PageResponse struct {
	Records    []Person `json:"records"`
	TotalPages int      `json:"total_pages"`
}

// NewPageResponse converts a page into its wire form
func NewPageResponse(page Page) PageResponse {
	resp := PageResponse{Records: make([]Person, 0, len(page.Records)), TotalPages: page.TotalPages}
	for _, r := range page.Records {
		resp.Records = append(resp.Records, toPerson(r))
	}
	return resp
}

// Page converts the wire form back into a page
func (r PageResponse) Page() Page {
	return Page{Records: PeopleRecords(r.Records), TotalPages: r.TotalPages}
}

func toPerson(r Record) Person {
	if p, ok := r.(Person); ok {
		return p
	}
	var p Person
	if v, ok := r.Value("id"); ok {
		p.ID = fmt.Sprint(v)
	}
	if v, ok := r.Value("name"); ok {
		p.Name = fmt.Sprint(v)
	}
	if v, ok := r.Value("age"); ok {
		if age, ok := v.(int); ok {
			p.Age = age
		}
	}
	if v, ok := r.Value("sex"); ok {
		p.Sex = fmt.Sprint(v)
	}
	return p
}

// RequestValues returns the URL query parameters that carry a page request
func RequestValues(req Request) url.Values {
	return query.Apply(nil, []query.Mutation{
		query.PageMutation(req.PageIndex),
		query.PageSizeMutation(req.PageSize),
		query.SortMutation(req.Sort),
	})
}

// RequestFromValues decodes a page request from URL query parameters
func RequestFromValues(values url.Values) Request {
	q := query.Decode(values)
	return Request{PageIndex: q.PageIndex, PageSize: q.PageSize, Sort: q.Sort}
}

// HTTPSource fetches pages from a remote table server
type HTTPSource struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPSource creates a source for the server at baseURL.
// A zero timeout means requests are bounded only by their context.
func NewHTTPSource(baseURL string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		base:    strings.TrimSuffix(baseURL, "/"),
		client:  client,
		timeout: timeout,
	}
}

// FetchPage implements Source
func (s *HTTPSource) FetchPage(ctx context.Context, req Request) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	target := s.base + PeoplePath + "?" + RequestValues(req).Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, fmt.Errorf("fetch %s: %s: %s", target, resp.Status, strings.TrimSpace(string(body)))
	}

	var body PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Page{}, fmt.Errorf("failed to decode page: %w", err)
	}
	return body.Page(), nil
}

// HTTPLoader opens remote table servers. Config keys: "url", "timeout"
// (a time.ParseDuration string).
type HTTPLoader struct {
	Client *http.Client
}

// NewHTTPLoader creates a new HTTP loader
func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{}
}

// SourceType returns "http"
func (l *HTTPLoader) SourceType() string {
	return "http"
}

// Open implements Loader
func (l *HTTPLoader) Open(_ context.Context, config map[string]string) (Source, error) {
	base := config["url"]
	if base == "" {
		return nil, fmt.Errorf("http source requires a url")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", base, err)
	}
	var timeout time.Duration
	if t := config["timeout"]; t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		timeout = d
	}
	return NewHTTPSource(base, l.Client, timeout), nil
}
