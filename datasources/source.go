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

// Package datasources provides the paginated data sources a table reads
// from: an in-memory collection, JSON and CSV files, a SQLite database and
// a remote HTTP API. Every source answers the same request (page index,
// page size, sort) with one page of records and the total page count.
package datasources

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/tablesync/core/query"
	"github.com/zeebo/blake3"
)

// ErrInvalidRequest is returned for a request with a negative page index
// or a page size below one.
var ErrInvalidRequest = errors.New("invalid page request")

// Record is one row of a data source. Fields are addressed by column ID;
// the bool result is false when the record has no such field.
type Record interface {
	Value(field string) (any, bool)
}

// Person is the record served by the people table.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
	Sex  string `json:"sex"`
}

// Value implements Record
func (p Person) Value(field string) (any, bool) {
	switch field {
	case "id":
		return p.ID, true
	case "name":
		return p.Name, true
	case "age":
		return p.Age, true
	case "sex":
		return p.Sex, true
	}
	return nil, false
}

// PeopleRecords converts people to records
func PeopleRecords(people []Person) []Record {
	records := make([]Record, len(people))
	for i, p := range people {
		records[i] = p
	}
	return records
}

// Request asks a source for one page
type Request struct {
	PageIndex int            `json:"page_index"` // 0-based
	PageSize  int            `json:"page_size"`
	Sort      query.SortSpec `json:"sort"`
}

// Validate rejects requests no source can answer
func (r Request) Validate() error {
	if r.PageIndex < 0 {
		return fmt.Errorf("%w: page index %d", ErrInvalidRequest, r.PageIndex)
	}
	if r.PageSize < 1 {
		return fmt.Errorf("%w: page size %d", ErrInvalidRequest, r.PageSize)
	}
	return nil
}

// Key identifies a request. Two requests with the same page, page size and
// sort produce the same key.
type Key [32]byte

// String returns the hex form of the key
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// keyEncMode uses Core Deterministic Encoding so that equal requests always
// encode to identical bytes.
var keyEncMode cbor.EncMode

func init() {
	var err error
	keyEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("datasources: CBOR encoder initialization failed: " + err.Error())
	}
}

// Key returns the cache key of the request
func (r Request) Key() Key {
	normalized := r
	if len(normalized.Sort) == 0 {
		normalized.Sort = nil
	}
	data, err := keyEncMode.Marshal(normalized)
	if err != nil {
		// Request holds only ints, strings and bools
		panic("datasources: encoding request key: " + err.Error())
	}
	return blake3.Sum256(data)
}

// Page is one page of records plus the total number of pages
type Page struct {
	Records    []Record
	TotalPages int
}

// Source serves pages of records. Implementations must return the same
// page for identical requests made in quick succession.
type Source interface {
	FetchPage(ctx context.Context, req Request) (Page, error)
}
