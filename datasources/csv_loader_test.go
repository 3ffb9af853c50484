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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestImportCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		options CSVOptions
		want    []Person
		wantErr bool
	}{
		{
			name:  "header in any order with extra columns",
			input: "Sex,Age,Name,ID,city\nfemale,31,Ana,a1,Recife\nmale, 25 ,Bruno,b2,Natal\n",
			want: []Person{
				{ID: "a1", Name: "Ana", Age: 31, Sex: "female"},
				{ID: "b2", Name: "Bruno", Age: 25, Sex: "male"},
			},
		},
		{
			name:    "semicolon delimiter",
			input:   "id;name;age;sex\nc3;Carla;47;female\n",
			options: CSVOptions{Delimiter: ';'},
			want:    []Person{{ID: "c3", Name: "Carla", Age: 47, Sex: "female"}},
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing column",
			input:   "id,name,age\na1,Ana,31\n",
			wantErr: true,
		},
		{
			name:    "bad age",
			input:   "id,name,age,sex\na1,Ana,old,female\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImportCSV(strings.NewReader(tt.input), tt.options)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ImportCSV failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ImportCSV mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCSVLoaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testPeople()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewCSVLoader().Open(context.Background(), map[string]string{"path": path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	req := Request{PageIndex: 0, PageSize: 100}
	got, err := src.FetchPage(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	want, _ := NewMemorySource(PeopleRecords(testPeople())).FetchPage(context.Background(), req)
	if diff := cmp.Diff(NewPageResponse(want), NewPageResponse(got)); diff != "" {
		t.Errorf("CSV page mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewCSVLoader().Open(context.Background(), map[string]string{"path": path, "delimiter": ";;"}); err == nil {
		t.Error("expected an error for a multi-character delimiter")
	}
}
