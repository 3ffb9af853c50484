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

package columns

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/tablesync/core/query"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		def  Def
		want string
	}{
		{Def{ID: "id", Header: "ID"}, "ID"},
		{Def{ID: "name"}, "Name"},
		{Def{ID: "signup_year"}, "Signup Year"},
	}
	for _, tt := range tests {
		if got := tt.def.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.def.ID, got, tt.want)
		}
	}
}

func TestSetHeader(t *testing.T) {
	set := PeopleColumns()
	if got := set.Header("age"); got != "Age" {
		t.Errorf("Header(age) = %q, want Age", got)
	}
	if got := set.Header("missing"); got != "missing" {
		t.Errorf("Header(missing) = %q, want missing", got)
	}
}

func TestVisibility(t *testing.T) {
	set := PeopleColumns()
	visibility := VisibilityState{"age": false, "sex": true}

	if !visibility.IsVisible("name") {
		t.Errorf("absent column should be visible")
	}
	if visibility.IsVisible("age") {
		t.Errorf("age should be hidden")
	}
	if diff := cmp.Diff([]string{"id", "name", "sex"}, set.Visible(visibility).IDs()); diff != "" {
		t.Errorf("Visible mismatch (-want +got):\n%s", diff)
	}

	clone := visibility.Clone()
	clone["age"] = true
	if visibility.IsVisible("age") {
		t.Errorf("Clone shares memory with the original")
	}
}

func TestValidate(t *testing.T) {
	if err := PeopleColumns().Validate(); err != nil {
		t.Fatalf("people columns invalid: %v", err)
	}
	bad := []Set{
		{{ID: ""}},
		{{ID: "a,b"}},
		{{ID: "-age"}},
		{{ID: "age"}, {ID: "age"}},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("expected %v to be rejected", s.IDs())
		}
	}
}

func TestToggleSort(t *testing.T) {
	t.Run("unsorted becomes ascending", func(t *testing.T) {
		got := ToggleSort(query.SortSpec{}, "age")
		want := query.SortSpec{{Name: "age"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("ascending becomes descending", func(t *testing.T) {
		got := ToggleSort(query.SortSpec{{Name: "age"}}, "age")
		want := query.SortSpec{{Name: "age", Descending: true}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("descending becomes ascending", func(t *testing.T) {
		got := ToggleSort(query.SortSpec{{Name: "age", Descending: true}}, "age")
		want := query.SortSpec{{Name: "age"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("other column replaces the sort", func(t *testing.T) {
		got := ToggleSort(query.SortSpec{{Name: "age", Descending: true}, {Name: "name"}}, "sex")
		want := query.SortSpec{{Name: "sex"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"strings", "Ana", "Bruno", -1},
		{"ints numerically", 9, 10, -1},
		{"equal ints", 42, 42, 0},
		{"floats", 2.5, 1.5, 1},
		{"NaN last", math.NaN(), 1.0, 1},
		{"bools", false, true, -1},
		{"missing last", nil, "x", 1},
		{"present before missing", "x", nil, -1},
		{"both missing", nil, nil, 0},
		{"mixed types by string", 10, "9", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
