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

package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/tablesync/core/controller"
	"github.com/google/tablesync/core/rows"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	groupStyle  = cellStyle.Bold(true)
)

// Dump renders the controller's displayed page as a static table followed
// by a status line. It is used when stdout is not a terminal.
func Dump(c *controller.Controller) string {
	tree := c.Rows()
	flat := tree.Flatten()

	headers := make([]string, 0, len(tree.Columns))
	for _, def := range tree.Columns {
		headers = append(headers, def.DisplayName())
	}
	body := make([][]string, 0, len(flat))
	for _, r := range flat {
		body = append(body, rowCells(r))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(body...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(flat) && flat[row].Kind == rows.GroupRow:
				return groupStyle
			default:
				return cellStyle
			}
		})

	m := Model{ctrl: c}
	out := t.String() + "\n" + m.statusLine() + "\n"
	if d := c.Display(); d.Failed {
		out += fmt.Sprintf("data source unavailable: %v\n", d.Err)
	}
	return out
}
