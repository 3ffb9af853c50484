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

// Package tui is an interactive terminal front end for a table controller.
// Every key press becomes a controller transition; fetches run as commands
// and their results go back through Commit, which discards stale pages.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/tablesync/core/columns"
	"github.com/google/tablesync/core/controller"
	"github.com/google/tablesync/core/rows"
	"github.com/google/tablesync/datasources"
)

// KeyMap defines the keybindings
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	BiggerPage  key.Binding
	SmallerPage key.Binding
	NextColumn  key.Binding
	PrevColumn  key.Binding
	Sort        key.Binding
	Group       key.Binding
	Hide        key.Binding
	ShowAll     key.Binding
	Expand      key.Binding
	Refresh     key.Binding
	Quit        key.Binding
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevPage, k.NextPage, k.NextColumn, k.Sort, k.Group, k.Hide, k.ShowAll, k.Expand, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage, k.SmallerPage, k.BiggerPage},
		{k.NextColumn, k.PrevColumn, k.Sort, k.Group, k.Hide, k.ShowAll},
		{k.Expand, k.Refresh, k.Quit},
	}
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextPage:    key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→", "next page")),
		PrevPage:    key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←", "prev page")),
		BiggerPage:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "more rows")),
		SmallerPage: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "fewer rows")),
		NextColumn:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next column")),
		PrevColumn:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev column")),
		Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Group:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "group")),
		Hide:        key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hide")),
		ShowAll:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "show all")),
		Expand:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type styles struct {
	title    lipgloss.Style
	banner   lipgloss.Style
	status   lipgloss.Style
	errorMsg lipgloss.Style
	frame    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		banner:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("124")).Padding(0, 1),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errorMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		frame:    lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
	}
}

// fetchedMsg carries a finished fetch back to Update
type fetchedMsg struct {
	result controller.Result
}

// Model is the bubbletea model of the table
type Model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	source datasources.Source
	title  string

	keys    KeyMap
	help    help.Model
	table   table.Model
	spinner spinner.Model
	styles  styles

	// rows parallel to the bubbles table rows
	rows []*rows.Row
	// focused column, index into the visible columns
	column int

	width   int
	height  int
	message string
}

// New creates a model over a controller that has not been mounted yet
func New(ctx context.Context, c *controller.Controller, source datasources.Source, title string) Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		ctx:     ctx,
		ctrl:    c,
		source:  source,
		title:   title,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		table:   t,
		spinner: sp,
		styles:  defaultStyles(),
	}
	m.syncTable()
	return m
}

// Controller returns the controller driven by the model
func (m Model) Controller() *controller.Controller {
	return m.ctrl
}

// Init mounts the controller and starts the first fetch
func (m Model) Init() tea.Cmd {
	mount := m.ctrl.Mount()
	return tea.Batch(m.fetch(mount.Fetch), m.spinner.Tick)
}

func (m Model) fetch(t *controller.Ticket) tea.Cmd {
	if t == nil {
		return nil
	}
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		return fetchedMsg{result: controller.Run(ctx, source, t)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// title, banner, status, message and help lines plus the frame
		m.table.SetHeight(max(msg.Height-9, 3))
		m.table.SetWidth(max(msg.Width-2, 20))
		m.help.Width = msg.Width
		return m, nil

	case fetchedMsg:
		res := msg.result
		next, ok := m.ctrl.Commit(res.Ticket, res.Page, res.Err)
		if ok {
			m.syncTable()
		}
		return m, m.fetch(next.Fetch)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	visible := m.ctrl.Rows().Columns

	var tr controller.Transition
	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextPage):
		tr, err = m.ctrl.NextPage()
	case key.Matches(msg, m.keys.PrevPage):
		tr, err = m.ctrl.PreviousPage()
	case key.Matches(msg, m.keys.BiggerPage):
		size := m.ctrl.State().PageSize
		tr, err = m.ctrl.SetPageSize(m.ctrl.PageSizes().Next(size))
	case key.Matches(msg, m.keys.SmallerPage):
		size := m.ctrl.State().PageSize
		tr, err = m.ctrl.SetPageSize(m.ctrl.PageSizes().Previous(size))
	case key.Matches(msg, m.keys.NextColumn):
		if len(visible) > 0 {
			m.column = (m.column + 1) % len(visible)
		}
	case key.Matches(msg, m.keys.PrevColumn):
		if len(visible) > 0 {
			m.column = (m.column + len(visible) - 1) % len(visible)
		}
	case key.Matches(msg, m.keys.Sort):
		if id, ok := m.focusedColumn(visible); ok {
			tr, err = m.ctrl.ToggleSort(id)
		}
	case key.Matches(msg, m.keys.Group):
		if id, ok := m.focusedColumn(visible); ok {
			tr, err = m.ctrl.ToggleGrouping(id)
		}
	case key.Matches(msg, m.keys.Hide):
		if id, ok := m.focusedColumn(visible); ok {
			tr, err = m.ctrl.ToggleColumnVisibility(id, false)
		}
	case key.Matches(msg, m.keys.ShowAll):
		tr = m.ctrl.ShowAllColumns()
	case key.Matches(msg, m.keys.Expand):
		if cursor := m.table.Cursor(); cursor >= 0 && cursor < len(m.rows) {
			if r := m.rows[cursor]; r.Kind == rows.GroupRow {
				tr = m.ctrl.ToggleExpanded(r.GroupKey)
			}
		}
	case key.Matches(msg, m.keys.Refresh):
		tr = m.ctrl.Refresh()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	if err != nil {
		m.message = err.Error()
	}
	m.syncTable()
	return m, m.fetch(tr.Fetch)
}

func (m Model) focusedColumn(visible columns.Set) (string, bool) {
	if m.column < 0 || m.column >= len(visible) {
		return "", false
	}
	return visible[m.column].ID, true
}

// syncTable rebuilds the bubbles table from the controller's row model
func (m *Model) syncTable() {
	tree := m.ctrl.Rows()
	state := m.ctrl.State()
	if m.column >= len(tree.Columns) {
		m.column = max(len(tree.Columns)-1, 0)
	}

	m.rows = tree.Flatten()
	body := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		body = append(body, rowCells(r))
	}

	cols := make([]table.Column, 0, len(tree.Columns))
	for i, def := range tree.Columns {
		title := def.DisplayName()
		if desc, sorted := state.Sort.Direction(def.ID); sorted {
			if desc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		if state.Grouping == def.ID {
			title += " ⊞"
		}
		if i == m.column {
			title = "[" + title + "]"
		}
		width := lipgloss.Width(title)
		for _, cells := range body {
			width = max(width, lipgloss.Width(cells[i]))
		}
		cols = append(cols, table.Column{Title: title, Width: min(max(width, 6), 30)})
	}

	// rows must never have more cells than the table has columns. SetRows
	// clamps the cursor to -1 on an empty table, so it is restored after.
	cursor := max(m.table.Cursor(), 0)
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(body)
	m.table.SetCursor(min(cursor, max(len(body)-1, 0)))
}

func rowCells(r *rows.Row) table.Row {
	cells := make(table.Row, len(r.Cells))
	for i, cell := range r.Cells {
		switch {
		case r.Kind == rows.GroupRow && cell.Grouped:
			marker := "▸"
			if r.Expanded {
				marker = "▾"
			}
			cells[i] = fmt.Sprintf("%s %s (%d)", marker, cell.Value, r.Count)
		case cell.Placeholder:
			cells[i] = ""
		default:
			cells[i] = cell.Value
		}
	}
	return cells
}

// View renders the model
func (m Model) View() string {
	display := m.ctrl.Display()
	var b strings.Builder

	b.WriteString(m.styles.title.Render(m.title))
	if display.Loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")
	if display.Failed {
		b.WriteString(m.styles.banner.Render(fmt.Sprintf("data source unavailable: %v (showing last page)", display.Err)))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.frame.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(m.styles.status.Render(m.statusLine()))
	b.WriteString("\n")
	if m.message != "" {
		b.WriteString(m.styles.errorMsg.Render(m.message))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) statusLine() string {
	state := m.ctrl.State()
	parts := []string{}
	if state.TotalKnown {
		parts = append(parts, fmt.Sprintf("Page %d of %d", state.PageIndex+1, max(state.TotalPages, 1)))
	} else {
		parts = append(parts, fmt.Sprintf("Page %d", state.PageIndex+1))
	}
	parts = append(parts, fmt.Sprintf("%d per page", state.PageSize))
	if len(state.Sort) > 0 {
		parts = append(parts, "sort "+state.Sort.String())
	}
	if state.Grouping != "" {
		parts = append(parts, "grouped by "+m.ctrl.Columns().Header(state.Grouping))
	}
	if qs := m.ctrl.QueryString(); qs != "" {
		parts = append(parts, "?"+qs)
	}
	return strings.Join(parts, " · ")
}
