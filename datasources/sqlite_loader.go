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
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/tablesync/core/pagination"
	_ "modernc.org/sqlite"
)

// sortableFields maps sortable record fields to their SQL column.
// ORDER BY clauses are built only from this whitelist.
var sortableFields = map[string]string{
	"id":   "id",
	"name": "name",
	"age":  "age",
	"sex":  "sex",
}

const peopleSchema = `CREATE TABLE IF NOT EXISTS people (
	id   TEXT NOT NULL,
	name TEXT NOT NULL,
	age  INTEGER NOT NULL,
	sex  TEXT NOT NULL
)`

// SQLiteSource serves pages from a SQLite people table.
// Rows with equal sort keys keep their insertion order.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) a SQLite database at path.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, peopleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create people table: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the database
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Insert appends people in order inside one transaction
func (s *SQLiteSource) Insert(ctx context.Context, people []Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO people (id, name, age, sex) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range people {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Age, p.Sex); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert into people: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of rows in the people table
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return n, nil
}

// FetchPage implements Source
func (s *SQLiteSource) FetchPage(ctx context.Context, req Request) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}
	orderBy, err := orderByClause(req)
	if err != nil {
		return Page{}, err
	}

	count, err := s.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	total := pagination.TotalPages(count, req.PageSize)
	if req.PageIndex >= total {
		return Page{Records: []Record{}, TotalPages: total}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, age, sex FROM people ORDER BY `+orderBy+` LIMIT ? OFFSET ?`,
		req.PageSize, req.PageIndex*req.PageSize)
	if err != nil {
		return Page{}, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Sex); err != nil {
			return Page{}, fmt.Errorf("scan person: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	return Page{Records: records, TotalPages: total}, nil
}

func orderByClause(req Request) (string, error) {
	terms := make([]string, 0, len(req.Sort)+1)
	for _, sc := range req.Sort {
		col, ok := sortableFields[sc.Name]
		if !ok {
			return "", fmt.Errorf("%w: cannot sort by %q", ErrInvalidRequest, sc.Name)
		}
		if sc.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	terms = append(terms, "rowid ASC")
	return strings.Join(terms, ", "), nil
}

// SQLiteLoader opens SQLite people databases. Config keys: "path".
type SQLiteLoader struct{}

// NewSQLiteLoader creates a new SQLite loader
func NewSQLiteLoader() *SQLiteLoader {
	return &SQLiteLoader{}
}

// SourceType returns "sqlite"
func (l *SQLiteLoader) SourceType() string {
	return "sqlite"
}

// Open implements Loader
func (l *SQLiteLoader) Open(ctx context.Context, config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("sqlite source requires a path")
	}
	return OpenSQLite(ctx, path)
}
