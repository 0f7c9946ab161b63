// Package recordstore is the tabular persistence layer of the clinic. Every
// entity lives in a named table with a fixed header; rows are fetched whole,
// appended in header order, and mutated one cell at a time.
package recordstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// HeaderOffset is the position of the first data row. Position 1 is the
// header row, so data rows start at 2.
const HeaderOffset = 2

var (
	ErrUnknownTable   = errors.New("unknown table")
	ErrColumnNotFound = errors.New("column not found")
	ErrRowNotFound    = errors.New("row not found")
	ErrDuplicate      = errors.New("duplicate value")
	ErrTooManyValues  = errors.New("more values than columns")
)

// Row is one data row keyed by header name.
type Row struct {
	ID       uuid.UUID         `json:"id"`
	Position int               `json:"position"`
	Values   map[string]string `json:"values"`
}

// Get returns the value of column, or "" when the row has no such column.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// Store is implemented by every record store backend.
type Store interface {
	// Header returns the column names of table in order.
	Header(ctx context.Context, table Table) ([]string, error)
	// FetchAll returns every row of table in append order.
	FetchAll(ctx context.Context, table Table) ([]Row, error)
	// AppendRow adds a row whose values follow the header order. Missing
	// trailing values are stored as empty strings.
	AppendRow(ctx context.Context, table Table, values []string) (Row, error)
	// UpdateCell sets one column of the row identified by id.
	UpdateCell(ctx context.Context, table Table, id uuid.UUID, column, value string) error
	// NextID issues the next sequential identifier for table.
	NextID(ctx context.Context, table Table) (int, error)
}

// ColumnIndex returns the 1-based position of name within header. Matching
// ignores surrounding whitespace and case.
func ColumnIndex(header []string, name string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i + 1, nil
		}
	}
	return 0, ErrColumnNotFound
}

// normalize folds a unique-column value the same way email lookups do.
func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func padValues(columns, values []string) ([]string, error) {
	if len(values) > len(columns) {
		return nil, ErrTooManyValues
	}
	out := make([]string, len(columns))
	copy(out, values)
	return out, nil
}
