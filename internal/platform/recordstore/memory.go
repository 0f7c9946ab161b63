package recordstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memRow struct {
	id     uuid.UUID
	values []string
}

// MemoryStore keeps every table in process memory. It backs tests and the
// development server.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     map[Table][]memRow
	counters map[Table]int
}

// NewMemoryStore returns an empty store with every known table.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		rows:     make(map[Table][]memRow),
		counters: make(map[Table]int),
	}
	for _, t := range Tables() {
		m.rows[t] = nil
	}
	return m
}

func (m *MemoryStore) Header(_ context.Context, table Table) ([]string, error) {
	s, err := SchemaFor(table)
	if err != nil {
		return nil, err
	}
	return s.header(), nil
}

func (m *MemoryStore) FetchAll(ctx context.Context, table Table) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := SchemaFor(table)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.rows[table]
	out := make([]Row, 0, len(stored))
	for i, r := range stored {
		values := make(map[string]string, len(s.Columns))
		for j, col := range s.Columns {
			values[col] = r.values[j]
		}
		out = append(out, Row{ID: r.id, Position: i + HeaderOffset, Values: values})
	}
	return out, nil
}

func (m *MemoryStore) AppendRow(ctx context.Context, table Table, values []string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	s, err := SchemaFor(table)
	if err != nil {
		return Row{}, err
	}
	padded, err := padValues(s.Columns, values)
	if err != nil {
		return Row{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx := s.uniqueIndex(); idx >= 0 {
		key := normalize(padded[idx])
		for _, r := range m.rows[table] {
			if normalize(r.values[idx]) == key {
				return Row{}, fmt.Errorf("%w: %s %q", ErrDuplicate, s.Unique, padded[idx])
			}
		}
	}

	r := memRow{id: uuid.New(), values: padded}
	m.rows[table] = append(m.rows[table], r)

	out := Row{ID: r.id, Position: len(m.rows[table]) - 1 + HeaderOffset, Values: make(map[string]string, len(s.Columns))}
	for j, col := range s.Columns {
		out.Values[col] = padded[j]
	}
	return out, nil
}

func (m *MemoryStore) UpdateCell(ctx context.Context, table Table, id uuid.UUID, column, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := SchemaFor(table)
	if err != nil {
		return err
	}
	col, err := ColumnIndex(s.Columns, column)
	if err != nil {
		return fmt.Errorf("%w: %s", err, column)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.rows[table] {
		if m.rows[table][i].id == id {
			m.rows[table][i].values[col-1] = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRowNotFound, id)
}

func (m *MemoryStore) NextID(ctx context.Context, table Table) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := SchemaFor(table); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.counters[table]
	if n := len(m.rows[table]); n > next {
		next = n
	}
	next++
	m.counters[table] = next
	return next, nil
}
