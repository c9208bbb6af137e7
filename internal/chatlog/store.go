package chatlog

import (
	"context"
	"fmt"
	"sync"
)

// Store is the durable log table. Rows are addressed by position: index 0 is
// the header, data rows follow in append order.
type Store interface {
	// AppendRow adds one row at the end of the table.
	AppendRow(ctx context.Context, row Row) error

	// ReadAllRows returns the whole table, header row first.
	ReadAllRows(ctx context.Context) ([][]string, error)

	// ClearAndReset empties the table and writes header as its only row.
	ClearAndReset(ctx context.Context, header []string) error

	// OverwriteFromRow drops every row at position >= rowIndex and writes rows
	// starting there. rowIndex must be >= 1; the header is never overwritten.
	OverwriteFromRow(ctx context.Context, rowIndex int, rows [][]string) error

	Close() error
}

func checkRowIndex(rowIndex int) error {
	if rowIndex < 1 {
		return fmt.Errorf("overwrite from row %d: header row is immutable", rowIndex)
	}
	return nil
}

// MemoryStore is an in-process Store. It backs tests and can stand in for a
// remote table when persistence across restarts is not needed.
type MemoryStore struct {
	mu   sync.Mutex
	rows [][]string
	fail error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a table holding only the header.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: [][]string{append([]string(nil), Header...)}}
}

// NewMemoryStoreFromRows seeds the table verbatim (header included, if any).
func NewMemoryStoreFromRows(rows [][]string) *MemoryStore {
	return &MemoryStore{rows: copyRows(rows)}
}

// SetFail makes every following operation return err (nil restores it).
func (m *MemoryStore) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MemoryStore) AppendRow(ctx context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.rows = append(m.rows, row.Values())
	return nil
}

func (m *MemoryStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return copyRows(m.rows), nil
}

func (m *MemoryStore) ClearAndReset(ctx context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.rows = [][]string{append([]string(nil), header...)}
	return nil
}

func (m *MemoryStore) OverwriteFromRow(ctx context.Context, rowIndex int, rows [][]string) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if rowIndex < len(m.rows) {
		m.rows = m.rows[:rowIndex]
	}
	m.rows = append(m.rows, copyRows(rows)...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of rows including the header.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
