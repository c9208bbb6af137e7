package chatlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chatlog.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// storeFactories runs the same behavioural checks against every local backend.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store { return newTestSQLiteStore(t) },
	}
}

func row(id, role, content string, sec int) Row {
	return Row{
		Timestamp: time.Date(2025, 1, 1, 0, 0, sec, 0, time.UTC),
		SessionID: id,
		Role:      role,
		Content:   content,
	}
}

func TestStoreAppendAndRead(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			for i, r := range []Row{
				row("Session 1", RoleUser, "first", 1),
				row("Session 1", RoleAssistant, "second", 2),
				row("Session 2", RoleUser, "third", 3),
			} {
				if err := s.AppendRow(ctx, r); err != nil {
					t.Fatalf("AppendRow %d: %v", i, err)
				}
			}
			rows, err := s.ReadAllRows(ctx)
			if err != nil {
				t.Fatalf("ReadAllRows: %v", err)
			}
			if len(rows) != 4 {
				t.Fatalf("rows = %d, want 4 (header + 3)", len(rows))
			}
			if !IsHeader(rows[0]) {
				t.Errorf("first row = %v, want header", rows[0])
			}
			for i, want := range []string{"first", "second", "third"} {
				if rows[i+1][3] != want {
					t.Errorf("row %d content = %q, want %q", i+1, rows[i+1][3], want)
				}
			}
		})
	}
}

func TestStoreClearAndReset(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			_ = s.AppendRow(ctx, row("Session 1", RoleUser, "x", 1))
			if err := s.ClearAndReset(ctx, Header); err != nil {
				t.Fatalf("ClearAndReset: %v", err)
			}
			rows, err := s.ReadAllRows(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 1 || !IsHeader(rows[0]) {
				t.Errorf("after reset rows = %v, want header only", rows)
			}
		})
	}
}

func TestStoreOverwriteFromRow(t *testing.T) {
	ctx := context.Background()
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			for i := 1; i <= 4; i++ {
				_ = s.AppendRow(ctx, row("Session 1", RoleUser, string(rune('a'+i-1)), i))
			}
			// Keep data rows a, b; replace the tail with z.
			replacement := [][]string{row("Session 9", RoleUser, "z", 9).Values()}
			if err := s.OverwriteFromRow(ctx, 3, replacement); err != nil {
				t.Fatalf("OverwriteFromRow: %v", err)
			}
			rows, _ := s.ReadAllRows(ctx)
			var got []string
			for _, r := range rows[1:] {
				got = append(got, r[3])
			}
			want := []string{"a", "b", "z"}
			if len(got) != len(want) {
				t.Fatalf("contents = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("contents = %v, want %v", got, want)
					break
				}
			}

			if err := s.OverwriteFromRow(ctx, 0, nil); err == nil {
				t.Error("overwriting the header row should fail")
			}
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chatlog.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s1.AppendRow(ctx, row("Session 3", RoleUser, "persist me", 1))
	s1.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	rows, err := s2.ReadAllRows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][3] != "persist me" {
		t.Errorf("rows after reopen = %v", rows)
	}
}
