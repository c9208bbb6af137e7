package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mixlab-ai/mixlab/internal/config"
	_ "modernc.org/sqlite"
)

// The header is implied by the schema; seq preserves append order.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS chat_log (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         TEXT NOT NULL,
    session_id TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chat_log_session ON chat_log(session_id);
`

// SQLiteStore implements Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// DefaultDBPath returns the default database path (~/.local/share/mixlab/chatlog.db).
func DefaultDBPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chatlog.db"), nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps the append order equal to the dispatch order.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AppendRow(ctx context.Context, row Row) error {
	v := row.Values()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_log (ts, session_id, role, content) VALUES (?, ?, ?, ?)`,
		v[0], v[1], v[2], v[3],
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, session_id, role, content FROM chat_log ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	out := [][]string{append([]string(nil), Header...)}
	for rows.Next() {
		var ts, id, role, content string
		if err := rows.Scan(&ts, &id, &role, &content); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, []string{ts, id, role, content})
	}
	return out, rows.Err()
}

// ClearAndReset deletes every row. The header argument is only checked for
// width since the schema carries the column names.
func (s *SQLiteStore) ClearAndReset(ctx context.Context, header []string) error {
	if len(header) != NumColumns {
		return fmt.Errorf("header has %d columns, want %d", len(header), NumColumns)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_log`); err != nil {
		return fmt.Errorf("clear log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) OverwriteFromRow(ctx context.Context, rowIndex int, rows [][]string) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin overwrite: %w", err)
	}
	defer tx.Rollback()

	// Data row n (1-based, after the header) is the n-th seq in order.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM chat_log WHERE seq IN (
			SELECT seq FROM chat_log ORDER BY seq LIMIT -1 OFFSET ?
		)`, rowIndex-1)
	if err != nil {
		return fmt.Errorf("truncate log: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_log (ts, session_id, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		cols := make([]string, NumColumns)
		copy(cols, r)
		if _, err := stmt.ExecContext(ctx, cols[0], cols[1], cols[2], cols[3]); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit overwrite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
