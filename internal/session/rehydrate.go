package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mixlab-ai/mixlab/internal/chatlog"
	"go.uber.org/zap"
)

// RehydrateResult describes one rehydration pass.
type RehydrateResult struct {
	Sessions int
	Turns    int
	// Skipped counts malformed rows.
	Skipped int
	// Replaced is false when the log held no valid rows and the store was
	// left as it was.
	Replaced bool
}

// Rehydrate rebuilds the store from a full log snapshot, header row first.
//
// Rows are grouped by session id in file order; file order is the turn order
// even where timestamps disagree. The counter becomes the larger of its
// current value and the highest "<Label> n" suffix seen, so a refresh never
// lowers it and ids are never reused. The session of the
// last valid row becomes active, and each session is titled from its first
// user turn with TruncateTitle. Malformed rows are skipped. The resident cap
// is not applied here; the next CreateSession enforces it.
//
// The mapping is swapped in wholesale only when at least one valid row was
// found.
func Rehydrate(s *Store, rows [][]string) RehydrateResult {
	var (
		res      RehydrateResult
		order    []string
		sessions = make(map[string]*Session)
		last     string
		maxN     int
	)
	for i, cols := range rows {
		if i == 0 && chatlog.IsHeader(cols) {
			continue
		}
		row, err := chatlog.ParseRow(cols)
		if err != nil {
			res.Skipped++
			continue
		}
		sess := sessions[row.SessionID]
		if sess == nil {
			sess = &Session{ID: row.SessionID, Title: Untitled, CreatedAt: row.Timestamp}
			sessions[row.SessionID] = sess
			order = append(order, row.SessionID)
			if n, ok := suffix(s.opts.Label, row.SessionID); ok && n > maxN {
				maxN = n
			}
		}
		sess.Turns = append(sess.Turns, Turn{
			Role:      Role(row.Role),
			Content:   row.Content,
			Timestamp: row.Timestamp,
		})
		res.Turns++
		last = row.SessionID
	}

	if len(order) == 0 {
		return res
	}

	for _, sess := range sessions {
		if first, ok := sess.FirstUserTurn(); ok {
			sess.Title = TruncateTitle(first, s.opts.TitleChars)
		}
	}

	s.order = order
	s.sessions = sessions
	s.active = last
	s.counter = max(s.counter, maxN)

	res.Sessions = len(order)
	res.Replaced = true
	return res
}

// RowReader reads the whole log table, header first.
type RowReader interface {
	ReadAll(ctx context.Context) ([][]string, error)
}

// RehydrateFrom reads the log through r and rehydrates s. A read failure
// leaves s untouched and is returned for the caller to log; it is never fatal.
func RehydrateFrom(ctx context.Context, s *Store, r RowReader, log *zap.Logger) (RehydrateResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rows, err := r.ReadAll(ctx)
	if err != nil {
		if errors.Is(err, chatlog.ErrUnavailable) {
			log.Info("chat log unavailable, starting with a fresh session", zap.Error(err))
		} else {
			log.Warn("chat log read failed, starting with a fresh session", zap.Error(err))
		}
		return RehydrateResult{}, fmt.Errorf("rehydrate: %w", err)
	}
	res := Rehydrate(s, rows)
	log.Info("rehydrated sessions",
		zap.Int("sessions", res.Sessions),
		zap.Int("turns", res.Turns),
		zap.Int("skipped", res.Skipped),
		zap.Bool("replaced", res.Replaced),
		zap.String("active", s.Active()),
		zap.Int("counter", s.Counter()))
	return res, nil
}
