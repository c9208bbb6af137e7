// Package chatlog mirrors chat turns to a durable, append-only table with the
// columns (timestamp, session id, role, content) and reads them back for
// rehydration. Backends: SQLite, Google Sheets and an in-memory table.
package chatlog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Header is the schema row every backend keeps (or implies) at position 0.
var Header = []string{"Timestamp", "Session ID", "Role", "Content"}

// NumColumns is the fixed width of the log table.
const NumColumns = 4

// Row roles as stored in the log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUnavailable means the backend could not be reached or refused the
	// caller (network, auth, missing sheet). Persistence is disabled, chat is not.
	ErrUnavailable = errors.New("chat log unavailable")

	// ErrMalformedRow is returned by ParseRow for rows rehydration must skip.
	ErrMalformedRow = errors.New("malformed chat log row")
)

// Row is one logged turn.
type Row struct {
	Timestamp time.Time
	SessionID string
	Role      string
	Content   string
}

// Values renders the row in column order.
func (r Row) Values() []string {
	return []string{r.Timestamp.UTC().Format(time.RFC3339Nano), r.SessionID, r.Role, r.Content}
}

// timeLayouts are tried in order; the space-separated forms are what
// hand-edited spreadsheets and older exports contain.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRole maps the role spellings found in logs to RoleUser or
// RoleAssistant. "model" is the Gemini name for the assistant.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return RoleUser, true
	case "assistant", "model":
		return RoleAssistant, true
	}
	return "", false
}

// IsHeader reports whether cols is the schema row.
func IsHeader(cols []string) bool {
	if len(cols) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(cols[0]), Header[0]) &&
		strings.EqualFold(strings.TrimSpace(cols[1]), Header[1])
}

// ParseRow validates one raw table row. Rows with fewer than four columns, a
// blank session id or an unknown role are malformed. An unparseable
// timestamp is tolerated and leaves Timestamp zero; file order, not time,
// is authoritative.
func ParseRow(cols []string) (Row, error) {
	if len(cols) < NumColumns {
		return Row{}, fmt.Errorf("%w: %d columns, want %d", ErrMalformedRow, len(cols), NumColumns)
	}
	id := strings.TrimSpace(cols[1])
	if id == "" {
		return Row{}, fmt.Errorf("%w: empty session id", ErrMalformedRow)
	}
	role, ok := NormalizeRole(cols[2])
	if !ok {
		return Row{}, fmt.Errorf("%w: unknown role %q", ErrMalformedRow, cols[2])
	}
	ts, _ := parseTimestamp(cols[0])
	return Row{Timestamp: ts, SessionID: id, Role: role, Content: cols[3]}, nil
}
