// Package session holds the in-memory multi-session chat state and keeps it
// reconcilable with the durable chat log.
package session

import (
	"errors"
	"time"

	"github.com/mixlab-ai/mixlab/internal/chatlog"
)

// ErrNotFound is returned when an operation names a session that is not
// resident (deleted, evicted, or never created).
var ErrNotFound = errors.New("session not found")

const (
	// Untitled is the title of a session before one is derived.
	Untitled = "Untitled"

	DefaultMaxResident = 10
	DefaultLabel       = "Session"
	DefaultTitleChars  = 25
)

type Role string

const (
	RoleUser      Role = chatlog.RoleUser
	RoleAssistant Role = chatlog.RoleAssistant
)

// Turn is one message. Turns are never modified after creation.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Session is one ordered conversation thread.
type Session struct {
	ID        string
	Title     string
	Turns     []Turn
	CreatedAt time.Time
}

// FirstUserTurn returns the content of the first user turn, if any.
func (s *Session) FirstUserTurn() (string, bool) {
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			return t.Content, true
		}
	}
	return "", false
}

// UpdatedAt is the time of the last turn, or CreatedAt for an empty session.
func (s *Session) UpdatedAt() time.Time {
	if n := len(s.Turns); n > 0 && !s.Turns[n-1].Timestamp.IsZero() {
		return s.Turns[n-1].Timestamp
	}
	return s.CreatedAt
}

func (s *Session) clone() Session {
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	return c
}

// Summary is a read-only listing entry.
type Summary struct {
	ID        string
	Title     string
	Turns     int
	CreatedAt time.Time
	UpdatedAt time.Time
	Active    bool
}
