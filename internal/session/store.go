package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options configures a Store. Zero values take the defaults.
type Options struct {
	// MaxResident caps how many sessions stay in memory.
	MaxResident int
	// Label prefixes minted ids: "<Label> <n>".
	Label string
	// TitleChars is the budget of the truncate title heuristic.
	TitleChars int
	Now        func() time.Time
}

func (o *Options) setDefaults() {
	if o.MaxResident < 1 {
		o.MaxResident = DefaultMaxResident
	}
	if strings.TrimSpace(o.Label) == "" {
		o.Label = DefaultLabel
	}
	if o.TitleChars < 1 {
		o.TitleChars = DefaultTitleChars
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store is the resident set of sessions. Iteration order is creation order;
// eviction removes from the front.
//
// A Store is not safe for concurrent use. It is owned by the goroutine that
// handles user interactions; other goroutines only ever see copies.
type Store struct {
	opts     Options
	order    []string
	sessions map[string]*Session
	active   string
	counter  int
}

// NewStore returns a store holding one empty session "<Label> 1", active.
func NewStore(opts Options) *Store {
	opts.setDefaults()
	s := &Store{opts: opts}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.order = nil
	s.sessions = make(map[string]*Session)
	s.active = ""
	s.counter = 0
	s.CreateSession()
}

// CreateSession mints the next id, appends an empty session and makes it
// active. While the store is at its cap the oldest-created sessions are
// evicted first; their ids are returned. Evicted turns stay in the chat log.
func (s *Store) CreateSession() (id string, evicted []string) {
	for len(s.order) >= s.opts.MaxResident {
		oldest := s.order[0]
		s.remove(oldest)
		evicted = append(evicted, oldest)
	}

	s.counter++
	id = s.mintID(s.counter)
	// An id rehydrated under a different counter history may already exist.
	for s.sessions[id] != nil {
		s.counter++
		id = s.mintID(s.counter)
	}

	s.sessions[id] = &Session{ID: id, Title: Untitled, CreatedAt: s.opts.Now()}
	s.order = append(s.order, id)
	s.active = id
	return id, evicted
}

func (s *Store) mintID(n int) string {
	return s.opts.Label + " " + strconv.Itoa(n)
}

// remove drops id from the mapping. If it was active, active is cleared.
func (s *Store) remove(id string) {
	delete(s.sessions, id)
	for i, k := range s.order {
		if k == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == id {
		s.active = ""
	}
}

// SwitchActive makes id the active session.
func (s *Store) SwitchActive(id string) error {
	if s.sessions[id] == nil {
		return fmt.Errorf("switch to %q: %w", id, ErrNotFound)
	}
	s.active = id
	return nil
}

// AppendTurn adds a turn stamped with the current time.
func (s *Store) AppendTurn(id string, role Role, content string) (Turn, error) {
	sess := s.sessions[id]
	if sess == nil {
		return Turn{}, fmt.Errorf("append to %q: %w", id, ErrNotFound)
	}
	t := Turn{Role: role, Content: content, Timestamp: s.opts.Now()}
	sess.Turns = append(sess.Turns, t)
	return t, nil
}

// DeleteSession removes id. A deleted active session hands over to the most
// recently created remaining one; deleting the last session creates a fresh
// one so the store is never empty.
func (s *Store) DeleteSession(id string) error {
	if s.sessions[id] == nil {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	s.remove(id)
	if len(s.order) == 0 {
		s.CreateSession()
		return nil
	}
	if s.active == "" {
		s.active = s.order[len(s.order)-1]
	}
	return nil
}

// WipeAll drops every session and starts over at "<Label> 1".
func (s *Store) WipeAll() {
	s.reset()
}

// Title returns the display title of id.
func (s *Store) Title(id string) (string, error) {
	sess := s.sessions[id]
	if sess == nil {
		return "", fmt.Errorf("title of %q: %w", id, ErrNotFound)
	}
	return sess.Title, nil
}

// SetTitleIfUnset stores title unless the session already has one. It
// reports whether the title was applied. Blank titles are ignored.
func (s *Store) SetTitleIfUnset(id, title string) (bool, error) {
	sess := s.sessions[id]
	if sess == nil {
		return false, fmt.Errorf("set title of %q: %w", id, ErrNotFound)
	}
	title = strings.TrimSpace(title)
	if sess.Title != Untitled || title == "" || title == Untitled {
		return false, nil
	}
	sess.Title = title
	return true, nil
}

// Active returns the active session id. It is never empty between calls.
func (s *Store) Active() string { return s.active }

// Get returns a copy of session id.
func (s *Store) Get(id string) (Session, error) {
	sess := s.sessions[id]
	if sess == nil {
		return Session{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return sess.clone(), nil
}

// IDs returns session ids in creation order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}

// List summarizes sessions in creation order.
func (s *Store) List() []Summary {
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		out = append(out, Summary{
			ID:        id,
			Title:     sess.Title,
			Turns:     len(sess.Turns),
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt(),
			Active:    id == s.active,
		})
	}
	return out
}

// Len is the number of resident sessions.
func (s *Store) Len() int { return len(s.order) }

// Counter is the numeric suffix of the most recently minted id.
func (s *Store) Counter() int { return s.counter }

// MaxResident is the configured cap.
func (s *Store) MaxResident() int { return s.opts.MaxResident }

// Label is the id prefix.
func (s *Store) Label() string { return s.opts.Label }

// Resolve maps user input to a session id: an exact id, a bare number
// ("3" for "Session 3") or a 1-based position in List order prefixed by '#'.
func (s *Store) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if s.sessions[ref] != nil {
		return ref, nil
	}
	if strings.HasPrefix(ref, "#") {
		if n, err := strconv.Atoi(ref[1:]); err == nil && n >= 1 && n <= len(s.order) {
			return s.order[n-1], nil
		}
	} else if n, err := strconv.Atoi(ref); err == nil {
		if id := s.mintID(n); s.sessions[id] != nil {
			return id, nil
		}
	}
	for _, id := range s.order {
		if strings.EqualFold(id, ref) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%q: %w", ref, ErrNotFound)
}

// suffix parses n from "<label> n". ok is false for ids in any other form.
func suffix(label, id string) (int, bool) {
	rest, found := strings.CutPrefix(id, label+" ")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}
