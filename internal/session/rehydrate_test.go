package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mixlab-ai/mixlab/internal/chatlog"
)

func logRow(sec int, id, role, content string) []string {
	return chatlog.Row{
		Timestamp: time.Date(2025, 3, 1, 9, 0, sec, 0, time.UTC),
		SessionID: id,
		Role:      role,
		Content:   content,
	}.Values()
}

func withHeader(rows ...[]string) [][]string {
	return append([][]string{chatlog.Header}, rows...)
}

// snapshot captures everything observable about a store.
type snapshot struct {
	IDs      []string
	Active   string
	Counter  int
	Sessions []Session
}

func takeSnapshot(t *testing.T, s *Store) snapshot {
	t.Helper()
	snap := snapshot{IDs: s.IDs(), Active: s.Active(), Counter: s.Counter()}
	for _, id := range snap.IDs {
		sess, err := s.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		snap.Sessions = append(snap.Sessions, sess)
	}
	return snap
}

func turnContents(t *testing.T, s *Store, id string) []string {
	t.Helper()
	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get(%q): %v", id, err)
	}
	var out []string
	for _, turn := range sess.Turns {
		out = append(out, turn.Content)
	}
	return out
}

func TestRehydrateGroupsInFileOrder(t *testing.T) {
	rows := withHeader(
		logRow(1, "Session 1", "user", "Ideas for a summer mocktail with basil"),
		logRow(2, "Session 1", "assistant", "Try a basil lemonade."),
		logRow(3, "Session 2", "user", "Coffee syrups?"),
		// Out-of-order timestamp: file order still wins.
		logRow(0, "Session 1", "user", "Less sugar please"),
		logRow(5, "Session 2", "model", "Hazelnut and caramel."),
	)
	s := newTestStore(t, 10)
	res := Rehydrate(s, rows)

	if !res.Replaced || res.Sessions != 2 || res.Turns != 5 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"Session 1", "Session 2"}, s.IDs()); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	want := []string{"Ideas for a summer mocktail with basil", "Try a basil lemonade.", "Less sugar please"}
	if diff := cmp.Diff(want, turnContents(t, s, "Session 1")); diff != "" {
		t.Errorf("Session 1 turns (-want +got):\n%s", diff)
	}
	if s.Active() != "Session 2" {
		t.Errorf("active = %q, want the session of the last row", s.Active())
	}
	sess, _ := s.Get("Session 2")
	if sess.Turns[1].Role != RoleAssistant {
		t.Errorf("model role not normalized: %q", sess.Turns[1].Role)
	}
	if title, _ := s.Title("Session 1"); title != "Ideas for a summer mockta..." {
		t.Errorf("title = %q", title)
	}
	if title, _ := s.Title("Session 2"); title != "Coffee syrups?" {
		t.Errorf("title = %q", title)
	}
}

func TestRehydrateCounterMonotonicity(t *testing.T) {
	s := newTestStore(t, 10)
	Rehydrate(s, withHeader(
		logRow(1, "Session 7", "user", "a"),
		logRow(2, "Session 3", "user", "b"),
		logRow(3, "Brainstorm", "user", "c"),
	))
	if s.Counter() != 7 {
		t.Errorf("counter = %d, want 7", s.Counter())
	}
	if id, _ := s.CreateSession(); id != "Session 8" {
		t.Errorf("next id = %q, want Session 8", id)
	}
	if _, err := s.Get("Brainstorm"); err != nil {
		t.Errorf("non-numeric id dropped: %v", err)
	}
}

func TestRehydrateNeverLowersCounter(t *testing.T) {
	s := newTestStore(t, 10)
	for i := 0; i < 5; i++ {
		s.CreateSession()
	}
	Rehydrate(s, withHeader(logRow(1, "Session 2", "user", "x")))
	if s.Counter() != 6 {
		t.Errorf("counter = %d, want 6", s.Counter())
	}
	if id, _ := s.CreateSession(); id != "Session 7" {
		t.Errorf("next id = %q, want Session 7", id)
	}
}

func TestRehydrateMalformedRowTolerance(t *testing.T) {
	rows := withHeader(
		logRow(1, "Session 1", "user", "one"),
		[]string{"2025-03-01T09:00:02Z", "Session 1"},
		logRow(3, "Session 1", "assistant", "two"),
		logRow(4, "Session 1", "user", "three"),
	)
	s := newTestStore(t, 10)
	res := Rehydrate(s, rows)
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if got := turnContents(t, s, "Session 1"); len(got) != 3 {
		t.Errorf("turns = %v, want 3", got)
	}
}

func TestRehydrateSkipsBadRoleAndBlankID(t *testing.T) {
	s := newTestStore(t, 10)
	res := Rehydrate(s, withHeader(
		logRow(1, "Session 1", "system", "x"),
		logRow(2, "", "user", "y"),
		logRow(3, "Session 4", "user", "kept"),
	))
	if res.Skipped != 2 || res.Sessions != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRehydrateEmptyLogKeepsStore(t *testing.T) {
	for name, rows := range map[string][][]string{
		"nil":         nil,
		"header only": withHeader(),
		"all invalid": withHeader([]string{"only", "two"}),
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, 10)
			s.AppendTurn("Session 1", RoleUser, "local")
			before := takeSnapshot(t, s)
			res := Rehydrate(s, rows)
			if res.Replaced {
				t.Error("store replaced from an empty log")
			}
			if diff := cmp.Diff(before, takeSnapshot(t, s)); diff != "" {
				t.Errorf("store changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestRehydrateHeaderlessLog(t *testing.T) {
	s := newTestStore(t, 10)
	res := Rehydrate(s, [][]string{
		logRow(1, "Session 2", "user", "first"),
		logRow(2, "Session 2", "assistant", "second"),
	})
	if res.Turns != 2 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRehydrationIdempotence(t *testing.T) {
	rows := withHeader(
		logRow(1, "Session 3", "user", "Tropical punch for 40 guests"),
		logRow(2, "Session 3", "assistant", "Pineapple, passion fruit, lime."),
		logRow(3, "Session 5", "assistant", "Orphan assistant turn"),
		logRow(4, "Session 5", "user", "Seasonal autumn drinks"),
	)
	s := newTestStore(t, 10)
	Rehydrate(s, rows)
	first := takeSnapshot(t, s)
	Rehydrate(s, rows)
	if diff := cmp.Diff(first, takeSnapshot(t, s)); diff != "" {
		t.Errorf("second rehydration differs (-first +second):\n%s", diff)
	}

	fresh := newTestStore(t, 10)
	Rehydrate(fresh, rows)
	if diff := cmp.Diff(first, takeSnapshot(t, fresh)); diff != "" {
		t.Errorf("rehydrating a fresh store differs (-first +fresh):\n%s", diff)
	}
	if title, _ := s.Title("Session 5"); title != "Seasonal autumn drinks" {
		t.Errorf("title = %q, want the first user turn", title)
	}
}

func TestRehydrateDoesNotApplyCapRetroactively(t *testing.T) {
	var rows [][]string
	for i := 1; i <= 5; i++ {
		rows = append(rows, logRow(i, "Session "+string(rune('0'+i)), "user", "x"))
	}
	s := newTestStore(t, 3)
	Rehydrate(s, withHeader(rows...))
	if s.Len() != 5 {
		t.Fatalf("len = %d, want all 5 rehydrated sessions", s.Len())
	}
	_, evicted := s.CreateSession()
	if diff := cmp.Diff([]string{"Session 1", "Session 2", "Session 3"}, evicted); diff != "" {
		t.Errorf("evicted (-want +got):\n%s", diff)
	}
	if s.Len() != 3 {
		t.Errorf("len = %d, want cap 3", s.Len())
	}
}

func TestOrderPreservationThroughWriter(t *testing.T) {
	ctx := context.Background()
	logStore := chatlog.NewMemoryStore()
	w := chatlog.NewWriter(logStore, chatlog.WriterOptions{})
	defer w.Close()

	local := newTestStore(t, 10)
	for _, c := range []string{"T1", "T2", "T3"} {
		turn, err := local.AppendTurn("Session 1", RoleUser, c)
		if err != nil {
			t.Fatal(err)
		}
		w.LogTurn("Session 1", string(turn.Role), turn.Content, turn.Timestamp)
	}

	restarted := NewStore(Options{})
	if _, err := RehydrateFrom(ctx, restarted, w, nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"T1", "T2", "T3"}, turnContents(t, restarted, "Session 1")); diff != "" {
		t.Errorf("turns (-want +got):\n%s", diff)
	}
}

type failingReader struct{ err error }

func (f failingReader) ReadAll(context.Context) ([][]string, error) { return nil, f.err }

func TestRehydrateFromUnavailableLog(t *testing.T) {
	s := NewStore(Options{})
	_, err := RehydrateFrom(context.Background(), s, failingReader{chatlog.ErrUnavailable}, nil)
	if !errors.Is(err, chatlog.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if s.Len() != 1 || s.Active() != "Session 1" {
		t.Errorf("fresh-start fallback broken: len=%d active=%q", s.Len(), s.Active())
	}
}

func TestRehydrateFromLocalOnlyWriter(t *testing.T) {
	w := chatlog.NewWriter(nil, chatlog.WriterOptions{})
	s := NewStore(Options{})
	if _, err := RehydrateFrom(context.Background(), s, w, nil); !errors.Is(err, chatlog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if s.Active() != "Session 1" {
		t.Errorf("active = %q", s.Active())
	}
}
