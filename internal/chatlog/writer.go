package chatlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned by synchronous operations after Close.
var ErrWriterClosed = errors.New("chat log writer closed")

// WriterOptions configures a Writer.
type WriterOptions struct {
	// QueueSize bounds pending appends. Default 256.
	QueueSize int
	// Timeout bounds each background append. Default 15s.
	Timeout time.Duration
	Logger  *zap.Logger
}

// job is either a background append (op == nil) or a synchronous operation
// whose result is delivered on done.
type job struct {
	row  Row
	op   func(ctx context.Context) error
	ctx  context.Context
	done chan error
}

// Writer mirrors turns to a Store through one FIFO worker goroutine, so rows
// land in the table in the order LogTurn was called. Synchronous operations
// (wipe, delete, flush) go through the same queue and therefore run after
// every append queued before them.
//
// A Writer with a nil Store is a no-op: the chat runs local-only.
type Writer struct {
	store   Store
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}

	appended atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewWriter starts the worker when store is non-nil.
func NewWriter(store Store, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	w := &Writer{
		store:   store,
		log:     opts.Logger.Named("chatlog"),
		timeout: opts.Timeout,
		done:    make(chan struct{}),
	}
	if store == nil {
		close(w.done)
		return w
	}
	w.jobs = make(chan job, opts.QueueSize)
	go w.run()
	return w
}

// Enabled reports whether turns are being persisted.
func (w *Writer) Enabled() bool { return w.store != nil }

func (w *Writer) run() {
	defer close(w.done)
	for j := range w.jobs {
		if j.op != nil {
			ctx, cancel := context.WithTimeout(j.ctx, w.timeout)
			j.done <- j.op(ctx)
			cancel()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.store.AppendRow(ctx, j.row)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.log.Warn("append chat log row failed",
				zap.String("session_id", j.row.SessionID),
				zap.String("role", j.row.Role),
				zap.Error(err))
			continue
		}
		w.appended.Add(1)
	}
}

// LogTurn schedules an append and returns immediately. It never blocks and
// never reports failure: a full queue drops the row, a failed append is only
// logged.
func (w *Writer) LogTurn(sessionID, role, content string, at time.Time) {
	if w.store == nil {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	row := Row{Timestamp: at, SessionID: sessionID, Role: role, Content: content}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.jobs <- job{row: row}:
	default:
		w.dropped.Add(1)
		w.log.Warn("chat log queue full, row dropped",
			zap.String("session_id", sessionID),
			zap.String("role", role))
	}
}

// do runs op on the worker after every previously queued append and waits
// for its result.
func (w *Writer) do(ctx context.Context, op func(ctx context.Context) error) error {
	if w.store == nil {
		return nil
	}
	j := job{op: op, ctx: ctx, done: make(chan error, 1)}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every append queued so far has been attempted.
func (w *Writer) Flush(ctx context.Context) error {
	return w.do(ctx, func(context.Context) error { return nil })
}

// ReadAll flushes pending appends and returns the table.
func (w *Writer) ReadAll(ctx context.Context) ([][]string, error) {
	if w.store == nil {
		return nil, ErrUnavailable
	}
	var rows [][]string
	err := w.do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = w.store.ReadAllRows(ctx)
		return err
	})
	return rows, err
}

// WipeRemote clears the table down to the header row.
func (w *Writer) WipeRemote(ctx context.Context) error {
	err := w.do(ctx, func(ctx context.Context) error {
		return w.store.ClearAndReset(ctx, Header)
	})
	if err != nil {
		return fmt.Errorf("wipe chat log: %w", err)
	}
	w.log.Info("chat log wiped")
	return nil
}

// DeleteSessionRemote rewrites the table without the rows of sessionID and
// returns how many rows were removed. It is a read-modify-write: an append
// from another writer between the read and the rewrite is lost.
func (w *Writer) DeleteSessionRemote(ctx context.Context, sessionID string) (int, error) {
	removed := 0
	err := w.do(ctx, func(ctx context.Context) error {
		rows, err := w.store.ReadAllRows(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		start := 0
		if IsHeader(rows[0]) {
			start = 1
		}
		// Ids are matched the way ParseRow reads them, so padded ids in a
		// hand-edited log go with the session they rehydrate into.
		kept := make([][]string, 0, len(rows)-start)
		for _, r := range rows[start:] {
			if len(r) > 1 && strings.TrimSpace(r[1]) == sessionID {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if removed == 0 {
			return nil
		}
		if start == 0 {
			// Headerless table: restore the schema row while rewriting.
			return w.rewriteWithHeader(ctx, kept)
		}
		return w.store.OverwriteFromRow(ctx, 1, kept)
	})
	if err != nil {
		return 0, fmt.Errorf("delete session %q from chat log: %w", sessionID, err)
	}
	w.log.Info("session removed from chat log",
		zap.String("session_id", sessionID),
		zap.Int("rows", removed))
	return removed, nil
}

func (w *Writer) rewriteWithHeader(ctx context.Context, rows [][]string) error {
	if err := w.store.ClearAndReset(ctx, Header); err != nil {
		return err
	}
	return w.store.OverwriteFromRow(ctx, 1, rows)
}

// Close drains the queue, stops the worker and closes the store.
func (w *Writer) Close() error {
	if w.store == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	<-w.done
	return w.store.Close()
}

// WriterStats counts background append outcomes.
type WriterStats struct {
	Appended int64
	Failed   int64
	Dropped  int64
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Appended: w.appended.Load(),
		Failed:   w.failed.Load(),
		Dropped:  w.dropped.Load(),
	}
}
