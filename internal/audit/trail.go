// Package audit appends security-relevant events to a JSON-lines file.
//
// Recording never blocks the caller: entries go through a bounded buffer to a
// single writer goroutine. A full buffer drops the entry, and a failed write is
// logged and forgotten.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/PratikDhanave/empleaido-factory/internal/fsutil"
)

// Recorder is what request handlers need from the audit trail.
type Recorder interface {
	Record(action, ip string, details map[string]any)
}

// Discard is a Recorder that drops everything.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(string, string, map[string]any) {}

// Entry is one line of the audit file.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	IP        string         `json:"ip"`
	Details   map[string]any `json:"details"`
}

// Trail is the file-backed Recorder.
type Trail struct {
	path    string
	logger  *slog.Logger
	now     func() time.Time
	entries chan Entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option customizes a Trail.
type Option func(*Trail)

// WithLogger sets the logger used for dropped or failed entries.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trail) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

// WithBuffer sets how many entries may wait for the writer.
func WithBuffer(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.entries = make(chan Entry, n)
		}
	}
}

// Open opens (or creates) the audit file and starts the writer.
func Open(ctx context.Context, path string, opts ...Option) (*Trail, error) {
	t := &Trail{
		path:    path,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(chan Entry, 256),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := fsutil.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		t.run(f)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		t.logger.Error("audit writer stopped", "error", err)
	}))
	return t, nil
}

// Path returns the file backing the trail.
func (t *Trail) Path() string { return t.path }

// Record queues one entry. It returns immediately.
func (t *Trail) Record(action, ip string, details map[string]any) {
	if t == nil {
		return
	}
	if ip == "" {
		ip = "unknown"
	}
	if details == nil {
		details = map[string]any{}
	}
	e := Entry{Timestamp: t.now().UTC(), Action: action, IP: ip, Details: details}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.entries <- e:
	default:
		t.logger.Warn("audit buffer full, dropping entry", "action", action)
	}
}

// Close flushes queued entries and stops the writer.
func (t *Trail) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.entries)
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *Trail) run(f *os.File) {
	defer close(t.done)
	defer f.Close()

	enc := json.NewEncoder(f)
	for e := range t.entries {
		if err := enc.Encode(e); err != nil {
			t.logger.Warn("audit write failed", "action", e.Action, "error", err)
		}
	}
}
