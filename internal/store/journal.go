// internal/store/journal.go
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/user/cognitive/internal/cognitive"
)

// Entry is one line of the generation journal.
type Entry struct {
	Seq       int64               `json:"seq"`
	At        time.Time           `json:"at"`
	Kind      cognitive.EventKind `json:"kind"`
	RequestID string              `json:"request_id"`
	Model     string              `json:"model,omitempty"`
	Error     string              `json:"error,omitempty"`
	LatencyMs int64               `json:"latency_ms,omitempty"`
	Cost      float64             `json:"cost,omitempty"`
	Tokens    int                 `json:"tokens,omitempty"`
}

const (
	// maxLineSize bounds a single journal line when reading.
	maxLineSize = 4 << 20
	// maxErrorLen bounds the error text kept per entry; upstream error
	// bodies can be arbitrarily large.
	maxErrorLen = 8 << 10
)

func newScanner(f *os.File) *bufio.Scanner {
	scanner := newScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return scanner
}

// Journal is a JSONL-backed append-only log of generation events.
type Journal struct {
	path string
	mu   sync.Mutex
	seq  int64
	now  func() time.Time
}

// NewJournal creates a journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path, seq: -1, now: time.Now}
}

// count reads the journal and counts lines. Caller must hold the lock.
func (j *Journal) count() (int64, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := newScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	return count, nil
}

// Append adds an entry with the next sequence number.
func (j *Journal) Append(_ context.Context, entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	// The line count is read once; later appends keep the counter.
	if j.seq < 0 {
		existing, err := j.count()
		if err != nil {
			return err
		}
		j.seq = existing
	}
	entry.Seq = j.seq + 1
	if entry.At.IsZero() {
		entry.At = j.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	j.seq = entry.Seq
	return nil
}

// Tail returns the last limit entries.
func (j *Journal) Tail(_ context.Context, limit int) ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []*Entry
	scanner := newScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Count returns the number of entries.
func (j *Journal) Count(_ context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count()
}

// Attach subscribes the journal to every event kind of c. The returned
// function detaches it. Write failures are logged, never returned to the
// generating call.
func (j *Journal) Attach(c *cognitive.Client) func() {
	unsubs := make([]func(), 0, len(cognitive.EventKinds))
	for _, kind := range cognitive.EventKinds {
		unsubs = append(unsubs, c.Subscribe(kind, func(ev cognitive.Event) {
			if err := j.Append(context.Background(), entryFor(ev)); err != nil {
				slog.Warn("journal append failed", "kind", ev.Kind, "error", err)
			}
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func entryFor(ev cognitive.Event) *Entry {
	e := &Entry{Kind: ev.Kind}
	if ev.Request != nil {
		e.RequestID = ev.Request.ID
		e.Model = ev.Request.Input.Model
	}
	if ev.Err != nil {
		e.Error = truncate(ev.Err.Error(), maxErrorLen)
	}
	if r := ev.Response; r != nil {
		e.Model = string(r.Meta.Model.Ref())
		e.LatencyMs = r.Meta.Latency.Milliseconds()
		e.Cost = r.Meta.Cost.Input + r.Meta.Cost.Output
		e.Tokens = r.Meta.Tokens.Input + r.Meta.Tokens.Output
	}
	return e
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.ToValidUTF8(s[:cut], "") + "...(truncated)"
}
