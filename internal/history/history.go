// Package history provides bounded linear undo/redo over grid state
// snapshots, with a debounced recorder so rapid settled mutations collapse
// into a single entry.
package history

import (
	"sync"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
)

// DefaultCapacity bounds the undo ring.
const DefaultCapacity = 50

// DefaultDebounce is how long the recorder waits for mutations to settle
// before pushing an entry.
const DefaultDebounce = 100 * time.Millisecond

// Entry is one undo step: a grid state snapshot plus the viewport at the
// time of the mutation. Entries are immutable once pushed.
type Entry struct {
	State    grid.State
	Viewport document.Viewport
}

// History is a bounded ring of entries with a cursor. Pushing past the
// cursor truncates forward (redo) history; overflow evicts the oldest entry.
type History struct {
	mu       sync.Mutex
	entries  []Entry
	cursor   int
	capacity int
}

// New creates a history with the given capacity (DefaultCapacity if
// non-positive).
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{cursor: -1, capacity: capacity}
}

// Push appends an entry at the cursor, discarding any redo entries.
func (h *History) Push(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.cursor+1], e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	h.cursor = len(h.entries) - 1
}

// Undo steps the cursor back and returns the entry there. At the oldest
// entry it reports false and changes nothing.
func (h *History) Undo() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor <= 0 {
		return Entry{}, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo steps the cursor forward and returns the entry there. At the newest
// entry it reports false and changes nothing.
func (h *History) Redo() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor >= len(h.entries)-1 {
		return Entry{}, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Reset drops all history and seeds it with a single entry. Used after
// importing a document.
func (h *History) Reset(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = []Entry{e}
	h.cursor = 0
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// Recorder debounces settled-mutation snapshots into the history. Each
// Record call replaces the pending entry and restarts the timer; the entry
// is pushed once mutations stop for the debounce window. Flush pushes the
// pending entry immediately and is called before undo/redo so the latest
// settled state is never lost.
type Recorder struct {
	history *History
	delay   time.Duration

	mu      sync.Mutex
	pending *Entry
	timer   *time.Timer
}

// NewRecorder creates a recorder over h (delay DefaultDebounce if
// non-positive).
func NewRecorder(h *History, delay time.Duration) *Recorder {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Recorder{history: h, delay: delay}
}

// Record schedules e for a debounced push.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &e
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.delay, r.Flush)
}

// Flush pushes the pending entry, if any, without waiting for the debounce
// window.
func (r *Recorder) Flush() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pending != nil {
		r.history.Push(*pending)
	}
}
