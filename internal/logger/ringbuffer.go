package logger

import "sync"

// entryRing keeps the most recent log entries in a fixed-size circular
// buffer so new websocket clients and the logs endpoint can replay them.
type entryRing struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

func newEntryRing(capacity int) *entryRing {
	return &entryRing{entries: make([]LogEntry, capacity)}
}

func (r *entryRing) push(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// snapshot returns the buffered entries ordered oldest to newest.
func (r *entryRing) snapshot() []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
