package logger

import (
	"encoding/json"
	"sync"
)

const defaultBufferSize = 1000

// Broadcaster is the sink for live log streaming, implemented by the
// websocket hub.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// LogEntry is one parsed log line as served by the logs API and the
// websocket stream.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster is an io.Writer hung off the zerolog output chain. It
// keeps a replay ring of recent entries and forwards new ones to the
// hub once SetHub has been called.
type LogBroadcaster struct {
	buffer *entryRing

	mu  sync.RWMutex
	hub Broadcaster
}

// NewLogBroadcaster creates a broadcaster with the given ring size.
// hub may be nil until the websocket layer is up.
func NewLogBroadcaster(hub Broadcaster, bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &LogBroadcaster{
		hub:    hub,
		buffer: newEntryRing(bufferSize),
	}
}

// SetHub attaches the websocket hub for live streaming.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

// Write receives one JSON log line from zerolog. Lines that fail to
// parse are dropped without erroring so logging never breaks the app.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}

	b.buffer.push(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()
	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}
	return len(p), nil
}

// GetRecentLogs returns the buffered entries, oldest first.
func (b *LogBroadcaster) GetRecentLogs() []LogEntry {
	return b.buffer.snapshot()
}

func parseEntry(data []byte) (LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{
		Timestamp: takeString(raw, "time"),
		Level:     takeString(raw, "level"),
		Component: takeString(raw, "component"),
		Message:   takeString(raw, "message"),
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}

// takeString pops a string value out of the raw map so that whatever
// remains becomes the entry's extra fields.
func takeString(raw map[string]any, key string) string {
	s, ok := raw[key].(string)
	if ok {
		delete(raw, key)
	}
	return s
}
