package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/logic/session"
)

// StatusEvent represents a single status message for SSE.
// Log lines carry Msg; session updates carry Event.
type StatusEvent struct {
	Time  string         `json:"t"`
	Level string         `json:"l,omitempty"`
	Msg   string         `json:"msg,omitempty"`
	Event *session.Event `json:"event,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
}

// BroadcastEvent forwards a session event; it matches session.Subscribe.
// Notices and errors are sent with their own level so the page can alert.
func (b *StatusBroadcaster) BroadcastEvent(e session.Event) {
	level := "event"
	switch e.Kind {
	case session.EventNotice:
		level = "notice"
	case session.EventError:
		level = "error"
	}
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   e.Message,
		Event: &e,
	})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// LogWriter returns an io.Writer for debug.SetOutput. Each line is
// broadcast with the level taken from its debug tag ("[LIVE]", "[ERROR]"...).
func LogWriter(b *StatusBroadcaster) io.Writer {
	return &logWriter{b: b}
}

type logWriter struct {
	b *StatusBroadcaster
}

var logTags = []struct {
	tag   string
	level string
}{
	{"[ERROR] ", "error"},
	{"[INFO] ", "info"},
	{"[LIVE] ", "live"},
	{"[VERBOSE] ", "verbose"},
	{"[TRACE] ", "trace"},
	{"[GPIO] ", "trace"},
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		level := "info"
		for _, t := range logTags {
			if i := strings.Index(msg, t.tag); i >= 0 {
				level = t.level
				msg = msg[i+len(t.tag):]
				break
			}
		}
		w.b.Broadcast(level, msg)
	}
	return len(p), nil
}
