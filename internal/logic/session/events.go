package session

// EventKind names what changed.
type EventKind string

const (
	EventState     EventKind = "state"     // Idle/Running transition
	EventCountdown EventKind = "countdown" // action label changed
	EventSlot      EventKind = "slot"      // a slot was filled
	EventCleared   EventKind = "cleared"   // every slot was emptied
	EventFlash     EventKind = "flash"     // flash fired for DurationMs
	EventNotice    EventKind = "notice"    // user-facing message (camera refused)
	EventError     EventKind = "error"     // pass ended with an error
)

// Event is pushed to subscribers. The UI renders it; it never feeds back
// into the session.
type Event struct {
	Kind       EventKind `json:"kind"`
	SessionID  string    `json:"session_id,omitempty"`
	State      State     `json:"state,omitempty"`
	Slot       int       `json:"slot"`
	Label      string    `json:"label,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Snapshot is the UI projection of the session.
type Snapshot struct {
	State     State  `json:"state"`
	Label     string `json:"label"`
	Busy      bool   `json:"busy"`
	SessionID string `json:"session_id,omitempty"`
	Slots     []bool `json:"slots"`
	AllFilled bool   `json:"all_filled"`
}
