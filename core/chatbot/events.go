package chatbot

import "github.com/mozedu/mozedu/core/chat"

// State of the conversation on display.
type State int

const (
	StateIdle State = iota
	StateSending
	StateError
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Message is a message as shown to the user.
// IsLoading is only set on the placeholder of a pending answer.
type Message struct {
	ID        string
	Role      chat.Role
	Content   string
	IsLoading bool
	IsError   bool
}

// Snapshot is a copy of the controller's view.
type Snapshot struct {
	SessionID string
	State     State
	Messages  []Message
}

type EventKind int

const (
	EventSending EventKind = iota + 1
	EventReplied
	EventFailed
	EventStaleReplyDropped
	EventSessionLoaded
	EventCleared
	EventSessionsRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventSending:
		return "sending"
	case EventReplied:
		return "replied"
	case EventFailed:
		return "failed"
	case EventStaleReplyDropped:
		return "stale_reply_dropped"
	case EventSessionLoaded:
		return "session_loaded"
	case EventCleared:
		return "cleared"
	case EventSessionsRefreshed:
		return "sessions_refreshed"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Reply    *chat.Reply    // EventReplied
	Err      error          // EventFailed
	Sessions []chat.Session // EventSessionsRefreshed
}
