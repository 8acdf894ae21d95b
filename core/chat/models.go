package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
)

var (
	// errors
	ErrSessionNotFound = errors.New("chat session not found")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message is too long")
)

// Intent is the coarse classification of a parent's question.
type Intent string

const (
	IntentNone       Intent = ""
	IntentAttendance Intent = "ATTENDANCE"
	IntentGrades     Intent = "GRADES"
	IntentFinancial  Intent = "FINANCIAL"
	IntentSchedule   Intent = "SCHEDULE"
	IntentGeneral    Intent = "GENERAL"
	IntentMulti      Intent = "MULTI"
)

var Intents = []Intent{IntentAttendance, IntentGrades, IntentFinancial, IntentSchedule, IntentGeneral, IntentMulti}

func (i Intent) IsValid() bool {
	if i == IntentNone {
		return true
	}
	for _, intent := range Intents {
		if i == intent {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type (
	// Session is one conversation thread between a parent and the chatbot.
	// Sessions are never deleted; starting a new one deactivates the others.
	Session struct {
		ID            string    `json:"id"`
		OwnerID       string    `json:"-"`
		Title         string    `json:"title"`
		CreatedAt     time.Time `json:"created_at"`      // UTC
		LastMessageAt time.Time `json:"last_message_at"` // UTC
		LastIntent    Intent    `json:"last_intent"`
		IsActive      bool      `json:"is_active"`
	}

	Message struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		Role      Role      `json:"role"`
		Content   string    `json:"content"`
		Intent    Intent    `json:"intent,omitempty"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// Reply is the outcome of sending a message.
	Reply struct {
		Session Session `json:"session"`
		Content string  `json:"content"`
		Intent  Intent  `json:"intent"`
	}
)

// Repository persists sessions and their messages.
// QueryMessages returns messages in conversation order.
type Repository interface {
	CreateSession(ctx context.Context, sess Session) (Session, error)
	DeactivateSessions(ctx context.Context, ownerID string) error
	GetSession(ctx context.Context, id string) (Session, error)
	QuerySessions(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Session, error)
	UpdateSession(ctx context.Context, sess Session) (Session, error)
	AppendMessages(ctx context.Context, sessionID string, msgs ...Message) error
	QueryMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// DefaultSessionOrdering lists the most recently used sessions first.
var DefaultSessionOrdering = core.DBOrdering{Field: "last_message_at", Ascending: false}
