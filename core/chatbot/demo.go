package chatbot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/school"
)

const demoTitleMaxLen = 60

// DemoBackend answers offline with the local responder over fixed school data.
// Sessions only live in memory.
type DemoBackend struct {
	rc chat.ResponseContext

	mu       sync.Mutex
	sessions map[string]*chat.Session
	messages map[string][]chat.Message
}

var _ Backend = (*DemoBackend)(nil)

func NewDemoBackend(rc chat.ResponseContext) *DemoBackend {
	return &DemoBackend{
		rc:       rc,
		sessions: make(map[string]*chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

func (b *DemoBackend) Send(ctx context.Context, sessionID, content string) (chat.Reply, error) {
	if err := ctx.Err(); err != nil {
		return chat.Reply{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Reply{}, chat.ErrEmptyMessage
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	sess, ok := b.sessions[sessionID]
	switch {
	case sessionID == "":
		for _, s := range b.sessions {
			s.IsActive = false
		}
		sess = &chat.Session{
			ID:        uuid.New().String(),
			Title:     core.Truncate(content, demoTitleMaxLen),
			CreatedAt: now,
			IsActive:  true,
		}
		b.sessions[sess.ID] = sess
	case !ok:
		return chat.Reply{}, chat.ErrSessionNotFound
	case !sess.IsActive:
		for _, s := range b.sessions {
			s.IsActive = false
		}
		sess.IsActive = true
	}

	intent := chat.Classify(content)
	answer := chat.GenerateResponse(content, b.rc)
	b.messages[sess.ID] = append(b.messages[sess.ID],
		chat.Message{ID: uuid.New().String(), SessionID: sess.ID, Role: chat.RoleUser, Content: content, Intent: intent, CreatedAt: now},
		chat.Message{ID: uuid.New().String(), SessionID: sess.ID, Role: chat.RoleAssistant, Content: answer, Intent: intent, CreatedAt: now},
	)
	sess.LastMessageAt = now
	sess.LastIntent = intent

	return chat.Reply{Session: *sess, Content: answer, Intent: intent}, nil
}

func (b *DemoBackend) ListSessions(context.Context) ([]chat.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions := make([]chat.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt) })
	return sessions, nil
}

func (b *DemoBackend) GetMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[sessionID]; !ok {
		return nil, chat.ErrSessionNotFound
	}
	return append([]chat.Message(nil), b.messages[sessionID]...), nil
}

// SampleContext is the made-up school data answered from in demo mode.
func SampleContext(now time.Time) chat.ResponseContext {
	day := func(offset int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}
	return chat.ResponseContext{
		ParentName: "Encarregado de educação",
		Children: []school.Child{{
			ID:   "demo-child",
			Name: "Ana",
			Attendance: school.Attendance{
				Summary:  &school.AttendanceSummary{Rate: 92},
				Absences: []school.Absence{{Date: day(-9), Reason: "Consulta médica"}, {Date: day(-23), Reason: ""}},
			},
			Grades: []school.Grade{
				{Subject: "Matemática", Score: 16, MaxScore: 20, Date: day(-2)},
				{Subject: "Português", Score: 14, MaxScore: 20, Date: day(-5)},
				{Subject: "Inglês", Score: 17.5, MaxScore: 20, Date: day(-8)},
			},
			Feedback: []school.Feedback{
				{Teacher: "Prof. Cossa", Comment: "Muito empenhada nos trabalhos de grupo.", Date: day(-3)},
			},
		}},
		Events: []school.Event{
			{ID: "demo-event", Title: "Reunião de encarregados", Date: day(6), Location: "Auditório"},
		},
	}
}
