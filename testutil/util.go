package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Child returns a child of `parentID` with an attendance rate, one absence, four grades and one feedback.
func Child(parentID, name string) school.Child {
	day := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	return school.Child{
		ParentID: parentID,
		Name:     name,
		Attendance: school.Attendance{
			Summary:  &school.AttendanceSummary{Rate: 85},
			Absences: []school.Absence{{Date: day, Reason: "Doença"}},
		},
		Grades: []school.Grade{
			{Subject: "Matemática", Score: 15, MaxScore: 20, Date: day},
			{Subject: "Português", Score: 13.5, MaxScore: 20, Date: day.AddDate(0, 0, -1)},
			{Subject: "Ciências", Score: 17, MaxScore: 20, Date: day.AddDate(0, 0, -2)},
			{Subject: "História", Score: 11, MaxScore: 20, Date: day.AddDate(0, 0, -3)},
		},
		Feedback: []school.Feedback{
			{Teacher: "Prof. Macuácua", Comment: "Participa bem nas aulas.", Date: day},
		},
	}
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger keeping entries in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Mailbox is a core.EmailService rendering and keeping messages in memory.
type Mailbox struct {
	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*Mailbox)(nil)

func (m *Mailbox) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			panic(err)
		}
		m.sent = append(m.sent, *msg)
	}
}

func (m *Mailbox) Sent() []core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.EmailMessage(nil), m.sent...)
}

// Config returns the config used by tests.
func Config() *core.Config {
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		Debug:           true,
		TestMode:        true,
		AppName:         "Mozedu",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		FromEmail:       "noreply@test.cd",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Chat: core.ChatConfig{
			Store:            "memory",
			ResponseTimeout:  30 * time.Second,
			MaxMessageLength: 1000,
			LLMHistoryLimit:  20,
		},
	}
}
