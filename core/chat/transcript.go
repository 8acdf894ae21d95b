package chat

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/user"
)

const (
	transcriptTemplate = "chat_transcript"
	transcriptLayout   = "02/01/2006 15:04"

	// TranscriptEmailCategory tags transcript emails at the mail provider.
	TranscriptEmailCategory = "chat-transcript"
)

var ErrNoEmail = errors.New("this account has no email address")

type (
	TranscriptLine struct {
		Time    string
		Speaker string
		Content string
	}

	TranscriptData struct {
		Name  string
		Title string
		Lines []TranscriptLine
	}
)

func speaker(role Role) string {
	if role == RoleAssistant {
		return "Assistente"
	}
	return "Eu"
}

// NewTranscriptData prepares a conversation for the chat_transcript email template.
func NewTranscriptData(name string, sess Session, msgs []Message) TranscriptData {
	data := TranscriptData{Name: name, Title: sess.Title, Lines: make([]TranscriptLine, 0, len(msgs))}
	for _, m := range msgs {
		data.Lines = append(data.Lines, TranscriptLine{
			Time:    m.CreatedAt.Format(transcriptLayout),
			Speaker: speaker(m.Role),
			Content: m.Content,
		})
	}
	return data
}

// Text renders the transcript as plain text, one line per message.
func (td TranscriptData) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", td.Title)
	for _, l := range td.Lines {
		fmt.Fprintf(&b, "[%s] %s: %s\n", l.Time, l.Speaker, l.Content)
	}
	return b.String()
}

// EmailTranscript sends the conversation `sessionID` to the owner's email address.
func (svc *Service) EmailTranscript(ctx context.Context, owner user.User, sessionID string) error {
	if owner.Email == "" {
		return core.NewValidationError(ErrNoEmail, core.FieldError{Field: "email", Error: ErrNoEmail.Error()})
	}
	sess, err := svc.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return err
	}
	msgs, err := svc.repo.QueryMessages(ctx, sess.ID)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}

	data := NewTranscriptData(owner.DisplayName(), sess, msgs)
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: owner.DisplayName(), Address: owner.Email}},
		Subject:      "Conversa: " + sess.Title,
		TemplateName: transcriptTemplate,
		TemplateData: data,
		Category:     TranscriptEmailCategory,
		Refs:         map[string]string{"session_id": sess.ID},
	}
	if err = msg.Attach(strings.NewReader(data.Text()), "conversa.txt", "text/plain; charset=utf-8"); err != nil {
		return errors.Wrap(err, "attaching transcript")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}
