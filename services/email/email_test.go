package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/testutil"
)

func newMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:       []mail.Address{{Name: "Maria", Address: "maria@test.cd"}},
		Subject:  "Conversa: notas",
		BodyStr:  "Olá Maria",
		Category: "chat-transcript",
		Refs:     map[string]string{"session_id": "s1"},
	}
	require.NoError(t, msg.Attach(strings.NewReader("[12/03/2024 10:00] Eu: notas\n"), "conversa.txt", "text/plain; charset=utf-8"))
	return msg
}

func TestConsoleService(t *testing.T) {
	conf := testutil.Config()
	svc := NewConsoleServiceMock(conf, new(testutil.Logger))
	var out bytes.Buffer
	svc.out = &out

	svc.SendMessages(newMessage(t), &core.EmailMessage{Subject: "no recipient", BodyStr: "lost"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Olá Maria", sent[0].TextContent)

	written := out.String()
	assert.Contains(t, written, "Subject: [Mozedu] Conversa: notas")
	assert.Contains(t, written, `To: "Maria" <maria@test.cd>`)
	assert.Contains(t, written, "multipart/mixed")
	assert.Contains(t, written, "attachment; filename=conversa.txt")
	assert.Contains(t, written, "X-Category: chat-transcript\r\n")
	assert.Contains(t, written, "X-Ref-session_id: s1\r\n")
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testutil.Config(), new(testutil.Logger))
	msg := newMessage(t)
	require.NoError(t, msg.Render())

	m := svc.prepare(*msg)

	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Mozedu] Conversa: notas", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "maria@test.cd", m.Personalizations[0].To[0].Address)
	assert.Equal(t, "noreply@test.cd", m.From.Address)
	require.Len(t, m.Content, 1, "no html part without html content")
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "conversa.txt", m.Attachments[0].Filename)
	assert.Equal(t, []string{"mozedu", "chat-transcript"}, m.Categories)
	assert.Equal(t, map[string]string{"session_id": "s1"}, m.Personalizations[0].CustomArgs)
}

func Test_describe(t *testing.T) {
	tests := []struct {
		name string
		msg  core.EmailMessage
		want string
	}{
		{name: "Plain", msg: core.EmailMessage{}, want: "email"},
		{name: "Category only", msg: core.EmailMessage{Category: "chat-transcript"}, want: "chat-transcript"},
		{
			name: "Refs sorted",
			msg:  core.EmailMessage{Category: "chat-transcript", Refs: map[string]string{"session_id": "s1", "owner_id": "u1"}},
			want: "chat-transcript{owner_id=u1,session_id=s1}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.msg))
		})
	}
}
