package llm

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/testutil"
)

type fakeLLM struct {
	messages []llms.MessageContent
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	return f.resp, f.err
}

func answer(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func text(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.Len(t, mc.Parts, 1)
	part, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestResponder_Respond(t *testing.T) {
	fake := &fakeLLM{resp: answer("  A Ana tem 85% de presença.  ")}
	r := NewResponder(fake, 2)

	prompt := chat.Prompt{
		Question: "Como está a assiduidade?",
		Intent:   chat.IntentAttendance,
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "olá"},
			{Role: chat.RoleAssistant, Content: "Olá! Como posso ajudar?"},
			{Role: chat.RoleUser, Content: "e as notas?"},
		},
		Context: chat.ResponseContext{
			ParentName: "Maria Sitoe",
			Children:   []school.Child{testutil.Child("p1", "Ana")},
			Events: []school.Event{
				{Title: "Reunião de pais", Date: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC), Location: "Sala 3"},
			},
		},
	}

	got, err := r.Respond(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "A Ana tem 85% de presença.", got)

	require.Len(t, fake.messages, 4, "system + 2 history + question")
	assert.Equal(t, schema.ChatMessageTypeSystem, fake.messages[0].Role)
	sys := text(t, fake.messages[0])
	assert.Contains(t, sys, "Encarregado de educação: Maria Sitoe")
	assert.Contains(t, sys, "Tema provável da pergunta: ATTENDANCE")
	assert.Contains(t, sys, "Educando: Ana")
	assert.Contains(t, sys, "Taxa de presença: 85%")
	assert.Contains(t, sys, "- falta em 12/03/2024 (Doença)")
	assert.Contains(t, sys, "- nota de Português: 13.5/20 (11/03/2024)")
	assert.Contains(t, sys, "- Reunião de pais, 02/04/2024 (Sala 3)")

	assert.Equal(t, schema.ChatMessageTypeAI, fake.messages[1].Role)
	assert.Equal(t, "Olá! Como posso ajudar?", text(t, fake.messages[1]))
	assert.Equal(t, schema.ChatMessageTypeHuman, fake.messages[2].Role)
	assert.Equal(t, "e as notas?", text(t, fake.messages[2]))
	assert.Equal(t, "Como está a assiduidade?", text(t, fake.messages[3]))
}

func TestResponder_Respond_errors(t *testing.T) {
	ctx := context.Background()
	prompt := chat.Prompt{Question: "olá"}

	_, err := NewResponder(&fakeLLM{err: errors.New("rate limited")}, 0).Respond(ctx, prompt)
	assert.Error(t, err)

	_, err = NewResponder(&fakeLLM{resp: &llms.ContentResponse{}}, 0).Respond(ctx, prompt)
	assert.Error(t, err)

	fake := &fakeLLM{resp: answer("ok")}
	_, err = NewResponder(fake, 0).Respond(ctx, prompt)
	require.NoError(t, err)
	assert.Contains(t, text(t, fake.messages[0]), "Nenhum educando associado.")
}

func TestNewOpenAIResponder_requiresToken(t *testing.T) {
	conf := testutil.Config()
	conf.Chat.OpenAIToken = ""
	_, err := NewOpenAIResponder(conf)
	assert.Error(t, err)
}
