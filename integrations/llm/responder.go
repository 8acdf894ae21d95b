// Package llm answers parent questions with an OpenAI chat model through langchaingo.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

const (
	dateLayout  = "02/01/2006"
	maxTokens   = 512
	temperature = 0.2
)

const systemPrompt = `És o assistente escolar da plataforma Mozedu e respondes a encarregados de educação.
Responde sempre em português, de forma breve e cordial.
Usa apenas os dados escolares fornecidos abaixo. Se a informação pedida não estiver nos dados, diz que não a tens
e sugere contactar a secretaria da escola. Nunca inventes notas, faltas, valores ou datas.`

// generator is the part of llms.Model the responder needs.
type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Responder struct {
	llm          generator
	historyLimit int
}

var _ chat.Responder = (*Responder)(nil) // interface compliance check

// NewOpenAIResponder builds a Responder backed by the OpenAI chat completion API.
func NewOpenAIResponder(conf *core.Config) (*Responder, error) {
	if conf.Chat.OpenAIToken == "" {
		return nil, errors.New("openai token is required")
	}
	model, err := openai.New(
		openai.WithToken(conf.Chat.OpenAIToken),
		openai.WithModel(conf.Chat.LLMModel),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating openai client")
	}
	return NewResponder(model, conf.Chat.LLMHistoryLimit), nil
}

func NewResponder(llm generator, historyLimit int) *Responder {
	return &Responder{llm: llm, historyLimit: historyLimit}
}

func (r *Responder) Respond(ctx context.Context, p chat.Prompt) (string, error) {
	resp, err := r.llm.GenerateContent(ctx, r.messages(p),
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (r *Responder) messages(p chat.Prompt) []llms.MessageContent {
	history := p.History
	if r.historyLimit > 0 && len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}

	content := make([]llms.MessageContent, 0, len(history)+2)
	content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt+"\n\n"+describeContext(p)))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, msg.Content))
		case chat.RoleAssistant:
			content = append(content, llms.TextParts(schema.ChatMessageTypeAI, msg.Content))
		}
	}
	return append(content, llms.TextParts(schema.ChatMessageTypeHuman, p.Question))
}

// describeContext renders the school data of the prompt as plain text for the model.
func describeContext(p chat.Prompt) string {
	var b strings.Builder
	rc := p.Context

	b.WriteString("Dados escolares:\n")
	if rc.ParentName != "" {
		fmt.Fprintf(&b, "Encarregado de educação: %s\n", rc.ParentName)
	}
	if p.Intent != chat.IntentNone {
		fmt.Fprintf(&b, "Tema provável da pergunta: %s\n", p.Intent)
	}

	if len(rc.Children) == 0 {
		b.WriteString("Nenhum educando associado.\n")
	}
	for _, child := range rc.Children {
		fmt.Fprintf(&b, "\nEducando: %s\n", child.Name)
		if sum := child.Attendance.Summary; sum != nil {
			fmt.Fprintf(&b, "Taxa de presença: %g%%\n", sum.Rate)
		}
		fmt.Fprintf(&b, "Faltas registadas: %d\n", len(child.Attendance.Absences))
		for _, a := range child.Attendance.Absences {
			reason := a.Reason
			if reason == "" {
				reason = "sem justificação"
			}
			fmt.Fprintf(&b, "- falta em %s (%s)\n", a.Date.Format(dateLayout), reason)
		}
		for _, g := range child.Grades {
			fmt.Fprintf(&b, "- nota de %s: %g/%g (%s)\n", g.Subject, g.Score, g.MaxScore, g.Date.Format(dateLayout))
		}
		for _, f := range child.Feedback {
			fmt.Fprintf(&b, "- comentário de %s em %s: %s\n", f.Teacher, f.Date.Format(dateLayout), f.Comment)
		}
	}

	if len(rc.Events) > 0 {
		b.WriteString("\nPróximos eventos:\n")
		for _, ev := range rc.Events {
			fmt.Fprintf(&b, "- %s, %s", ev.Title, ev.Date.Format(dateLayout))
			if ev.Location != "" {
				fmt.Fprintf(&b, " (%s)", ev.Location)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
