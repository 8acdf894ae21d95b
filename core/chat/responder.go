package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mozedu/mozedu/core/school"
)

const (
	maxListedItems   = 3
	unknownChildName = "educando desconhecido"
	notAvailable     = "N/A"
	dateLayout       = "02/01/2006"

	noChildrenText = "Não encontrámos nenhum educando associado à sua conta. " +
		"Contacte a secretaria da escola para fazer a associação."
)

// HelpCategories are the kinds of questions the assistant can answer.
var HelpCategories = []string{
	"Presenças e faltas",
	"Notas e desempenho",
	"Comentários dos professores",
	"Próximos eventos e reuniões",
	"Pagamentos e propinas",
}

// ResponseContext is the school data a reply may quote.
type ResponseContext struct {
	ParentName string
	Children   []school.Child
	Events     []school.Event
}

// Topic is what a local reply talks about.
type Topic int

const (
	TopicHelp Topic = iota
	TopicAttendance
	TopicGrades
	TopicFeedback
	TopicEvents
)

type rule struct {
	topic    Topic
	keywords []string
	render   func(rc ResponseContext) string
}

// rules are checked in order and the first match wins.
var rules = []rule{
	{TopicAttendance, []string{"presença", "presenca", "falta", "frequência", "frequencia", "attendance", "absence"}, renderAttendance},
	{TopicGrades, []string{"nota", "boletim", "desempenho", "grade"}, renderGrades},
	{TopicFeedback, []string{"professor", "feedback", "comentário", "comentario", "teacher"}, renderFeedback},
	{TopicEvents, []string{"evento", "reunião", "reuniao", "calendário", "calendario", "event", "meeting"}, renderEvents},
}

// Route returns the Topic the local responder picks for `question`.
func Route(question string) Topic {
	if r, ok := match(question); ok {
		return r.topic
	}
	return TopicHelp
}

func match(question string) (rule, bool) {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r, true
			}
		}
	}
	return rule{}, false
}

// GenerateResponse answers `question` from `rc` alone. It never fails.
func GenerateResponse(question string, rc ResponseContext) string {
	if r, ok := match(question); ok {
		return r.render(rc)
	}
	return renderHelp(rc)
}

func firstChild(rc ResponseContext) (school.Child, string, bool) {
	if len(rc.Children) == 0 {
		return school.Child{}, "", false
	}
	child := rc.Children[0]
	name := strings.TrimSpace(child.Name)
	if name == "" {
		name = unknownChildName
	}
	return child, name, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}

func renderAttendance(rc ResponseContext) string {
	child, name, ok := firstChild(rc)
	if !ok {
		return noChildrenText
	}

	rate := notAvailable
	if child.Attendance.Summary != nil {
		rate = formatNumber(child.Attendance.Summary.Rate) + "%"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A taxa de presença de %s é de %s.", name, rate)

	absences := child.Attendance.Absences
	if len(absences) == 0 {
		b.WriteString(" Não há faltas registadas.")
		return b.String()
	}
	fmt.Fprintf(&b, " Tem %s registada%s.", pluralize(len(absences), "falta", "faltas"), pluralSuffix(len(absences)))
	b.WriteString("\nÚltimas faltas:")
	for _, abs := range absences[:min(len(absences), maxListedItems)] {
		reason := abs.Reason
		if reason == "" {
			reason = "sem justificação"
		}
		fmt.Fprintf(&b, "\n- %s (%s)", abs.Date.Format(dateLayout), reason)
	}
	return b.String()
}

func renderGrades(rc ResponseContext) string {
	child, name, ok := firstChild(rc)
	if !ok {
		return noChildrenText
	}
	if len(child.Grades) == 0 {
		return fmt.Sprintf("Ainda não há notas registadas para %s.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notas mais recentes de %s:", name)
	for _, g := range child.Grades[:min(len(child.Grades), maxListedItems)] {
		fmt.Fprintf(&b, "\n- %s: %s/%s (%s)", g.Subject, formatNumber(g.Score), formatNumber(g.MaxScore), g.Date.Format(dateLayout))
	}
	return b.String()
}

func renderFeedback(rc ResponseContext) string {
	child, name, ok := firstChild(rc)
	if !ok {
		return noChildrenText
	}
	if len(child.Feedback) == 0 {
		return fmt.Sprintf("Ainda não há comentários dos professores sobre %s.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comentários recentes dos professores sobre %s:", name)
	for _, f := range child.Feedback[:min(len(child.Feedback), maxListedItems)] {
		fmt.Fprintf(&b, "\n- %s (%s): %s", f.Teacher, f.Date.Format(dateLayout), f.Comment)
	}
	return b.String()
}

func renderEvents(rc ResponseContext) string {
	if len(rc.Events) == 0 {
		return "Não há eventos agendados de momento."
	}

	var b strings.Builder
	b.WriteString("Próximos eventos da escola:")
	for _, ev := range rc.Events[:min(len(rc.Events), maxListedItems)] {
		fmt.Fprintf(&b, "\n- %s, %s", ev.Title, ev.Date.Format(dateLayout))
		if ev.Location != "" {
			fmt.Fprintf(&b, " (%s)", ev.Location)
		}
	}
	return b.String()
}

func renderHelp(rc ResponseContext) string {
	var b strings.Builder
	if rc.ParentName != "" {
		fmt.Fprintf(&b, "Olá %s! ", rc.ParentName)
	}
	b.WriteString("Não percebi bem a sua pergunta. Posso ajudar com:")
	for _, c := range HelpCategories {
		b.WriteString("\n- " + c)
	}
	return b.String()
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Prompt is everything a Responder needs to answer a question.
type Prompt struct {
	Question string
	Intent   Intent
	History  []Message // oldest first
	Context  ResponseContext
}

// Responder produces the assistant's answer to a Prompt.
type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)
}

// LocalResponder answers with GenerateResponse. It never fails.
type LocalResponder struct{}

var _ Responder = LocalResponder{}

func (LocalResponder) Respond(_ context.Context, p Prompt) (string, error) {
	return GenerateResponse(p.Question, p.Context), nil
}
