package chat_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/testutil"
)

func TestGenerateResponse_attendance(t *testing.T) {
	rc := chat.ResponseContext{Children: []school.Child{testutil.Child("p1", "Ana")}}

	resp := chat.GenerateResponse("Qual a presença do meu filho?", rc)

	assert.Contains(t, resp, "85%")
	assert.Contains(t, resp, "Ana")
	assert.Contains(t, resp, "1 falta registada.")
	assert.Equal(t, 1, strings.Count(resp, "\n- "), "exactly one absence is listed")
}

func TestGenerateResponse_attendanceEdges(t *testing.T) {
	day := time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)
	absences := []school.Absence{
		{Date: day}, {Date: day.AddDate(0, 0, -1)}, {Date: day.AddDate(0, 0, -2)}, {Date: day.AddDate(0, 0, -3)},
	}

	tests := []struct {
		name     string
		child    school.Child
		contains []string
		listed   int
	}{
		{
			name:     "no summary",
			child:    school.Child{Name: "Rui"},
			contains: []string{"N/A", "Rui", "Não há faltas registadas."},
		},
		{
			name:     "fractional rate and plural",
			child:    school.Child{Name: "Rui", Attendance: school.Attendance{Summary: &school.AttendanceSummary{Rate: 92.5}, Absences: absences}},
			contains: []string{"92.5%", "4 faltas registadas.", "sem justificação"},
			listed:   3,
		},
		{
			name:     "unknown child name",
			child:    school.Child{Attendance: school.Attendance{Summary: &school.AttendanceSummary{Rate: 100}}},
			contains: []string{"educando desconhecido", "100%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := chat.GenerateResponse("faltas", chat.ResponseContext{Children: []school.Child{tt.child}})
			for _, s := range tt.contains {
				assert.Contains(t, resp, s)
			}
			assert.Equal(t, tt.listed, strings.Count(resp, "\n- "))
		})
	}
}

func TestGenerateResponse_grades(t *testing.T) {
	rc := chat.ResponseContext{Children: []school.Child{testutil.Child("p1", "Ana")}}

	resp := chat.GenerateResponse("Como estão as notas?", rc)

	assert.Contains(t, resp, "Matemática: 15/20")
	assert.Contains(t, resp, "Português: 13.5/20")
	assert.Contains(t, resp, "Ciências: 17/20")
	assert.NotContains(t, resp, "História", "only the three most recent grades are listed")
}

func TestGenerateResponse_noChildren(t *testing.T) {
	for _, q := range []string{"Como estão as notas?", "Quantas faltas?", "O que diz o professor?"} {
		t.Run(q, func(t *testing.T) {
			resp := chat.GenerateResponse(q, chat.ResponseContext{})
			assert.Contains(t, resp, "Não encontrámos nenhum educando")
		})
	}
}

func TestGenerateResponse_help(t *testing.T) {
	for _, q := range []string{"what's the weather", "", "   "} {
		t.Run(q, func(t *testing.T) {
			resp := chat.GenerateResponse(q, chat.ResponseContext{})
			require.NotEmpty(t, resp)
			for _, category := range chat.HelpCategories {
				assert.Contains(t, resp, category)
			}
		})
	}
}

func TestGenerateResponse_feedbackAndEvents(t *testing.T) {
	rc := chat.ResponseContext{
		Children: []school.Child{testutil.Child("p1", "Ana")},
		Events: []school.Event{
			{Title: "Reunião de pais", Date: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), Location: "Sala 2"},
		},
	}

	assert.Contains(t, chat.GenerateResponse("Algum feedback do professor?", rc), "Participa bem nas aulas.")

	resp := chat.GenerateResponse("Quando é o próximo evento?", rc)
	assert.Contains(t, resp, "Reunião de pais, 03/06/2024 (Sala 2)")

	assert.Contains(t, chat.GenerateResponse("events?", chat.ResponseContext{}), "Não há eventos agendados")
}

func TestRoute(t *testing.T) {
	tests := []struct {
		question string
		want     chat.Topic
	}{
		{"Qual a PRESENÇA do meu filho?", chat.TopicAttendance},
		{"notas e faltas", chat.TopicAttendance}, // attendance is checked before grades
		{"boletim do professor", chat.TopicGrades},
		{"teacher feedback", chat.TopicFeedback},
		{"reunião de pais", chat.TopicEvents},
		{"olá", chat.TopicHelp},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, chat.Route(tt.question))
		})
	}
}

func TestLocalResponder(t *testing.T) {
	p := chat.Prompt{Question: "what's the weather"}
	got, err := chat.LocalResponder{}.Respond(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, chat.GenerateResponse(p.Question, p.Context), got)
}
