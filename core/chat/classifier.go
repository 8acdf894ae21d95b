package chat

import (
	"strings"
	"unicode"
)

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentAttendance, []string{"presença", "presenca", "falta", "frequência", "frequencia", "ausência", "ausencia", "attendance", "absen"}},
	{IntentGrades, []string{"nota", "boletim", "desempenho", "avaliação", "avaliacao", "exame", "grade", "score", "exam"}},
	{IntentFinancial, []string{"pagamento", "pagar", "propina", "mensalidade", "fatura", "factura", "dívida", "divida", "payment", "invoice", "tuition"}},
	{IntentSchedule, []string{"horário", "horario", "calendário", "calendario", "evento", "reunião", "reuniao", "aula", "schedule", "timetable", "event", "meeting"}},
}

// Classify tags a question with the Intent it is about.
// Words are matched by prefix so plurals are recognised.
// A question touching several intents is IntentMulti, one touching none is IntentGeneral.
func Classify(question string) Intent {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	found := IntentNone
	for _, entry := range intentKeywords {
		if !anyWordHasPrefix(words, entry.keywords) {
			continue
		}
		if found != IntentNone {
			return IntentMulti
		}
		found = entry.intent
	}
	if found == IntentNone {
		return IntentGeneral
	}
	return found
}

func anyWordHasPrefix(words, prefixes []string) bool {
	for _, w := range words {
		for _, p := range prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}
