package chat

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     Intent
	}{
		{"Qual a presença do meu filho?", IntentAttendance},
		{"Quantas faltas teve este mês?", IntentAttendance},
		{"Como estão as notas de matemática?", IntentGrades},
		{"Quando tenho de pagar a propina?", IntentFinancial},
		{"Qual é o horário das aulas?", IntentSchedule},
		{"Any teacher feedback?", IntentGeneral},
		{"notas e faltas do trimestre", IntentMulti},
		{"what's the weather", IntentGeneral},
		{"", IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := Classify(tt.question); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntent_IsValid(t *testing.T) {
	for _, i := range append(Intents, IntentNone) {
		if !i.IsValid() {
			t.Errorf("%q should be valid", i)
		}
	}
	if Intent("WEATHER").IsValid() {
		t.Error("WEATHER should not be valid")
	}
}
