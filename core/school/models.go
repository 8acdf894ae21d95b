package school

import (
	"context"
	"time"
)

type (
	// AttendanceSummary is the aggregated attendance of a Child for the current term.
	AttendanceSummary struct {
		Rate float64 `json:"rate"` // percentage, 0 - 100
	}

	Absence struct {
		Date   time.Time `json:"date"`
		Reason string    `json:"reason"`
	}

	Attendance struct {
		Summary  *AttendanceSummary `json:"summary"` // nil when not computed yet
		Absences []Absence          `json:"absences"`
	}

	Grade struct {
		Subject  string    `json:"subject"`
		Score    float64   `json:"score"`
		MaxScore float64   `json:"max_score"`
		Date     time.Time `json:"date"`
	}

	Feedback struct {
		Teacher string    `json:"teacher"`
		Comment string    `json:"comment"`
		Date    time.Time `json:"date"`
	}

	// Child is a student linked to a parent account.
	// Absences, Grades and Feedback are ordered most recent first.
	Child struct {
		ID         string     `json:"id"`
		ParentID   string     `json:"parent_id"`
		Name       string     `json:"name"`
		Attendance Attendance `json:"attendance"`
		Grades     []Grade    `json:"grades"`
		Feedback   []Feedback `json:"feedback"`
	}

	Event struct {
		ID       string    `json:"id"`
		Title    string    `json:"title"`
		Date     time.Time `json:"date"`
		Location string    `json:"location"`
	}
)

// Repository gives read access to the school data a parent is allowed to see.
type Repository interface {
	ChildrenOf(ctx context.Context, parentID string) ([]Child, error)
	UpcomingEvents(ctx context.Context, from time.Time, limit int) ([]Event, error)
}
