package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mozedu/mozedu/core/school"
)

type (
	childRow struct {
		ID       string       `db:"id"`
		ParentID string       `db:"parent_id"`
		Name     string       `db:"name"`
		Rate     null.Float64 `db:"rate"`
	}

	absenceRow struct {
		ChildID string    `db:"child_id"`
		Date    time.Time `db:"date"`
		Reason  string    `db:"reason"`
	}

	gradeRow struct {
		ChildID  string    `db:"child_id"`
		Subject  string    `db:"subject"`
		Score    float64   `db:"score"`
		MaxScore float64   `db:"max_score"`
		Date     time.Time `db:"date"`
	}

	feedbackRow struct {
		ChildID string    `db:"child_id"`
		Teacher string    `db:"teacher"`
		Comment string    `db:"comment"`
		Date    time.Time `db:"date"`
	}

	eventRow struct {
		ID       string    `db:"id"`
		Title    string    `db:"title"`
		Date     time.Time `db:"date"`
		Location string    `db:"location"`
	}
)

type SchoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*SchoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

func (repo *SchoolRepository) ChildrenOf(ctx context.Context, parentID string) ([]school.Child, error) {
	if _, err := uuid.Parse(parentID); err != nil {
		return []school.Child{}, nil
	}

	var rows []childRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.parent_id, c.name, s.rate
		FROM children c LEFT JOIN attendance_summaries s ON s.child_id = c.id
		WHERE c.parent_id = $1
		ORDER BY c.name, c.id`, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting children")
	}

	children := make([]school.Child, 0, len(rows))
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		child := school.Child{
			ID:       row.ID,
			ParentID: row.ParentID,
			Name:     row.Name,
			Attendance: school.Attendance{
				Absences: []school.Absence{},
			},
			Grades:   []school.Grade{},
			Feedback: []school.Feedback{},
		}
		if row.Rate.Valid {
			child.Attendance.Summary = &school.AttendanceSummary{Rate: row.Rate.Float64}
		}
		children = append(children, child)
		index[row.ID] = i
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return children, nil
	}

	var absences []absenceRow
	if err := repo.db.SelectContext(ctx, &absences, `
		SELECT child_id, date, reason FROM absences
		WHERE child_id::text = ANY($1::text[])
		ORDER BY date DESC, id DESC`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting absences")
	}
	for _, a := range absences {
		c := &children[index[a.ChildID]]
		c.Attendance.Absences = append(c.Attendance.Absences, school.Absence{Date: a.Date.UTC(), Reason: a.Reason})
	}

	var grades []gradeRow
	if err := repo.db.SelectContext(ctx, &grades, `
		SELECT child_id, subject, score, max_score, date FROM grades
		WHERE child_id::text = ANY($1::text[])
		ORDER BY date DESC, id DESC`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	for _, g := range grades {
		c := &children[index[g.ChildID]]
		c.Grades = append(c.Grades, school.Grade{Subject: g.Subject, Score: g.Score, MaxScore: g.MaxScore, Date: g.Date.UTC()})
	}

	var feedback []feedbackRow
	if err := repo.db.SelectContext(ctx, &feedback, `
		SELECT child_id, teacher, comment, date FROM teacher_feedback
		WHERE child_id::text = ANY($1::text[])
		ORDER BY date DESC, id DESC`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting teacher feedback")
	}
	for _, f := range feedback {
		c := &children[index[f.ChildID]]
		c.Feedback = append(c.Feedback, school.Feedback{Teacher: f.Teacher, Comment: f.Comment, Date: f.Date.UTC()})
	}

	return children, nil
}

func (repo *SchoolRepository) UpcomingEvents(ctx context.Context, from time.Time, limit int) ([]school.Event, error) {
	var rows []eventRow
	query := `SELECT id, title, date, location FROM school_events WHERE date >= $1 ORDER BY date, id`
	args := []interface{}{from.UTC()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting school events")
	}

	events := make([]school.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, school.Event{ID: row.ID, Title: row.Title, Date: row.Date.UTC(), Location: row.Location})
	}
	return events, nil
}

// AddChild stores `child` with its attendance, grades and feedback in one transaction.
func (repo *SchoolRepository) AddChild(ctx context.Context, child school.Child) (school.Child, error) {
	if child.ID == "" {
		child.ID = uuid.New().String()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return school.Child{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO children (id, parent_id, name) VALUES ($1, $2, $3)`,
		child.ID, child.ParentID, child.Name); err != nil {
		return school.Child{}, errors.Wrap(err, "inserting child")
	}
	if sum := child.Attendance.Summary; sum != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO attendance_summaries (child_id, rate) VALUES ($1, $2)`,
			child.ID, sum.Rate); err != nil {
			return school.Child{}, errors.Wrap(err, "inserting attendance summary")
		}
	}
	for _, a := range child.Attendance.Absences {
		if _, err := tx.ExecContext(ctx, `INSERT INTO absences (child_id, date, reason) VALUES ($1, $2, $3)`,
			child.ID, a.Date.UTC(), a.Reason); err != nil {
			return school.Child{}, errors.Wrap(err, "inserting absence")
		}
	}
	for _, g := range child.Grades {
		if _, err := tx.ExecContext(ctx, `INSERT INTO grades (child_id, subject, score, max_score, date) VALUES ($1, $2, $3, $4, $5)`,
			child.ID, g.Subject, g.Score, g.MaxScore, g.Date.UTC()); err != nil {
			return school.Child{}, errors.Wrap(err, "inserting grade")
		}
	}
	for _, f := range child.Feedback {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teacher_feedback (child_id, teacher, comment, date) VALUES ($1, $2, $3, $4)`,
			child.ID, f.Teacher, f.Comment, f.Date.UTC()); err != nil {
			return school.Child{}, errors.Wrap(err, "inserting feedback")
		}
	}

	if err := tx.Commit(); err != nil {
		return school.Child{}, errors.Wrap(err, "committing child")
	}
	return child, nil
}

func (repo *SchoolRepository) AddEvent(ctx context.Context, ev school.Event) (school.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	row := eventRow{ID: ev.ID, Title: ev.Title, Date: ev.Date.UTC(), Location: ev.Location}
	if _, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO school_events (id, title, date, location) VALUES (:id, :title, :date, :location)`, row); err != nil {
		return school.Event{}, errors.Wrap(err, "inserting school event")
	}
	return ev, nil
}
