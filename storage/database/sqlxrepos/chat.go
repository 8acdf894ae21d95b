package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

type (
	sessionRow struct {
		ID            string      `db:"id"`
		OwnerID       string      `db:"owner_id"`
		Title         string      `db:"title"`
		CreatedAt     time.Time   `db:"created_at"`
		LastMessageAt time.Time   `db:"last_message_at"`
		LastIntent    null.String `db:"last_intent"`
		IsActive      bool        `db:"is_active"`
	}

	messageRow struct {
		ID        string      `db:"id"`
		SessionID string      `db:"session_id"`
		Role      string      `db:"role"`
		Content   string      `db:"content"`
		Intent    null.String `db:"intent"`
		CreatedAt time.Time   `db:"created_at"`
	}
)

func toSessionRow(sess chat.Session) sessionRow {
	return sessionRow{
		ID:            sess.ID,
		OwnerID:       sess.OwnerID,
		Title:         sess.Title,
		CreatedAt:     sess.CreatedAt.UTC(),
		LastMessageAt: sess.LastMessageAt.UTC(),
		LastIntent:    null.NewString(string(sess.LastIntent), sess.LastIntent != chat.IntentNone),
		IsActive:      sess.IsActive,
	}
}

func (r sessionRow) session() chat.Session {
	return chat.Session{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		CreatedAt:     r.CreatedAt.UTC(),
		LastMessageAt: r.LastMessageAt.UTC(),
		LastIntent:    chat.Intent(r.LastIntent.String),
		IsActive:      r.IsActive,
	}
}

const sessionColumns = `id, owner_id, title, created_at, last_message_at, last_intent, is_active`

var sessionOrderings = map[string]string{
	"created_at":      "created_at",
	"last_message_at": "last_message_at",
	"title":           "lower(title)",
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateSession(ctx context.Context, sess chat.Session) (chat.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO chat_sessions (`+sessionColumns+`)
		VALUES (:id, :owner_id, :title, :created_at, :last_message_at, :last_intent, :is_active)`,
		toSessionRow(sess))
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "inserting chat session")
	}
	return sess, nil
}

func (repo *chatRepository) DeactivateSessions(ctx context.Context, ownerID string) error {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE chat_sessions SET is_active = FALSE WHERE owner_id = $1 AND is_active`, ownerID)
	return errors.Wrap(err, "deactivating chat sessions")
}

func (repo *chatRepository) GetSession(ctx context.Context, id string) (chat.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return chat.Session{}, chat.ErrSessionNotFound
		}
		return chat.Session{}, errors.Wrap(err, "selecting chat session")
	}
	return row.session(), nil
}

func (repo *chatRepository) QuerySessions(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]chat.Session, error) {
	sessions := make([]chat.Session, 0)
	if _, err := uuid.Parse(ownerID); err != nil {
		return sessions, nil
	}

	var rows []sessionRow
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE owner_id = $1 ` +
		core.OrderByClause(ordering, sessionOrderings, chat.DefaultSessionOrdering) + `, id`
	if err := repo.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "selecting chat sessions")
	}
	for _, row := range rows {
		sessions = append(sessions, row.session())
	}
	return sessions, nil
}

func (repo *chatRepository) UpdateSession(ctx context.Context, sess chat.Session) (chat.Session, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE chat_sessions SET
			title = :title, last_message_at = :last_message_at, last_intent = :last_intent, is_active = :is_active
		WHERE id = :id`,
		toSessionRow(sess))
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "updating chat session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return sess, nil
}

func (repo *chatRepository) AppendMessages(ctx context.Context, sessionID string, msgs ...chat.Message) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		row := messageRow{
			ID:        msg.ID,
			SessionID: sessionID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Intent:    null.NewString(string(msg.Intent), msg.Intent != chat.IntentNone),
			CreatedAt: msg.CreatedAt.UTC(),
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO chat_messages (id, session_id, role, content, intent, created_at)
			VALUES (:id, :session_id, :role, :content, :intent, :created_at)`, row); err != nil {
			return errors.Wrap(err, "inserting chat message")
		}
	}
	return errors.Wrap(tx.Commit(), "committing chat messages")
}

func (repo *chatRepository) QueryMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	if _, err := uuid.Parse(sessionID); err != nil {
		return msgs, nil
	}

	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, role, content, intent, created_at FROM chat_messages
		WHERE session_id = $1 ORDER BY seq`, sessionID); err != nil {
		return nil, errors.Wrap(err, "selecting chat messages")
	}
	for _, row := range rows {
		msgs = append(msgs, chat.Message{
			ID:        row.ID,
			SessionID: row.SessionID,
			Role:      chat.Role(row.Role),
			Content:   row.Content,
			Intent:    chat.Intent(row.Intent.String),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}
