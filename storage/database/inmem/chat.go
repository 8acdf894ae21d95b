package inmemdb

import (
	"context"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

type chatRepository struct {
	db *chatTable
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db.chat}
}

func (repo *chatRepository) CreateSession(_ context.Context, sess chat.Session) (chat.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *chatRepository) DeactivateSessions(_ context.Context, ownerID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, sess := range repo.db.sessions {
		if sess.OwnerID == ownerID {
			sess.IsActive = false
		}
	}
	return nil
}

func (repo *chatRepository) GetSession(_ context.Context, id string) (chat.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return *sess, nil
}

func (repo *chatRepository) QuerySessions(_ context.Context, ownerID string, ordering []core.DBOrdering) ([]chat.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]chat.Session, 0)
	for _, sess := range repo.db.sessions {
		if sess.OwnerID == ownerID {
			sessions = append(sessions, *sess)
		}
	}

	chat.SortSessions(sessions, ordering)
	return sessions, nil
}

func (repo *chatRepository) UpdateSession(_ context.Context, sess chat.Session) (chat.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sess.ID]; !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *chatRepository) AppendMessages(_ context.Context, sessionID string, msgs ...chat.Message) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sessionID]; !ok {
		return chat.ErrSessionNotFound
	}
	repo.db.messages[sessionID] = append(repo.db.messages[sessionID], msgs...)
	return nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]chat.Message, len(repo.db.messages[sessionID]))
	copy(msgs, repo.db.messages[sessionID])
	return msgs, nil
}
