package chatbot

import (
	"context"

	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/user"
)

// ServiceBackend talks to an in-process chat.Service on behalf of one user.
type ServiceBackend struct {
	svc   *chat.Service
	owner user.User
}

var _ Backend = (*ServiceBackend)(nil)

func NewServiceBackend(svc *chat.Service, owner user.User) *ServiceBackend {
	return &ServiceBackend{svc: svc, owner: owner}
}

func (b *ServiceBackend) Send(ctx context.Context, sessionID, content string) (chat.Reply, error) {
	return b.svc.SendMessage(ctx, b.owner, sessionID, content)
}

func (b *ServiceBackend) ListSessions(ctx context.Context) ([]chat.Session, error) {
	return b.svc.ListSessions(ctx, b.owner, nil)
}

func (b *ServiceBackend) GetMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return b.svc.GetMessages(ctx, b.owner, sessionID)
}
