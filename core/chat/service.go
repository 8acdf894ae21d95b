package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/core/user"
)

const (
	titleMaxLen         = 60
	defaultEventsLimit  = 5
	defaultHistoryLimit = 20
)

type (
	Options struct {
		MaxMessageLength int // in runes; 0 means unlimited
		HistoryLimit     int // past messages given to the Responder
		EventsLimit      int
	}

	Service struct {
		repo       Repository
		schoolRepo school.Repository
		responder  Responder
		fallback   Responder
		mailSvc    core.EmailService
		logger     core.Logger
		opts       Options
		nowFunc    func() time.Time
	}
)

// NewService returns the chat Service. When `responder` fails, the LocalResponder answers instead.
func NewService(
	repo Repository,
	schoolRepo school.Repository,
	responder Responder,
	mailSvc core.EmailService,
	logger core.Logger,
	opts Options,
) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.EventsLimit <= 0 {
		opts.EventsLimit = defaultEventsLimit
	}
	if responder == nil {
		responder = LocalResponder{}
	}
	return &Service{
		repo:       repo,
		schoolRepo: schoolRepo,
		responder:  responder,
		fallback:   LocalResponder{},
		mailSvc:    mailSvc,
		logger:     logger,
		opts:       opts,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if svc.opts.MaxMessageLength > 0 && utf8.RuneCountInString(content) > svc.opts.MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return content, nil
}

// ownedSession returns the session `id` if it belongs to `owner`.
func (svc *Service) ownedSession(ctx context.Context, owner user.User, id string) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrSessionNotFound {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, errors.Wrap(err, "getting session")
	}
	if sess.OwnerID != owner.ID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// startSession supersedes the owner's sessions with a new active one.
func (svc *Service) startSession(ctx context.Context, owner user.User, firstMessage string) (Session, error) {
	if err := svc.repo.DeactivateSessions(ctx, owner.ID); err != nil {
		return Session{}, errors.Wrap(err, "deactivating sessions")
	}
	now := svc.nowFunc()
	sess, err := svc.repo.CreateSession(ctx, Session{
		ID:            uuid.New().String(),
		OwnerID:       owner.ID,
		Title:         core.Truncate(firstMessage, titleMaxLen),
		CreatedAt:     now,
		LastMessageAt: now,
		IsActive:      true,
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	return sess, nil
}

func (svc *Service) responseContext(ctx context.Context, owner user.User) (ResponseContext, error) {
	children, err := svc.schoolRepo.ChildrenOf(ctx, owner.ID)
	if err != nil {
		return ResponseContext{}, errors.Wrap(err, "loading children")
	}
	events, err := svc.schoolRepo.UpcomingEvents(ctx, svc.nowFunc(), svc.opts.EventsLimit)
	if err != nil {
		return ResponseContext{}, errors.Wrap(err, "loading events")
	}
	return ResponseContext{ParentName: owner.Name, Children: children, Events: events}, nil
}

func (svc *Service) respond(ctx context.Context, owner user.User, p Prompt) string {
	answer, err := svc.responder.Respond(ctx, p)
	if err == nil && strings.TrimSpace(answer) != "" {
		return answer
	}
	if err == nil {
		err = errors.New("empty answer")
	}
	svc.logger.Warn("chat.respond: responder failed, using local responder", err, owner)
	answer, _ = svc.fallback.Respond(ctx, p)
	return answer
}

// SendMessage answers `content` within the session `sessionID`.
// An empty `sessionID` starts a new session titled after `content`.
func (svc *Service) SendMessage(ctx context.Context, owner user.User, sessionID, content string) (Reply, error) {
	content, err := svc.cleanContent(content)
	if err != nil {
		return Reply{}, err
	}

	var sess Session
	if sessionID == "" {
		if sess, err = svc.startSession(ctx, owner, content); err != nil {
			return Reply{}, err
		}
	} else {
		if sess, err = svc.ownedSession(ctx, owner, sessionID); err != nil {
			return Reply{}, err
		}
		if !sess.IsActive {
			if err = svc.repo.DeactivateSessions(ctx, owner.ID); err != nil {
				return Reply{}, errors.Wrap(err, "deactivating sessions")
			}
			sess.IsActive = true
		}
	}

	history, err := svc.repo.QueryMessages(ctx, sess.ID)
	if err != nil {
		return Reply{}, errors.Wrap(err, "querying messages")
	}
	if len(history) > svc.opts.HistoryLimit {
		history = history[len(history)-svc.opts.HistoryLimit:]
	}
	rc, err := svc.responseContext(ctx, owner)
	if err != nil {
		return Reply{}, err
	}

	intent := Classify(content)
	question := Message{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		Role:      RoleUser,
		Content:   content,
		Intent:    intent,
		CreatedAt: svc.nowFunc(),
	}
	answer := svc.respond(ctx, owner, Prompt{Question: content, Intent: intent, History: history, Context: rc})
	reply := Message{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		Role:      RoleAssistant,
		Content:   answer,
		Intent:    intent,
		CreatedAt: svc.nowFunc(),
	}
	if !reply.CreatedAt.After(question.CreatedAt) {
		reply.CreatedAt = question.CreatedAt.Add(time.Microsecond)
	}

	if err = svc.repo.AppendMessages(ctx, sess.ID, question, reply); err != nil {
		return Reply{}, errors.Wrap(err, "appending messages")
	}
	sess.LastMessageAt = reply.CreatedAt
	sess.LastIntent = intent
	if sess, err = svc.repo.UpdateSession(ctx, sess); err != nil {
		return Reply{}, errors.Wrap(err, "updating session")
	}

	return Reply{Session: sess, Content: answer, Intent: intent}, nil
}

func (svc *Service) ListSessions(ctx context.Context, owner user.User, ordering []core.DBOrdering) ([]Session, error) {
	sessions, err := svc.repo.QuerySessions(ctx, owner.ID, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

func (svc *Service) GetMessages(ctx context.Context, owner user.User, sessionID string) ([]Message, error) {
	sess, err := svc.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := svc.repo.QueryMessages(ctx, sess.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return msgs, nil
}

// Ask answers `question` with the local responder without storing anything.
func (svc *Service) Ask(ctx context.Context, owner user.User, question string) (string, error) {
	question, err := svc.cleanContent(question)
	if err != nil {
		return "", err
	}
	rc, err := svc.responseContext(ctx, owner)
	if err != nil {
		return "", err
	}
	return GenerateResponse(question, rc), nil
}
