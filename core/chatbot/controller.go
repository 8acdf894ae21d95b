package chatbot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

const (
	DefaultTimeout = 30 * time.Second

	// GenericErrorText is the only failure message users ever see.
	GenericErrorText = "Desculpe, não foi possível obter uma resposta. Tente novamente."

	eventBufferSize = 64
)

// Backend is the chat API the Controller talks to.
type Backend interface {
	Send(ctx context.Context, sessionID, content string) (chat.Reply, error)
	ListSessions(ctx context.Context) ([]chat.Session, error)
	GetMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
}

type Options struct {
	Timeout time.Duration // per request; DefaultTimeout when zero
}

// Controller owns the conversation on display and sequences one exchange at a time.
// Commands are methods; changes are published as Events to subscribers.
type Controller struct {
	backend Backend
	logger  core.Logger
	timeout time.Duration

	mu        sync.Mutex
	sessionID string
	messages  []Message
	state     State
	sessions  []chat.Session
	gen       uint64    // bumped whenever the view switches conversation
	loads     uint64    // bumped by LoadSession and NewChat; the latest call owns the view
	pending   []Message // question and placeholder of the request in flight for the view
	running   map[uint64]context.CancelFunc
	nextReq   uint64
	subs      map[int]chan Event
	nextSub   int

	wg sync.WaitGroup
}

func NewController(backend Backend, logger core.Logger, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		backend: backend,
		logger:  logger,
		timeout: opts.Timeout,
		running: make(map[uint64]context.CancelFunc),
		subs:    make(map[int]chan Event),
	}
}

// Subscribe returns a channel of Events and a func to stop receiving them.
// Events are dropped for subscribers that do not keep up.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, eventBufferSize)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// publish must be called with c.mu held.
func (c *Controller) publish(ev Event) {
	ev.Snapshot = c.snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// snapshot must be called with c.mu held.
func (c *Controller) snapshot() Snapshot {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{SessionID: c.sessionID, State: c.state, Messages: msgs}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) Messages() []Message { return c.Snapshot().Messages }
func (c *Controller) SessionID() string   { return c.Snapshot().SessionID }
func (c *Controller) State() State        { return c.Snapshot().State }

// Sessions returns the session summaries fetched by the last refresh.
func (c *Controller) Sessions() []chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Session(nil), c.sessions...)
}

// SendMessage shows `text` with a loading answer and asks the backend in the background.
// It returns false, doing nothing, when `text` is blank or a request is already pending.
func (c *Controller) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return false
	}

	placeholder := Message{ID: uuid.New().String(), Role: chat.RoleAssistant, IsLoading: true}
	c.pending = []Message{{ID: uuid.New().String(), Role: chat.RoleUser, Content: text}, placeholder}
	c.messages = append(c.messages, c.pending...)
	c.state = StateSending

	// switching conversations does not cancel the request, so the backend still stores the exchange
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	req := c.nextReq
	c.nextReq++
	c.running[req] = cancel
	gen, sessionID := c.gen, c.sessionID
	c.publish(Event{Kind: EventSending})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.running, req)
			c.mu.Unlock()
			cancel()
		}()

		reply, err := c.backend.Send(ctx, sessionID, text)
		if err != nil {
			c.logFailure(ctx, err)
		}
		if c.commit(gen, placeholder.ID, reply, err) || err == nil {
			c.refreshAfterSend()
		}
	}()
	return true
}

func (c *Controller) logFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.logger.Warn("chatbot: request timed out", err)
	case errors.Is(ctx.Err(), context.Canceled):
		c.logger.Debug("chatbot: request cancelled on close", err)
	default:
		var herr *HTTPError
		if errors.As(err, &herr) {
			c.logger.Warn("chatbot: backend rejected the message", err)
		} else {
			c.logger.Warn("chatbot: request failed", err)
		}
	}
}

// commit replaces the placeholder with the outcome of a send started at generation `gen`.
// Outcomes for a conversation that is no longer displayed are dropped.
func (c *Controller) commit(gen uint64, placeholderID string, reply chat.Reply, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.publish(Event{Kind: EventStaleReplyDropped})
		return false
	}
	c.pending = nil

	answer := Message{ID: placeholderID, Role: chat.RoleAssistant}
	if err != nil {
		answer.Content = GenericErrorText
		answer.IsError = true
		c.state = StateError
	} else {
		answer.Content = reply.Content
		c.sessionID = reply.Session.ID
		c.state = StateIdle
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == placeholderID {
			c.messages[i] = answer
			break
		}
	}

	if err != nil {
		c.publish(Event{Kind: EventFailed, Err: err})
	} else {
		c.publish(Event{Kind: EventReplied, Reply: &reply})
	}
	return true
}

func (c *Controller) refreshAfterSend() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.RefreshSessions(ctx); err != nil {
		c.logger.Warn("chatbot: refreshing sessions", err)
	}
}

// abandon detaches the view from the pending request, whose answer will be dropped.
// Must be called with c.mu held.
func (c *Controller) abandon() {
	c.gen++
	c.pending = nil
	c.state = StateIdle
}

// LoadSession replaces the view with the history of `sessionID`.
// A pending answer for another session is abandoned; one for `sessionID` stays on display.
// When loads overlap, the last call wins.
func (c *Controller) LoadSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.loads++
	load := c.loads
	c.mu.Unlock()

	history, err := c.backend.GetMessages(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "getting session messages")
	}
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, Message{ID: m.ID, Role: m.Role, Content: m.Content})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if load != c.loads {
		return nil
	}
	if c.pending != nil && sessionID == c.sessionID {
		msgs = append(msgs, c.pending...)
	} else {
		c.abandon()
	}
	c.sessionID = sessionID
	c.messages = msgs
	c.publish(Event{Kind: EventSessionLoaded})
	return nil
}

// NewChat empties the view. The next message starts a new session.
func (c *Controller) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	c.abandon()
	c.sessionID = ""
	c.messages = nil
	c.publish(Event{Kind: EventCleared})
}

// RefreshSessions replaces the session summaries with the backend's.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	sessions, err := c.backend.ListSessions(ctx)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = sessions
	c.publish(Event{Kind: EventSessionsRefreshed, Sessions: append([]chat.Session(nil), sessions...)})
	return nil
}

// Wait blocks until background requests are done.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels the running requests and closes the subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	c.abandon()
	for _, cancel := range c.running {
		cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
