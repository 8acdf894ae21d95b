package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core/chat"
)

// HTTPError is a non 2xx answer of the chat API.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Code, e.Message)
}

// HTTPBackend is a client of the mozedu REST API.
type HTTPBackend struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend returns a client of the API served at `baseURL`, authenticated with the JWT `token`.
// A nil `client` uses a client with a 60s timeout.
func NewHTTPBackend(baseURL, token string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type (
	sendRequest struct {
		SessionID string `json:"session_id,omitempty"`
		Content   string `json:"content"`
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token string `json:"token"`
	}
)

// Login exchanges credentials for a token used by the following requests.
func (b *HTTPBackend) Login(ctx context.Context, username, password string) error {
	var res loginResponse
	if err := b.do(ctx, http.MethodPost, "/v1/users/login", loginRequest{Username: username, Password: password}, &res); err != nil {
		return err
	}
	b.token = res.Token
	return nil
}

func (b *HTTPBackend) Send(ctx context.Context, sessionID, content string) (chat.Reply, error) {
	var reply chat.Reply
	err := b.do(ctx, http.MethodPost, "/v1/chatbot/messages", sendRequest{SessionID: sessionID, Content: content}, &reply)
	return reply, err
}

func (b *HTTPBackend) ListSessions(ctx context.Context) ([]chat.Session, error) {
	var sessions []chat.Session
	err := b.do(ctx, http.MethodGet, "/v1/chatbot/sessions", nil, &sessions)
	return sessions, err
}

func (b *HTTPBackend) GetMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var msgs []chat.Message
	err := b.do(ctx, http.MethodGet, "/v1/chatbot/sessions/"+url.PathEscape(sessionID)+"/messages", nil, &msgs)
	return msgs, err
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	res, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, method+" "+path)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &HTTPError{Code: res.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}
