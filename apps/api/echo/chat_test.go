package echoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mozedu/mozedu/apps/api/echo"
	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/chatbot"
	"github.com/mozedu/mozedu/core/user"
	"github.com/mozedu/mozedu/testutil"
)

func sendMessage(t *testing.T, f fixture, token, sessionID, content string) chat.Reply {
	req, rec := newAuthRequest(http.MethodPost, "/v1/chatbot/messages", token,
		marchallObj(t, echoapi.SendMessageRequest{SessionID: sessionID, Content: content}))
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply chat.Reply
	unmarshal(t, rec, &reply)
	return reply
}

func Test_chatApi_permissions(t *testing.T) {
	f := setup(t)
	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	naughty := testutil.CreateUser(t, f.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleParent}, false)
	admin := testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	body := marchallObj(t, echoapi.SendMessageRequest{Content: "olá"})
	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/chatbot/messages", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Parent required", method: http.MethodPost, path: "/v1/chatbot/messages", body: body,
			token:    getToken(t, f.conf, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Active account required", method: http.MethodGet, path: "/v1/chatbot/sessions",
			token:    getToken(t, f.conf, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Admin allowed", method: http.MethodGet, path: "/v1/chatbot/sessions",
			token:    getToken(t, f.conf, admin),
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
	})
}

func Test_chatApi_sendMessage(t *testing.T) {
	f := setup(t)
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", "", []string{user.RoleParent}, true)
	other := testutil.CreateUser(t, f.usrRepo, "João", "joao", "joao@test.cd", "", []string{user.RoleParent}, true)
	f.schoolRepo.AddChild(testutil.Child(parent.ID, "Ana"))
	token := getToken(t, f.conf, parent)

	reply := sendMessage(t, f, token, "", "Qual é a presença da Ana?")
	assert.NotEmpty(t, reply.Session.ID)
	assert.Equal(t, "Qual é a presença da Ana?", reply.Session.Title)
	assert.Equal(t, chat.IntentAttendance, reply.Intent)
	assert.Contains(t, reply.Content, "A taxa de presença de Ana é de 85%.")

	next := sendMessage(t, f, token, reply.Session.ID, "E as notas?")
	assert.Equal(t, reply.Session.ID, next.Session.ID)
	assert.Equal(t, chat.IntentGrades, next.Intent)
	assert.Contains(t, next.Content, "Notas mais recentes de Ana:")

	path := "/v1/chatbot/messages"
	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Content required", method: http.MethodPost, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name: "Blank content", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, echoapi.SendMessageRequest{Content: "   "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: chat.ErrEmptyMessage.Error()}),
		},
		{
			name: "Content too long", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, echoapi.SendMessageRequest{Content: strings.Repeat("a", f.conf.Chat.MaxMessageLength+1)}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: chat.ErrMessageTooLong.Error()}),
		},
		{
			name: "Unknown session", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, echoapi.SendMessageRequest{SessionID: "lol", Content: "olá"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: chat.ErrSessionNotFound.Error()}),
		},
		{
			name: "Someone else's session", method: http.MethodPost, path: path, token: getToken(t, f.conf, other),
			body:     marchallObj(t, echoapi.SendMessageRequest{SessionID: reply.Session.ID, Content: "olá"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: chat.ErrSessionNotFound.Error()}),
		},
	})
}

func Test_chatApi_sessionsAndMessages(t *testing.T) {
	f := setup(t)
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", "", []string{user.RoleParent}, true)
	other := testutil.CreateUser(t, f.usrRepo, "João", "joao", "", "", []string{user.RoleParent}, true)
	f.schoolRepo.AddChild(testutil.Child(parent.ID, "Ana"))
	token := getToken(t, f.conf, parent)

	first := sendMessage(t, f, token, "", "Quando é a próxima reunião?")
	second := sendMessage(t, f, token, "", "Como estão as notas?")

	t.Run("Sessions, most recent first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/chatbot/sessions", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sessions []chat.Session
		unmarshal(t, rec, &sessions)
		require.Len(t, sessions, 2)
		assert.Equal(t, second.Session.ID, sessions[0].ID)
		assert.True(t, sessions[0].IsActive)
		assert.Equal(t, first.Session.ID, sessions[1].ID)
		assert.False(t, sessions[1].IsActive)
	})

	t.Run("Sessions, ordered by title", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/chatbot/sessions?ordering=title", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sessions []chat.Session
		unmarshal(t, rec, &sessions)
		require.Len(t, sessions, 2)
		assert.Equal(t, second.Session.ID, sessions[0].ID)
	})

	t.Run("Sessions, oldest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/chatbot/sessions?ordering=created_at,,-created_at", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sessions []chat.Session
		unmarshal(t, rec, &sessions)
		require.Len(t, sessions, 2)
		assert.Equal(t, first.Session.ID, sessions[0].ID)
		assert.Equal(t, second.Session.ID, sessions[1].ID)
	})

	t.Run("Messages", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/chatbot/sessions/"+first.Session.ID+"/messages", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var msgs []chat.Message
		unmarshal(t, rec, &msgs)
		require.Len(t, msgs, 2)
		assert.Equal(t, chat.RoleUser, msgs[0].Role)
		assert.Equal(t, "Quando é a próxima reunião?", msgs[0].Content)
		assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
		assert.Equal(t, first.Content, msgs[1].Content)
	})

	notFound := marchallObj(t, httpErr{Error: chat.ErrSessionNotFound.Error()})
	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Messages of someone else's session", method: http.MethodGet,
			path: "/v1/chatbot/sessions/" + first.Session.ID + "/messages", token: getToken(t, f.conf, other),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "Unknown ordering field", method: http.MethodGet,
			path: "/v1/chatbot/sessions?ordering=-updated_at", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ordering": `"updated_at": unknown field`}),
		},
		{
			name: "Unknown user", method: http.MethodPost,
			path: "/v1/chatbot/sessions/" + first.Session.ID + "/transcript", token: getToken(t, f.conf, user.User{ID: "ghost", Roles: []string{user.RoleParent}}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "Transcript without email", method: http.MethodPost,
			path: "/v1/chatbot/sessions/" + first.Session.ID + "/transcript", token: getToken(t, f.conf, other),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": chat.ErrNoEmail.Error()}),
		},
	})

	t.Run("Transcript", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/chatbot/sessions/"+first.Session.ID+"/transcript", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		sent := f.mailbox.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "maria@test.cd", sent[0].To[0].Address)
		assert.Equal(t, "Conversa: Quando é a próxima reunião?", sent[0].Subject)
		require.Len(t, sent[0].Attachments, 1)
	})
}

func Test_chatApi_ask(t *testing.T) {
	f := setup(t)
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", "", []string{user.RoleParent}, true)
	f.schoolRepo.AddChild(testutil.Child(parent.ID, "Ana"))
	token := getToken(t, f.conf, parent)

	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Question required", method: http.MethodPost, path: "/v1/chatbot/ask", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"question": "this field is required"}),
		},
		{
			name: "Question too long", method: http.MethodPost, path: "/v1/chatbot/ask", token: token,
			body:     marchallObj(t, echoapi.AskRequest{Question: strings.Repeat("é", f.conf.Chat.MaxMessageLength+1)}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: chat.ErrMessageTooLong.Error()}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/chatbot/ask", token,
		marchallObj(t, echoapi.AskRequest{Question: "Quais são as notas?"}))
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res echoapi.AskResponse
	unmarshal(t, rec, &res)
	assert.Contains(t, res.Answer, "Matemática: 15/20")

	// nothing stored
	req, rec = newAuthRequest(http.MethodGet, "/v1/chatbot/sessions", token)
	f.app.ServeHTTP(rec, req)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHTTPBackend_againstServer(t *testing.T) {
	f := setup(t)
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", "Mozedu#2024", []string{user.RoleParent}, true)
	f.schoolRepo.AddChild(testutil.Child(parent.ID, "Ana"))

	srv := httptest.NewServer(f.app)
	defer srv.Close()

	ctx := context.Background()
	backend := chatbot.NewHTTPBackend(srv.URL, "", srv.Client())
	require.NoError(t, backend.Login(ctx, "maria", "Mozedu#2024"))

	ctrl := chatbot.NewController(backend, f.logger, chatbot.Options{})
	defer ctrl.Close()

	require.True(t, ctrl.SendMessage("Quantas faltas tem a Ana?"))
	ctrl.Wait()

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Tem 1 falta registada.")
	assert.False(t, msgs[1].IsError)
	assert.NotEmpty(t, ctrl.SessionID())

	require.NoError(t, ctrl.RefreshSessions(ctx))
	require.Len(t, ctrl.Sessions(), 1)
	assert.Equal(t, ctrl.SessionID(), ctrl.Sessions()[0].ID)

	history, err := backend.GetMessages(ctx, ctrl.SessionID())
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
