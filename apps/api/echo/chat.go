package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core/chat"
)

type chatApi struct {
	auth     *authenticator
	svc      *chat.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc *chat.Service, validate *validator.Validate) {
	api := chatApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/chatbot", jwt, parentMiddleware(auth))
	cg.POST("/messages", api.sendMessage)
	cg.POST("/ask", api.ask)
	cg.GET("/sessions", api.querySessions)
	cg.GET("/sessions/:id/messages", api.queryMessages)
	cg.POST("/sessions/:id/transcript", api.emailTranscript)
}

// Handlers

func (api *chatApi) sendMessage(ctx echo.Context) error {
	var data SendMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendMessageRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	owner, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reply, err := api.svc.SendMessage(ctx.Request().Context(), owner, data.SessionID, data.Content)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (api *chatApi) ask(ctx echo.Context) error {
	var data AskRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AskRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	owner, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	answer, err := api.svc.Ask(ctx.Request().Context(), owner, data.Question)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusOK, AskResponse{Answer: answer})
}

func (api *chatApi) querySessions(ctx echo.Context) error {
	owner, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	if err = ordering.Bind(ctx, chat.IsSessionOrderingField); err != nil {
		return err
	}

	sessions, err := api.svc.ListSessions(ctx.Request().Context(), owner, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []chat.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *chatApi) queryMessages(ctx echo.Context) error {
	owner, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msgs, err := api.svc.GetMessages(ctx.Request().Context(), owner, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) emailTranscript(ctx echo.Context) error {
	owner, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.EmailTranscript(ctx.Request().Context(), owner, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "emailing transcript")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The conversation will be sent to " + owner.Email + "."})
}

type (
	SendMessageRequest struct {
		SessionID string `json:"session_id"`
		Content   string `json:"content" validate:"required"`
	}

	AskRequest struct {
		Question string `json:"question" validate:"required"`
	}

	AskResponse struct {
		Answer string `json:"answer"`
	}
)
