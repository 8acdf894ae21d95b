package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core/chatbot"
)

var errNotParent = errors.New("only parents and admins can chat")

func (cli *commandLine) chatBackend(ctx context.Context, uname, apiURL string, demo bool) (chatbot.Backend, error) {
	if demo {
		return chatbot.NewDemoBackend(chatbot.SampleContext(time.Now().UTC())), nil
	}

	if apiURL != "" {
		pwd, err := cli.promptPassword()
		if err != nil {
			return nil, err
		}
		backend := chatbot.NewHTTPBackend(apiURL, "", nil)
		if err = backend.Login(ctx, uname, pwd); err != nil {
			return nil, errors.Wrap(err, "logging in")
		}
		return backend, nil
	}

	usrSvc, err := cli.userService(ctx)
	if err != nil {
		return nil, err
	}
	usr, err := usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return nil, err
	}
	if !usr.IsParent() && !usr.IsAdmin() {
		return nil, errNotParent
	}
	chatSvc, err := cli.chatService(ctx)
	if err != nil {
		return nil, err
	}
	return chatbot.NewServiceBackend(chatSvc, usr), nil
}

// chat runs the terminal chat until the user quits.
func (cli *commandLine) chat(ctx context.Context, uname, apiURL string, demo bool) error {
	backend, err := cli.chatBackend(ctx, uname, apiURL, demo)
	if err != nil {
		return err
	}
	ctrl := chatbot.NewController(backend, cli.logger, chatbot.Options{Timeout: cli.conf.Chat.ResponseTimeout})
	defer ctrl.Close()
	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(
		newChatModel(ctx, ctrl, events),
		tea.WithContext(ctx),
		tea.WithInput(cli.in),
		tea.WithOutput(cli.out),
	)
	if _, err = p.Run(); err != nil {
		return errors.Wrap(err, "running chat")
	}
	return nil
}
