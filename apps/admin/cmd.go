package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/mozedu/mozedu/apps/shared"
	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
	in         io.Reader
	out        io.Writer

	openStores func(ctx context.Context, conf *core.Config) (*shared.Stores, error)
	stores     *shared.Stores
	openDB     func(conf *core.Config) (*sqlx.DB, error) // migrate only
	db         *sqlx.DB
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|up-to VERSION|up-by-one|down|down-to VERSION|redo - apply database migrations")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-role parent|teacher|admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  chat -username USERNAME [-url API_URL] | -demo - chat with the assistant")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", "parent", "One of parent, teacher or admin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	chatCmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatCmd.SetOutput(cli.out)
	chatUname := chatCmd.String("username", "", "Chat as this parent (username or email).")
	chatURL := chatCmd.String("url", "", "Chat through the API at this base URL instead of the local services.")
	chatDemo := chatCmd.Bool("demo", false, "Chat offline over sample school data.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserName, *addUserUname, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "chat":
		if err := chatCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if !*chatDemo && *chatUname == "" {
			chatCmd.Usage()
			return errHelp
		}
		return cli.chat(ctx, *chatUname, *chatURL, *chatDemo)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

func (cli *commandLine) getStores(ctx context.Context) (*shared.Stores, error) {
	if cli.stores == nil {
		stores, err := cli.openStores(ctx, cli.conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening stores")
		}
		cli.stores = stores
	}
	return cli.stores, nil
}

func (cli *commandLine) userService(ctx context.Context) (*user.Service, error) {
	stores, err := cli.getStores(ctx)
	if err != nil {
		return nil, err
	}
	return user.NewService(stores.Users, cli.logger), nil
}

func (cli *commandLine) chatService(ctx context.Context) (*chat.Service, error) {
	stores, err := cli.getStores(ctx)
	if err != nil {
		return nil, err
	}
	return chat.NewService(stores.Chat, stores.School, nil, nil, cli.logger, chat.Options{
		MaxMessageLength: cli.conf.Chat.MaxMessageLength,
	}), nil
}

func (cli *commandLine) close() error {
	if cli.db != nil {
		if err := cli.db.Close(); err != nil {
			return err
		}
	}
	if cli.stores == nil {
		return nil
	}
	return cli.stores.Close()
}

// describeError renders validation errors field by field.
func (cli *commandLine) describeError(err error) error {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msg := "invalid input:"
		for _, fErr := range vErr {
			msg += fmt.Sprintf("\n  %s: %s", fErr.Field(), fErr.Translate(cli.translator))
		}
		return errors.New(msg)
	case *core.ValidationError:
		if len(vErr.Fields) == 0 {
			return vErr
		}
		msg := "invalid input:"
		for _, fErr := range vErr.Fields {
			msg += fmt.Sprintf("\n  %s: %s", fErr.Field, fErr.Error)
		}
		return errors.New(msg)
	}
	return err
}
