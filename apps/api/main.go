package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/mozedu/mozedu/apps/api/echo"
	"github.com/mozedu/mozedu/apps/shared"
	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/user"
	"github.com/mozedu/mozedu/integrations/llm"
	"github.com/mozedu/mozedu/services/email"
	"github.com/mozedu/mozedu/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up stores
	ctx := context.Background()
	stores, err := shared.OpenStores(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up stores: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var responder chat.Responder
	if conf.Chat.OpenAIToken != "" {
		if responder, err = llm.NewOpenAIResponder(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up llm responder: %v", err), err)
		}
		logger.Info(fmt.Sprintf("Answering with %s", conf.Chat.LLMModel))
	}

	usrSvc := user.NewService(stores.Users, logger)
	chatSvc := chat.NewService(stores.Chat, stores.School, responder, mailSvc, logger, chat.Options{
		MaxMessageLength: conf.Chat.MaxMessageLength,
		HistoryLimit:     conf.Chat.LLMHistoryLimit,
	})

	if demo, ok, err := stores.SeedDemo(ctx, usrSvc); err != nil {
		logger.Fatal(fmt.Sprintf("seeding demo data: %v", err), err)
	} else if ok {
		logger.Warn(fmt.Sprintf("memory store: log in as %q / %q", demo.Username, shared.DemoPassword))
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("chatStore").Set(conf.Chat.Store)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			ChatSvc:    chatSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
