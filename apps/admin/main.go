package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/mozedu/mozedu/apps/shared"
	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/user"
	"github.com/mozedu/mozedu/services/logger"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := &commandLine{
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
		in:         os.Stdin,
		out:        os.Stdout,
		openStores: shared.OpenStores,
		openDB:     openDatabase,
	}
	err := cli.run(context.Background(), os.Args)
	if cErr := cli.close(); cErr != nil {
		logger.Error("closing stores", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: " + err.Error())
		}
		os.Exit(1)
	}
}
