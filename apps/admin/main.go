package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
	emailsvc "github.com/learntube/backend/services/email"
	logsvc "github.com/learntube/backend/services/logger"
	"github.com/learntube/backend/storage/database"
)

func main() {
	conf := core.NewConfig()

	logsvc.InitRollbar(conf)
	logger, err := logsvc.NewRollbarLogger("ADMIN", conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}

	// set up DB
	ctx := context.Background()
	store, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	// TODO: wait for the sendgrid goroutines before exiting, the welcome email of adduser may be dropped
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(store.Users, mailSvc, logger)
	courseSvc := course.NewService(store.Courses, store.Enrollments, store.Users, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(err.Error(), err)
	}

	// start CLI
	cli := commandLine{
		usrSvc:   usrSvc,
		enrSvc:   enrollment.NewService(store.Enrollments, courseSvc, logger),
		validate: validate,
		migrator: store,
	}
	err = cli.run(os.Args)

	if cerr := store.Close(ctx); cerr != nil {
		logger.Error("closing database", cerr)
	}
	logger.Sync()

	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
