package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	"github.com/trezcool/shule/storage/database/badgerdb"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
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

	// set up repositories
	repos, cleanup, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer cleanup()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(repos.user, mailSvc, conf)
	schoolSvc := school.NewService(repos.school)
	chatSvc := chat.NewService(repos.group, repos.message, schoolSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress(), http.DefaultServeMux); err != nil {
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
			Broker:     chat.NewBroker(echoapi.NewSessionAuthenticator(conf, usrSvc), chatSvc, logger),
			Validate:   validate,
			Translator: translator,
		},
	)

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

type repositories struct {
	user    user.Repository
	school  school.Repository
	group   chat.GroupRepository
	message chat.MessageRepository
}

// setUpRepositories builds the storage layer. Users, classes and groups
// always live in Postgres; the chat message store is switchable between
// Postgres and BadgerDB. The in-memory backend replaces everything and is
// meant for DEV only.
func setUpRepositories(conf *core.Config) (repositories, func(), error) {
	noop := func() {}

	if conf.Chat.MessageStore == "inmem" {
		db, err := inmemdb.Open()
		if err != nil {
			return repositories{}, noop, err
		}
		chatRepo := inmemdb.NewChatRepository(db)
		return repositories{
			user:    inmemdb.NewUserRepository(db),
			school:  inmemdb.NewSchoolRepository(db),
			group:   chatRepo,
			message: chatRepo,
		}, noop, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, noop, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, noop, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, noop, err
	}
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	chatRepo := sqlxrepos.NewChatRepository(sdb)
	repos := repositories{
		user:    sqlxrepos.NewUserRepository(sdb),
		school:  sqlxrepos.NewSchoolRepository(sdb),
		group:   chatRepo,
		message: chatRepo,
	}
	cleanup := func() { _ = db.Close() }

	if conf.Chat.MessageStore == "badger" {
		bdb, err := badgerdb.Open(conf.Chat.BadgerPath)
		if err != nil {
			cleanup()
			return repositories{}, noop, err
		}
		repos.message = badgerdb.NewMessageRepository(bdb)
		cleanup = func() {
			_ = bdb.Close()
			_ = db.Close()
		}
	}
	return repos, cleanup, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
