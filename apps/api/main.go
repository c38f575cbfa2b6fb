package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/evaluo/apps/api/echo"
	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
	digestsvc "github.com/trezcool/evaluo/services/digest"
	emailsvc "github.com/trezcool/evaluo/services/email"
	logsvc "github.com/trezcool/evaluo/services/logger"
	sentimentsvc "github.com/trezcool/evaluo/services/sentiment"
	"github.com/trezcool/evaluo/storage/cache"
	"github.com/trezcool/evaluo/storage/database"
	inmemdb "github.com/trezcool/evaluo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/evaluo/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	local, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Fatalf("main.NewLocalLogger: %v", err)
	}
	defer func() { _ = local.Sync() }()
	logger := logsvc.NewRollbarLogger(local, conf)

	// set up DB
	repos, err := setUpRepos(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up cache
	var recordCache evaluation.RecordCache = evaluation.NopCache{}
	if !conf.Cache.Disabled {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		store, err := cache.New(
			ctx,
			cache.WithAddress(conf.Cache.Address),
			cache.WithPassword(conf.Cache.Password),
			cache.WithDB(conf.Cache.DB),
		)
		cancel()
		if err != nil {
			logger.Warn(fmt.Sprintf("records cache disabled: %v", err), err)
		} else {
			defer func() { _ = store.Close() }()
			recordCache = cache.NewRecordCache(store, conf.Cache.TTL, logger)
		}
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)

	usrSvc := user.NewService(repos.users, mailSvc, conf)
	schoolSvc := school.NewService(repos.school)
	evalSvc := evaluation.NewService(evaluation.ServiceDeps{
		Repo:       repos.evaluations,
		Catalog:    schoolSvc,
		Classifier: sentimentsvc.New(conf.Classifier),
		Cache:      recordCache,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})
	schoolSvc.OnAssignmentsChanged(evalSvc.ForgetAssignments)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       usrSvc,
			SchoolSvc:     schoolSvc,
			EvaluationSvc: evalSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Start Digest

	if !conf.Digest.Disabled {
		scheduler, err := digestsvc.New(schoolSvc, evalSvc, mailSvc, logger).Schedule(conf.Digest.Schedule)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up digest: %v", err), err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		logger.Info(fmt.Sprintf("evaluations digest scheduled: %q", conf.Digest.Schedule))
	}

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

type repositories struct {
	users       user.Repository
	school      school.Repository
	evaluations evaluation.Repository
	close       func() error
}

// setUpRepos opens and migrates the SQL database, or builds the in-memory repositories for the memory engine.
func setUpRepos(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == database.Memory {
		db := inmemdb.Open()
		return repositories{
			users:       inmemdb.NewUserRepository(db),
			school:      inmemdb.NewSchoolRepository(db),
			evaluations: inmemdb.NewEvaluationRepository(db),
			close:       func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return repositories{}, errors.Wrap(err, "migrating database")
	}

	return repositories{
		users:       sqlxrepos.NewUserRepository(db),
		school:      sqlxrepos.NewSchoolRepository(db),
		evaluations: sqlxrepos.NewEvaluationRepository(db),
		close:       db.Close,
	}, nil
}
