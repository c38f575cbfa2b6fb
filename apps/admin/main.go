package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
	logsvc "github.com/trezcool/evaluo/services/logger"
	sentimentsvc "github.com/trezcool/evaluo/services/sentiment"
	"github.com/trezcool/evaluo/storage/database"
	sqlxrepos "github.com/trezcool/evaluo/storage/database/sqlx"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	logger, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Printf("admin.NewLocalLogger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if conf.Database.Engine == database.Memory {
		logger.Error("admin commands need a SQL database", errors.Errorf("database engine %q", conf.Database.Engine))
		return 1
	}

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Error(fmt.Sprintf("creating database: %v", err), err)
		return 1
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)

	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db))

	// start CLI
	cli := commandLine{
		db:        db,
		usrRepo:   sqlxrepos.NewUserRepository(db),
		schoolSvc: schoolSvc,
		evalSvc: evaluation.NewService(evaluation.ServiceDeps{
			Repo:       sqlxrepos.NewEvaluationRepository(db),
			Catalog:    schoolSvc,
			Classifier: sentimentsvc.New(conf.Classifier),
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
		}),
		validate: validate,
		out:      os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("%s: %v", os.Args[1], err), err)
		}
		return 1
	}
	return 0
}
