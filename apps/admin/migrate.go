package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/storage/database"
)

var migrateFunc = database.Migrate // mockable

var errNoSQLDatabase = errors.New("migrations need a SQL database (postgres or sqlite3)")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
