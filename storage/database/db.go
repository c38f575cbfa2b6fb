// Package database opens the SQL database and runs its migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/evaluo/core"
)

// Engines
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
	Memory   = "memory" // in-memory repositories, no SQL database
)

//go:embed migrations
var migrations embed.FS

var errUnknownEngine = errors.New("unknown database engine")

func pgDSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqliteDSN(conf *core.Config) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_loc=UTC", conf.Database.SQLitePath)
}

// Open opens the application database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch conf.Database.Engine {
	case Postgres:
		db, err = sqlx.Open(Postgres, pgDSN(conf.Database.Name, false, conf))
	case SQLite:
		db, err = sqlx.Open(SQLite, sqliteDSN(conf))
		if err == nil {
			db.SetMaxOpenConns(1) // sqlite allows a single writer
		}
	default:
		return nil, errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRowx(query, args...).Scan(&found)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return found, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		// identifiers and passwords cannot be bound as parameters here
		q := fmt.Sprintf(
			"CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s",
			pq.QuoteIdentifier(conf.Database.User), pq.QuoteLiteral(conf.Database.Password),
		)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database when missing.
// sqlite creates its file on open and the memory engine needs nothing.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != Postgres {
		return nil
	}

	// connect as admin
	db, err := sqlx.Open(Postgres, pgDSN("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := sqlx.Open(Postgres, pgDSN("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// Migrate runs a goose command (up, down, status, version, redo, reset, up-to, down-to...)
// with the migrations of the database engine.
func Migrate(db *sqlx.DB, command string, args ...string) error {
	dialect := db.DriverName()
	if dialect != Postgres && dialect != SQLite {
		return errors.Wrap(errUnknownEngine, dialect)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := goose.Run(command, db.DB, "migrations/"+dialect, args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}
