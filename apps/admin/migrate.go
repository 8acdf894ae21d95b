package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/storage/database"
)

var gooseRunFunc = runGoose // mockable

var errNoDatabase = errors.New("migrate: no database configured")

// openDatabase creates and opens the postgres database, leaving migrations to goose.
func openDatabase(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	return database.Open(conf)
}

func (cli *commandLine) getDB() (*sqlx.DB, error) {
	if cli.stores != nil && cli.stores.DB != nil {
		return cli.stores.DB, nil
	}
	if cli.db == nil {
		if cli.openDB == nil {
			return nil, errNoDatabase
		}
		db, err := cli.openDB(cli.conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		cli.db = db
	}
	return cli.db, nil
}

func runGoose(command string, db *sql.DB, version int64) error {
	fsys, dir := database.MigrationsFS, database.MigrationsDir
	switch command {
	case "up":
		return goose.Up(db, fsys, dir)
	case "up-to":
		return goose.UpTo(db, fsys, dir, version)
	case "up-by-one":
		return goose.UpByOne(db, fsys, dir)
	case "down":
		return goose.Down(db, fsys, dir)
	case "down-to":
		return goose.DownTo(db, fsys, dir, version)
	case "redo":
		return goose.Redo(db, fsys, dir)
	}
	return errors.Errorf("%q: no such command", command)
}

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	var version int64
	switch args[0] {
	case "up", "up-by-one", "down", "redo":
	case "up-to", "down-to":
		if len(args) < 2 {
			fmt.Fprintf(cli.out, "%s requires a VERSION\n", args[0])
			return errHelp
		}
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.Errorf("%q: invalid migration version", args[1])
		}
		version = v
	default:
		return errors.Errorf("%q: no such command", args[0])
	}

	db, err := cli.getDB()
	if err != nil {
		return err
	}
	return gooseRunFunc(args[0], db.DB, version)
}
