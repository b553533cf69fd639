package main

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/trezcool/nidhamu/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable
	openDBFunc   = func(cli *commandLine) (*sql.DB, error) {
		db, err := database.Open(cli.conf)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	}
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) migrate(command string, args ...string) error {
	db, err := openDBFunc(cli)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return gooseRunFunc(db, command, args...)
}
