package main

import (
	"context"

	"github.com/trezcool/soko/storage/database"
)

var (
	defaultMigrateFunc = database.RunMigrations
	migrateFunc        = defaultMigrateFunc // mockable
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
