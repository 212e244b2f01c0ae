package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
)

func migrateCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the relational schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, logger, func(db *sqlx.DB) error {
						if err := sqldb.Migrate(db); err != nil {
							return err
						}
						return reportVersion(c, db)
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					return withDatabase(c, logger, func(db *sqlx.DB) error {
						if err := sqldb.MigrateDown(db, c.Int("steps")); err != nil {
							return err
						}
						return reportVersion(c, db)
					})
				},
			},
			{
				Name:  "version",
				Usage: "print the applied schema version",
				Action: func(c *cli.Context) error {
					return withDatabase(c, logger, func(db *sqlx.DB) error {
						return reportVersion(c, db)
					})
				},
			},
		},
	}
}

func reportVersion(c *cli.Context, db *sqlx.DB) error {
	version, dirty, err := sqldb.Version(db)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "schema version %d (dirty=%t)\n", version, dirty)
	return err
}
