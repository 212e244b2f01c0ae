package main

import (
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
)

// withDatabase opens the configured database for the duration of fn.
func withDatabase(c *cli.Context, logger *zap.Logger, fn func(db *sqlx.DB) error) error {
	return withConfigAndDatabase(c, logger, func(_ config.Config, db *sqlx.DB) error {
		return fn(db)
	})
}

func withConfigAndDatabase(c *cli.Context, logger *zap.Logger, fn func(cfg config.Config, db *sqlx.DB) error) error {
	cfg, closeSecrets, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	defer closeSecrets()

	db, err := sqldb.Open(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()
	logger.Info("database opened", zap.String("driver", db.DriverName()))
	return fn(cfg, db)
}
