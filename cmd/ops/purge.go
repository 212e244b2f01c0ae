package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	pfirestore "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/firestore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
	firestoreRepo "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/firestore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/redisstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/sqlstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

func purgeCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "purge-staged",
		Usage: "delete staged orders whose TTL elapsed",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 500, Usage: "maximum records removed in one run"},
		},
		Action: func(c *cli.Context) error {
			return withConfigAndDatabase(c, logger, func(cfg config.Config, db *sqlx.DB) error {
				staged, closeFn, err := stagedRepository(cfg, db)
				if err != nil {
					return err
				}
				defer closeFn()

				maintenance, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
					Staged: staged,
					Clock:  time.Now,
					Logger: observability.ServiceLogger(logger, "maintenance"),
				})
				if err != nil {
					return err
				}
				result, err := maintenance.PurgeStagedOrders(c.Context, services.PurgeStagedOrdersCommand{Limit: c.Int("limit")})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "removed %d staged orders (%s backend)\n", result.Removed, cfg.Checkout.StagingBackend)
				return err
			})
		},
	}
}

func stagedRepository(cfg config.Config, db *sqlx.DB) (repositories.StagedOrderRepository, func(), error) {
	switch cfg.Checkout.StagingBackend {
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, nil, errors.New("redis staging backend requires API_REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.NewStagedOrders(client), func() { _ = client.Close() }, nil
	case "firestore":
		provider := pfirestore.NewProvider(cfg.Firestore)
		repo, err := firestoreRepo.NewStagedOrderRepository(provider, time.Now)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		return repo, func() { _ = provider.Close() }, nil
	default:
		return sqlstore.New(db).StagedOrders(), func() {}, nil
	}
}
