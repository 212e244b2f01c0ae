package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/sqlstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

const seedActor = "ops:seed-settings"

// settingsSeed mirrors the YAML layout:
//
//	deliveryFees:
//	  standard: "1500.00"
//	  express: "3000.00"
//	vat:
//	  enabled: true
//	  rate: "7.5"
type settingsSeed struct {
	DeliveryFees *struct {
		Standard string `yaml:"standard"`
		Express  string `yaml:"express"`
	} `yaml:"deliveryFees"`
	VAT *struct {
		Enabled bool   `yaml:"enabled"`
		Rate    string `yaml:"rate"`
	} `yaml:"vat"`
}

type seedValues struct {
	Fees *domain.DeliveryFeeTable
	VAT  *domain.VATConfig
}

func parseSettingsSeed(r io.Reader) (seedValues, error) {
	var raw settingsSeed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return seedValues{}, fmt.Errorf("decode settings seed: %w", err)
	}

	var out seedValues
	if raw.DeliveryFees != nil {
		standard, err := domain.ParseMoney(raw.DeliveryFees.Standard)
		if err != nil {
			return seedValues{}, fmt.Errorf("deliveryFees.standard: %w", err)
		}
		express, err := domain.ParseMoney(raw.DeliveryFees.Express)
		if err != nil {
			return seedValues{}, fmt.Errorf("deliveryFees.express: %w", err)
		}
		out.Fees = &domain.DeliveryFeeTable{Standard: standard, Express: express}
	}
	if raw.VAT != nil {
		rate, err := domain.ParseRate(raw.VAT.Rate)
		if err != nil {
			return seedValues{}, fmt.Errorf("vat.rate: %w", err)
		}
		out.VAT = &domain.VATConfig{Enabled: raw.VAT.Enabled, Rate: rate}
	}
	if out.Fees == nil && out.VAT == nil {
		return seedValues{}, errors.New("settings seed contains neither deliveryFees nor vat")
	}
	return out, nil
}

func applySettingsSeed(ctx context.Context, settings services.SettingsService, seed seedValues) error {
	if seed.Fees != nil {
		if _, err := settings.UpdateDeliveryFees(ctx, services.UpdateDeliveryFeesCommand{Fees: *seed.Fees, ActorID: seedActor}); err != nil {
			return fmt.Errorf("seed delivery fees: %w", err)
		}
	}
	if seed.VAT != nil {
		if _, err := settings.UpdateVAT(ctx, services.UpdateVATCommand{VAT: *seed.VAT, ActorID: seedActor}); err != nil {
			return fmt.Errorf("seed vat: %w", err)
		}
	}
	return nil
}

func seedSettingsCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "seed-settings",
		Usage:     "load delivery fees and VAT from a YAML file",
		ArgsUsage: "<file.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "validate the file without writing"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("seed-settings requires exactly one YAML file", 2)
			}
			file, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer file.Close()

			seed, err := parseSettingsSeed(file)
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				describeSeed(c.App.Writer, seed)
				return nil
			}

			return withConfigAndDatabase(c, logger, func(cfg config.Config, db *sqlx.DB) error {
				settings, err := services.NewSettingsService(services.SettingsServiceDeps{
					Repository: sqlstore.New(db).Settings(),
					Clock:      time.Now,
					Logger:     observability.ServiceLogger(logger, "settings"),
				})
				if err != nil {
					return err
				}
				if err := applySettingsSeed(c.Context, settings, seed); err != nil {
					return err
				}
				describeSeed(c.App.Writer, seed)
				return nil
			})
		},
	}
}

func describeSeed(w io.Writer, seed seedValues) {
	if seed.Fees != nil {
		fmt.Fprintf(w, "delivery fees: standard=%s express=%s\n", seed.Fees.Standard, seed.Fees.Express)
	}
	if seed.VAT != nil {
		fmt.Fprintf(w, "vat: enabled=%t rate=%s\n", seed.VAT.Enabled, seed.VAT.Rate)
	}
}
