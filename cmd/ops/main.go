// Command ops runs operational tasks against the checkout database: schema
// migrations, staged order purges and settings seeding.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/secrets"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := newApp(logger.Named("ops"))
	if err := app.Run(os.Args); err != nil {
		logger.Fatal("ops command failed", zap.Error(err))
	}
}

func newApp(logger *zap.Logger) *cli.App {
	return &cli.App{
		Name:  "ops",
		Usage: "operational tasks for the checkout api",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "optional dotenv file layered under the process environment",
				EnvVars: []string{"API_ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(logger),
			purgeCommand(logger),
			seedSettingsCommand(logger),
			checkoutCommand(logger),
		},
	}
}

// loadConfig resolves configuration the same way the api does so secret DSNs work unchanged.
func loadConfig(c *cli.Context, logger *zap.Logger) (config.Config, func(), error) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var envOpts []config.Option
	if path := strings.TrimSpace(c.String("env-file")); path != "" {
		envOpts = append(envOpts, config.WithEnvFile(path))
	}
	env, err := config.EnvironmentValues(envOpts...)
	if err != nil {
		return config.Config{}, nil, err
	}

	project := strings.TrimSpace(env["API_SECRET_DEFAULT_PROJECT_ID"])
	if project == "" {
		project = strings.TrimSpace(env["API_FIREBASE_PROJECT_ID"])
	}
	secretOpts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if fallback := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); fallback != "" {
		secretOpts = append(secretOpts, secrets.WithFallbackFile(fallback))
	}
	fetcher, err := secrets.NewFetcher(ctx, secretOpts...)
	if err != nil {
		return config.Config{}, nil, err
	}
	closeFn := func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}

	cfg, err := config.Load(ctx, append(envOpts, config.WithSecretResolver(fetcher))...)
	if err != nil {
		closeFn()
		return config.Config{}, nil, err
	}
	return cfg, closeFn, nil
}
