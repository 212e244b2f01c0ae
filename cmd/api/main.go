package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/handlers"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/notify"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	pfirestore "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/firestore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/idempotency"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/jobs"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/requestctx"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/secrets"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	platformstorage "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/storage"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
	firestoreRepo "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/firestore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/redisstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/sqlstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	metrics := observability.NewCheckoutMetrics(nil, logger.Named("metrics"))

	db, err := sqldb.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()
	if cfg.Database.MigrateOnStart {
		if err := sqldb.Migrate(db); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	store := sqlstore.New(db)

	var firestoreProvider *pfirestore.Provider
	if usesFirestore(cfg) {
		firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
		defer func() {
			if err := firestoreProvider.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}()
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	stagedRepo, err := newStagedOrderRepository(cfg, store, redisClient, firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise staged order repository", zap.Error(err))
	}

	paymentManager, err := newPaymentManager(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}
	policy := payments.Policy{Minimum: cfg.Checkout.CardGatewayMinimum}

	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Repository: store.Settings(),
		Clock:      time.Now,
		Logger:     observability.ServiceLogger(logger, "settings"),
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	preparationService, err := services.NewPreparationService(services.PreparationServiceDeps{
		Staged:        stagedRepo,
		Settings:      settingsService,
		Policy:        policy,
		Currency:      cfg.Checkout.Currency,
		SupportedCity: cfg.Checkout.SupportedCity,
		TTL:           cfg.Checkout.StagedOrderTTL,
		Metrics:       metrics,
		Clock:         time.Now,
		IDGenerator:   func() string { return ulid.Make().String() },
		Logger:        observability.ServiceLogger(logger, "preparation"),
	})
	if err != nil {
		logger.Fatal("failed to initialise preparation service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Staged:  stagedRepo,
		Gateway: paymentManager,
		Policy:  policy,
		Clock:   time.Now,
		Logger:  observability.ServiceLogger(logger, "payments"),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	var storageClient *cloudstorage.Client
	var invoiceStore *platformstorage.InvoiceStore
	if bucket := strings.TrimSpace(cfg.Storage.InvoicesBucket); bucket != "" {
		storageClient, err = cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()
		invoiceStore, err = newInvoiceStore(ctx, cfg, storageClient, fetcher)
		if err != nil {
			logger.Fatal("failed to initialise invoice store", zap.Error(err))
		}
	} else {
		logger.Warn("invoice bucket not configured; invoices are attached to email only")
	}

	notificationService, err := newNotificationService(cfg, invoiceStore, metrics, logger)
	if err != nil {
		logger.Fatal("failed to initialise notification service", zap.Error(err))
	}

	var publisher services.OrderEventPublisher
	if topicName := strings.TrimSpace(cfg.Events.OrderTopic); topicName != "" && cfg.Events.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(topicName)
		topic.EnableMessageOrdering = true
		orderPublisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		defer orderPublisher.Stop()
		publisher = orderPublisher
	} else {
		logger.Info("order events disabled; no pubsub topic configured")
	}

	orderNumbers, err := services.NewCounterOrderNumbers(services.CounterOrderNumberDeps{
		Counters: store.Counters(),
		Prefix:   cfg.Checkout.OrderNumberPrefix,
	})
	if err != nil {
		logger.Fatal("failed to initialise order numbers", zap.Error(err))
	}

	confirmationService, err := services.NewConfirmationService(services.ConfirmationServiceDeps{
		Orders:              store.Orders(),
		Staged:              stagedRepo,
		Gateway:             paymentManager,
		OrderNumbers:        orderNumbers,
		Publisher:           publisher,
		Notifications:       notificationService,
		Currency:            cfg.Checkout.Currency,
		AfterConfirmTimeout: cfg.Checkout.NotificationTimeout,
		Metrics:             metrics,
		Clock:               time.Now,
		IDGenerator:         func() string { return ulid.Make().String() },
		Logger:              observability.ServiceLogger(logger, "confirmation"),
	})
	if err != nil {
		logger.Fatal("failed to initialise confirmation service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: store.Orders(),
		Clock:  time.Now,
		Logger: observability.ServiceLogger(logger, "orders"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	maintenanceService, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
		Staged: stagedRepo,
		Clock:  time.Now,
		Logger: observability.ServiceLogger(logger, "maintenance"),
	})
	if err != nil {
		logger.Fatal("failed to initialise maintenance service", zap.Error(err))
	}

	idempotencyStore, err := newIdempotencyStore(cfg, redisClient, firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(cfg.Idempotency.CleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	var verifier auth.TokenVerifier
	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Warn("firebase verifier unavailable; staff routes will reject requests", zap.Error(err))
	} else {
		verifier = firebaseVerifier
	}
	authenticator := auth.NewAuthenticator(verifier)
	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	healthRepo, err := newHealthRepository(db, redisClient, firestoreProvider, fetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	var invoiceLinker handlers.InvoiceLinker
	if invoiceStore != nil {
		invoiceLinker = invoiceStore
	}

	orderHandlers := handlers.NewOrderHandlers(handlers.OrderHandlersDeps{
		Preparation:  preparationService,
		Payments:     paymentService,
		Confirmation: confirmationService,
		Orders:       orderService,
		Authn:        authenticator,
		Idempotency:  idempotencyMiddleware,
	})
	settingsHandlers := handlers.NewSettingsHandlers(authenticator, settingsService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, orderService, invoiceLinker)
	webhookHandlers := handlers.NewWebhookHandlers(confirmationService)
	internalHandlers := handlers.NewInternalHandlers(maintenanceService)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if healthRepo != nil {
		healthOpts = append(healthOpts, handlers.WithHealthRepository(healthRepo))
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithAPIRoutes(orderHandlers.Routes, settingsHandlers.Routes, adminOrderHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("southplace checkout api listening",
			zap.String("version", buildInfo.Version),
			zap.String("card_minimum", cfg.Checkout.CardGatewayMinimum.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func usesFirestore(cfg config.Config) bool {
	return cfg.Checkout.StagingBackend == "firestore" || cfg.Idempotency.Backend == "firestore"
}

func newStagedOrderRepository(cfg config.Config, store *sqlstore.Store, client redis.UniversalClient, provider *pfirestore.Provider) (repositories.StagedOrderRepository, error) {
	switch cfg.Checkout.StagingBackend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis staging backend requires API_REDIS_ADDR")
		}
		return redisstore.NewStagedOrders(client, redisstore.WithClock(time.Now)), nil
	case "firestore":
		repo, err := firestoreRepo.NewStagedOrderRepository(provider, time.Now)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return store.StagedOrders(), nil
	}
}

func newIdempotencyStore(cfg config.Config, client redis.UniversalClient, provider *pfirestore.Provider) (idempotency.Store, error) {
	switch cfg.Idempotency.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis idempotency backend requires API_REDIS_ADDR")
		}
		return idempotency.NewRedisStore(client, "southplace:idem:"), nil
	case "firestore":
		return idempotency.NewFirestoreStore(provider, "idempotencyKeys"), nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func newPaymentManager(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	var providers []payments.Provider
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			Logger:        payments.ProviderLogger(observability.ServiceLogger(logger, "stripe")),
			Clock:         time.Now,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, stripeProvider)
	} else {
		logger.Warn("stripe api key not configured; card gateway disabled")
	}
	if strings.TrimSpace(cfg.PSP.PaystackSecretKey) != "" {
		paystackProvider, err := payments.NewPaystackProvider(payments.PaystackProviderConfig{
			SecretKey:   cfg.PSP.PaystackSecretKey,
			BaseURL:     cfg.PSP.PaystackBaseURL,
			CallbackURL: cfg.PSP.PaystackCallbackURL,
			Logger:      payments.ProviderLogger(observability.ServiceLogger(logger, "paystack")),
			Clock:       time.Now,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, paystackProvider)
	} else {
		logger.Warn("paystack secret key not configured; aggregator disabled")
	}
	return payments.NewManager(providers)
}

func newInvoiceStore(ctx context.Context, cfg config.Config, client *cloudstorage.Client, fetcher *secrets.Fetcher) (*platformstorage.InvoiceStore, error) {
	ref := strings.TrimSpace(cfg.Storage.SignerCredentialsFile)
	if ref == "" {
		return nil, errors.New("API_STORAGE_SIGNER_CREDENTIALS_FILE is required when an invoice bucket is configured")
	}
	var (
		signer *platformstorage.ServiceAccountSigner
		err    error
	)
	if strings.HasPrefix(ref, "secret://") || strings.HasPrefix(ref, "sm://") {
		signer, err = platformstorage.NewServiceAccountSignerFromSecret(ctx, fetcher, strings.Replace(ref, "sm://", "secret://", 1))
	} else {
		signer, err = platformstorage.NewServiceAccountSignerFromFile(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("load storage signer: %w", err)
	}
	urlSigner, err := platformstorage.NewURLSigner(signer)
	if err != nil {
		return nil, err
	}
	return platformstorage.NewInvoiceStore(client, urlSigner, platformstorage.InvoiceStoreConfig{
		Bucket:    cfg.Storage.InvoicesBucket,
		URLExpiry: cfg.Storage.InvoiceURLExpiry,
	})
}

func newNotificationService(cfg config.Config, invoices *platformstorage.InvoiceStore, metrics *observability.CheckoutMetrics, logger *zap.Logger) (services.NotificationService, error) {
	templates, err := notify.NewTemplates(notify.TemplateConfig{
		CompanyName:    cfg.Invoice.CompanyName,
		CompanyAddress: cfg.Invoice.CompanyAddress,
		CompanyEmail:   cfg.Invoice.CompanyEmail,
		FooterMarkdown: cfg.Mail.FooterMarkdown,
	})
	if err != nil {
		return nil, err
	}
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	if err != nil {
		return nil, err
	}
	sms := notify.NewTwilioSMS(notify.TwilioConfig{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		From:       cfg.SMS.From,
	})
	renderer := notify.NewRodRenderer(notify.RodRendererConfig{
		Enabled:    cfg.Invoice.Enabled,
		ControlURL: cfg.Invoice.BrowserURL,
		Timeout:    cfg.Invoice.RenderTimeout,
	})
	if !mailer.Configured() {
		logger.Warn("smtp not configured; email notifications disabled")
	}
	if !sms.Configured() {
		logger.Info("twilio not configured; admin sms disabled")
	}

	var invoiceStore services.InvoiceStore
	if invoices != nil {
		invoiceStore = invoices
	}
	return services.NewNotificationService(services.NotificationServiceDeps{
		Templates:   templates,
		Mailer:      mailer,
		SMS:         sms,
		Renderer:    renderer,
		Invoices:    invoiceStore,
		AdminEmails: cfg.Mail.AdminRecipients,
		AdminPhones: cfg.SMS.AdminNumbers,
		Timeout:     cfg.Checkout.NotificationTimeout,
		Metrics:     metrics,
		Logger:      observability.ServiceLogger(logger, "notifications"),
	})
}

func newHealthRepository(db *sqlx.DB, client redis.UniversalClient, provider *pfirestore.Provider, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 4)
	if db != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "database",
			Timeout:  time.Second,
			Critical: true,
			Check:    db.PingContext,
		})
	}
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	if provider != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				c, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				_, err = c.Collections(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.ResolveSecret(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(errors.Unwrap(err)); ok && st.Code() == codes.NotFound {
					return nil
				}
				if strings.Contains(err.Error(), "fallback value not found") {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithProject(project),
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve for the configured payment providers.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.TrimSpace(env["API_PSP_STRIPE_API_KEY"]) != "" {
		required = append(required, "PSP.StripeAPIKey", "PSP.StripeWebhookSecret")
	}
	if strings.TrimSpace(env["API_PSP_PAYSTACK_SECRET_KEY"]) != "" {
		required = append(required, "PSP.PaystackSecretKey")
	}
	if strings.TrimSpace(env["API_SMS_TWILIO_ACCOUNT_SID"]) != "" {
		required = append(required, "SMS.AuthToken")
	}
	sort.Strings(required)
	return required
}
