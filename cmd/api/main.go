package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmadata/pharmadata-backend/api/routes"
	"github.com/pharmadata/pharmadata-backend/internal/accounts"
	checkoutsvc "github.com/pharmadata/pharmadata-backend/internal/checkout"
	"github.com/pharmadata/pharmadata-backend/internal/files"
	"github.com/pharmadata/pharmadata-backend/internal/notifications"
	"github.com/pharmadata/pharmadata-backend/internal/plans"
	"github.com/pharmadata/pharmadata-backend/internal/products"
	"github.com/pharmadata/pharmadata-backend/internal/reports"
	"github.com/pharmadata/pharmadata-backend/internal/subscriptions"
	"github.com/pharmadata/pharmadata-backend/internal/support"
	"github.com/pharmadata/pharmadata-backend/internal/tokens"
	"github.com/pharmadata/pharmadata-backend/internal/usage"
	stripewebhook "github.com/pharmadata/pharmadata-backend/internal/webhooks/stripe"
	"github.com/pharmadata/pharmadata-backend/pkg/bigquery"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/mailer"
	"github.com/pharmadata/pharmadata-backend/pkg/metrics"
	"github.com/pharmadata/pharmadata-backend/pkg/migrate"
	"github.com/pharmadata/pharmadata-backend/pkg/redis"
	"github.com/pharmadata/pharmadata-backend/pkg/storage/gcs"
	"github.com/pharmadata/pharmadata-backend/pkg/stripe"
)

const (
	webhookGuardTTL   = 48 * time.Hour
	webhookGuardScope = "stripe-webhook"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs", err)
		}
	}()

	bigqueryClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap bigquery", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	mail, err := mailer.New(cfg.SMTP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap mailer", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	accountsRepo := accounts.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	plansRepo := plans.NewRepository(conn)
	checkoutRepo := checkoutsvc.NewRepository(conn)
	subscriptionsRepo := subscriptions.NewRepository(conn)
	tokensRepo := tokens.NewRepository(conn)
	usageRepo := usage.NewRepository(conn)
	filesRepo := files.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)
	supportRepo := support.NewRepository(conn)
	reportsRepo := reports.NewRepository(conn)

	accountsSvc, err := accounts.NewService(accountsRepo)
	requireService(ctx, logg, "accounts", err)

	productsSvc, err := products.NewService(productsRepo)
	requireService(ctx, logg, "products", err)

	plansSvc, err := plans.NewService(plansRepo)
	requireService(ctx, logg, "plans", err)

	notificationsSvc, err := notifications.NewService(notificationsRepo)
	requireService(ctx, logg, "notifications", err)

	checkoutSvc, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		SessionsRepo: checkoutRepo,
		PlansRepo:    plansRepo,
		ProductsRepo: productsRepo,
		AccountsRepo: accountsRepo,
		StripeClient: checkoutsvc.NewStripeClient(stripeClient),
		Config:       cfg.Checkout,
	})
	requireService(ctx, logg, "checkout", err)

	subscriptionsSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		SubscriptionsRepo: subscriptionsRepo,
		AccountsRepo:      accountsRepo,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
	})
	requireService(ctx, logg, "subscriptions", err)

	tokensSvc, err := tokens.NewService(tokensRepo, accountsRepo, dbClient)
	requireService(ctx, logg, "tokens", err)

	usageSvc, err := usage.NewService(usageRepo, subscriptionsRepo, dbClient, cfg.Quota)
	requireService(ctx, logg, "usage", err)

	filesSvc, err := files.NewService(files.ServiceParams{
		PurchasesRepo: filesRepo,
		SessionsRepo:  checkoutRepo,
		ProductsRepo:  productsRepo,
		Store:         gcsClient,
		Config:        cfg.GCS,
	})
	requireService(ctx, logg, "files", err)

	supportSvc, err := support.NewService(support.ServiceParams{
		TicketsRepo: supportRepo,
		Mailer:      mail,
		Notifier:    notificationsSvc,
		Config:      cfg.SMTP,
		Logger:      logg,
	})
	requireService(ctx, logg, "support", err)

	reportsSvc, err := reports.NewService(reports.ServiceParams{
		ReportsRepo: reportsRepo,
		Accounts:    accountsRepo,
		Notifier:    notificationsSvc,
		Logger:      logg,
	})
	requireService(ctx, logg, "reports", err)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		SessionsRepo:      checkoutRepo,
		PurchasesRepo:     filesRepo,
		SubscriptionsRepo: subscriptionsRepo,
		PlansRepo:         plansRepo,
		AccountsRepo:      accountsRepo,
		Notifier:          notificationsSvc,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	requireService(ctx, logg, "stripe webhook", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, webhookGuardScope)
	requireService(ctx, logg, "webhook idempotency guard", err)

	registry := prometheus.DefaultRegisterer
	httpMetrics := metrics.NewHTTPMetrics(registry)

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       dbClient,
		RedisClient:    redisClient,
		GCSPinger:      gcsClient,
		BigQueryPinger: bigqueryClient,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.Handler(),
		Accounts:       accountsSvc,
		Products:       productsSvc,
		Plans:          plansSvc,
		Checkout:       checkoutSvc,
		CheckoutRepo:   checkoutRepo,
		Subscriptions:  subscriptionsSvc,
		Tokens:         tokensSvc,
		Usage:          usageSvc,
		Files:          filesSvc,
		Notifications:  notificationsSvc,
		Support:        supportSvc,
		Reports:        reportsSvc,
		StripeClient:   stripeClient,
		WebhookSvc:     webhookSvc,
		WebhookGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(runCtx, "api server shut down gracefully")
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(ctx, "failed to create "+name+" service", err)
		os.Exit(1)
	}
}
