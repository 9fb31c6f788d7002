package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadata/pharmadata-backend/api/controllers"
	webhookcontrollers "github.com/pharmadata/pharmadata-backend/api/controllers/webhooks"
	"github.com/pharmadata/pharmadata-backend/api/middleware"
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
	"github.com/pharmadata/pharmadata-backend/pkg/metrics"
	"github.com/pharmadata/pharmadata-backend/pkg/redis"
	"github.com/pharmadata/pharmadata-backend/pkg/storage/gcs"
	"github.com/pharmadata/pharmadata-backend/pkg/stripe"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger       db.Pinger
	RedisClient    *redis.Client
	GCSPinger      gcs.Pinger
	BigQueryPinger bigquery.Pinger

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Accounts      accounts.Service
	Products      products.Service
	Plans         plans.Service
	Checkout      checkoutsvc.Service
	CheckoutRepo  *checkoutsvc.Repository
	Subscriptions subscriptions.Service
	Tokens        tokens.Service
	Usage         usage.Service
	Files         *files.Service
	Notifications notifications.Service
	Support       *support.Service
	Reports       *reports.Service

	StripeClient *stripe.Client
	WebhookSvc   *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard
}

// NewRouter assembles the full HTTP surface.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	// A nil *redis.Client must stay a nil interface so the limiter's
	// fail-open check works.
	var limiter redis.RateLimiter
	var redisPinger redis.Pinger
	if d.RedisClient != nil {
		limiter = d.RedisClient
		redisPinger = d.RedisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(d.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DBPinger, redisPinger, d.GCSPinger, d.BigQueryPinger))
	})

	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeClient, d.WebhookSvc, d.WebhookGuard, logg))
	})

	// Public surface. The IP limit covers every public route; the product
	// routes are additionally token-authenticated and metered.
	r.Route("/public/v1", func(r chi.Router) {
		r.Use(middleware.IPRateLimit(cfg.RateLimit, limiter, logg))
		r.Get("/sitemap/slugs", controllers.PublicSitemapSlugs(d.Products, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(d.Tokens, d.Accounts, logg))
			// Checking the allowance must not consume it, so this route
			// sits outside the metering group.
			r.Get("/usage/remaining", controllers.UsageRemaining(d.Usage, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.Metering(d.Usage, logg))
				r.Get("/products", controllers.PublicProductSearch(d.Products, logg))
				r.Get("/products/cip/{cip}", controllers.PublicProductByCIP(d.Products, logg))
			})
		})
	})

	// Dashboard surface behind the identity JWT.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, d.Accounts, logg))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/me", controllers.AccountMe())
			r.Patch("/me", controllers.AccountUpdate(d.Accounts, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductSearch(d.Products, logg))
			r.Get("/{productID}", controllers.ProductGet(d.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Post("/", controllers.ProductCreate(d.Products, logg))
				r.Patch("/{productID}", controllers.ProductUpdate(d.Products, logg))
				r.Put("/{productID}/publish", controllers.ProductPublish(d.Products, logg))
				r.Delete("/{productID}", controllers.ProductDelete(d.Products, logg))
			})
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.PlanList(d.Plans, logg))
			r.Get("/{planID}", controllers.PlanGet(d.Plans, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/subscription", controllers.CheckoutSubscription(d.Checkout, logg))
			r.Post("/products", controllers.CheckoutProducts(d.Checkout, logg))
			r.Get("/sessions", controllers.CheckoutSessionList(d.CheckoutRepo, logg))
			r.Get("/sessions/{sessionID}", controllers.CheckoutSessionGet(d.Checkout, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/active", controllers.SubscriptionActive(d.Subscriptions, logg))
			r.Get("/", controllers.SubscriptionHistory(d.Subscriptions, logg))
			r.Post("/cancel", controllers.SubscriptionCancel(d.Subscriptions, logg))
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", controllers.TokenIssue(d.Tokens, logg))
			r.Delete("/", controllers.TokenRevoke(d.Tokens, logg))
			r.Get("/", controllers.TokenHistory(d.Tokens, logg))
		})

		r.Route("/usage", func(r chi.Router) {
			r.Get("/remaining", controllers.UsageRemaining(d.Usage, logg))
			r.Get("/summary", controllers.UsageSummary(d.Usage, logg))
			r.Get("/latency", controllers.UsageLatency(d.Usage, logg))
			r.Get("/endpoints", controllers.UsageEndpoints(d.Usage, logg))
			r.Get("/daily", controllers.UsageDaily(d.Usage, logg))
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/sessions/{sessionID}/generate", controllers.FilesGenerate(d.Files, logg))
			r.Get("/history", controllers.FilesHistory(d.Files, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(d.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(d.Notifications, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(d.Notifications, logg))
			r.Delete("/{notificationID}", controllers.NotificationDelete(d.Notifications, logg))
		})

		r.Route("/support/tickets", func(r chi.Router) {
			r.Post("/", controllers.SupportTicketCreate(d.Support, logg))
			r.Get("/", controllers.SupportTicketList(d.Support, logg))
			r.Get("/{ticketID}", controllers.SupportTicketGet(d.Support, logg))
			r.With(middleware.RequireAdmin(logg)).Put("/{ticketID}/status", controllers.SupportTicketUpdateStatus(d.Support, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", controllers.ErrorReportCreate(d.Reports, logg))
			r.Get("/", controllers.ErrorReportList(d.Reports, logg))
			r.Get("/{reportID}", controllers.ErrorReportGet(d.Reports, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Get("/admin", controllers.ErrorReportAdminList(d.Reports, logg))
				r.Put("/{reportID}/status", controllers.ErrorReportUpdateStatus(d.Reports, logg))
			})
		})
	})

	return r
}
