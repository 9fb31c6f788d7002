package config

// Environment variable names, kept in one place so tests and deploy
// manifests reference the same strings.
const (
	EnvPrefix = "PHARMADATA"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "PHARMADATA_APP_ENV"
	EnvPort     = "PHARMADATA_APP_PORT"
	EnvLogLevel = "PHARMADATA_LOG_LEVEL"

	EnvDBDSN  = "PHARMADATA_DB_DSN"
	EnvDBHost = "PHARMADATA_DB_HOST"
	EnvDBPort = "PHARMADATA_DB_PORT"
	EnvDBUser = "PHARMADATA_DB_USER"
	EnvDBPass = "PHARMADATA_DB_PASSWORD"
	EnvDBName = "PHARMADATA_DB_NAME"

	EnvRedisURL = "PHARMADATA_REDIS_URL"

	EnvJWTSecret = "PHARMADATA_JWT_SECRET"
	EnvJWTIssuer = "PHARMADATA_JWT_ISSUER"

	EnvGCPProjectID = "PHARMADATA_GCP_PROJECT_ID"
	EnvGCSBucket    = "PHARMADATA_GCS_BUCKET_NAME"

	EnvStripeAPIKey        = "PHARMADATA_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "PHARMADATA_STRIPE_WEBHOOK_SECRET"

	EnvCheckoutSuccessURL = "PHARMADATA_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL  = "PHARMADATA_CHECKOUT_CANCEL_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
