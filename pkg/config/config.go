package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Quota        QuotaConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	SMTP         SMTPConfig
	BigQuery     BigQueryConfig
	Archiver     ArchiverConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PHARMADATA_APP_ENV" required:"true"`
	Port         string `envconfig:"PHARMADATA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PHARMADATA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PHARMADATA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PHARMADATA_DB_DSN"`
	Driver string `envconfig:"PHARMADATA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PHARMADATA_DB_HOST"`
	LegacyPort     int    `envconfig:"PHARMADATA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PHARMADATA_DB_USER"`
	LegacyPassword string `envconfig:"PHARMADATA_DB_PASSWORD"`
	LegacyName     string `envconfig:"PHARMADATA_DB_NAME"`
	LegacySSLMode  string `envconfig:"PHARMADATA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PHARMADATA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHARMADATA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHARMADATA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHARMADATA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PHARMADATA_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"PHARMADATA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHARMADATA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHARMADATA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHARMADATA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHARMADATA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers verification of identity tokens minted by the
// platform identity service. This service never mints tokens itself.
type JWTConfig struct {
	Secret string `envconfig:"PHARMADATA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PHARMADATA_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	PublicWindow  time.Duration `envconfig:"PHARMADATA_RATE_LIMIT_PUBLIC_WINDOW" default:"1h"`
	PublicIPLimit int           `envconfig:"PHARMADATA_RATE_LIMIT_PUBLIC_IP_LIMIT" default:"20"`
}

type QuotaConfig struct {
	FreeTierPlanName string `envconfig:"PHARMADATA_QUOTA_FREE_PLAN_NAME" default:"Gratuit"`
	FreeTierLimit    int64  `envconfig:"PHARMADATA_QUOTA_FREE_LIMIT" default:"100"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PHARMADATA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PHARMADATA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PHARMADATA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"PHARMADATA_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"PHARMADATA_GCS_DOWNLOAD_URL_EXPIRY" default:"24h"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"PHARMADATA_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"PHARMADATA_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"PHARMADATA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	SuccessURL     string `envconfig:"PHARMADATA_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL      string `envconfig:"PHARMADATA_CHECKOUT_CANCEL_URL" required:"true"`
	UnitPriceCents int64  `envconfig:"PHARMADATA_CHECKOUT_UNIT_PRICE_CENTS" default:"70"`
	Currency       string `envconfig:"PHARMADATA_CHECKOUT_CURRENCY" default:"eur"`
}

type SMTPConfig struct {
	Host         string `envconfig:"PHARMADATA_SMTP_HOST"`
	Port         int    `envconfig:"PHARMADATA_SMTP_PORT" default:"587"`
	Username     string `envconfig:"PHARMADATA_SMTP_USERNAME"`
	Password     string `envconfig:"PHARMADATA_SMTP_PASSWORD"`
	FromAddress  string `envconfig:"PHARMADATA_SMTP_FROM"`
	SupportInbox string `envconfig:"PHARMADATA_SMTP_SUPPORT_INBOX"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.FromAddress != ""
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"PHARMADATA_BIGQUERY_DATASET" default:"pharmadata"`
	UsageEventsTable string `envconfig:"PHARMADATA_BIGQUERY_USAGE_TABLE" default:"usage_events"`
}

type ArchiverConfig struct {
	BatchSize    int           `envconfig:"PHARMADATA_ARCHIVER_BATCH_SIZE" default:"200"`
	PollInterval time.Duration `envconfig:"PHARMADATA_ARCHIVER_POLL_INTERVAL" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PHARMADATA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PHARMADATA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
