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
	Checkout     CheckoutConfig
	Stripe       StripeConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.App.validateOrigin(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MARKET_APP_ENV" required:"true"`
	Port         string   `envconfig:"MARKET_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"MARKET_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"MARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"MARKET_LOG_WARN_STACK" default:"false"`
	SiteOrigin   string   `envconfig:"MARKET_SITE_ORIGIN" required:"true"`
	CORSOrigins  []string `envconfig:"MARKET_CORS_ALLOWED_ORIGINS"`
	MetricsPort  string   `envconfig:"MARKET_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Origin returns the site origin without a trailing slash.
func (a AppConfig) Origin() string {
	return strings.TrimRight(strings.TrimSpace(a.SiteOrigin), "/")
}

// AllowedOrigins lists the browser origins accepted by the API. The site
// origin is always included; dev additionally allows the local frontend.
func (a AppConfig) AllowedOrigins() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			return
		}
		if _, ok := seen[origin]; ok {
			return
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	add(a.Origin())
	for _, origin := range a.CORSOrigins {
		add(origin)
	}
	if a.IsDev() {
		add(localDevOrigin)
	}
	return out
}

func (a AppConfig) validateOrigin() error {
	u, err := url.Parse(a.Origin())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvSiteOrigin, a.SiteOrigin)
	}
	return nil
}

type DBConfig struct {
	DSN    string `envconfig:"MARKET_DB_DSN"`
	Driver string `envconfig:"MARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MARKET_DB_HOST"`
	Port     int    `envconfig:"MARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"MARKET_DB_USER"`
	Password string `envconfig:"MARKET_DB_PASSWORD"`
	Name     string `envconfig:"MARKET_DB_NAME"`
	SSLMode  string `envconfig:"MARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MARKET_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKET_REDIS_URL"`
	Address      string        `envconfig:"MARKET_REDIS_ADDR"`
	Password     string        `envconfig:"MARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
	TLS          bool          `envconfig:"MARKET_REDIS_TLS" default:"false"`
	KeyPrefix    string        `envconfig:"MARKET_REDIS_KEY_PREFIX" default:"mkt"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig holds the marketplace settlement rules.
type CheckoutConfig struct {
	Currency         string        `envconfig:"MARKET_CHECKOUT_CURRENCY" default:"PLN"`
	DefaultLocale    string        `envconfig:"MARKET_CHECKOUT_DEFAULT_LOCALE" default:"pl"`
	SupportedLocales []string      `envconfig:"MARKET_CHECKOUT_LOCALES" default:"pl,en"`
	IdempotencyTTL   time.Duration `envconfig:"MARKET_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// SettlementCurrency is the upper-cased ISO code.
func (c CheckoutConfig) SettlementCurrency() string {
	return strings.ToUpper(strings.TrimSpace(c.Currency))
}

func (c CheckoutConfig) validate() error {
	if len(c.SettlementCurrency()) != 3 {
		return fmt.Errorf("%s must be a 3 letter currency code, got %q", EnvCheckoutCurrency, c.Currency)
	}
	for _, locale := range c.SupportedLocales {
		if strings.EqualFold(strings.TrimSpace(locale), c.DefaultLocale) {
			return nil
		}
	}
	return fmt.Errorf("%s %q is not listed in %s", EnvCheckoutDefaultLocale, c.DefaultLocale, EnvCheckoutLocales)
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"MARKET_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"MARKET_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"MARKET_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"MARKET_PUBSUB_ORDERS_TOPIC" default:"market-order-events"`
	OrdersSubscription string `envconfig:"MARKET_PUBSUB_ORDERS_SUBSCRIPTION"`
	MessageOrdering    bool   `envconfig:"MARKET_PUBSUB_MESSAGE_ORDERING" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"MARKET_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"MARKET_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"MARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dsnPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
