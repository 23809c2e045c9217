package config

const (
	EnvPrefix = "MARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultCheckoutCurrency = "PLN"
	DefaultCheckoutLocale   = "pl"

	localDevOrigin = "http://localhost:3000"
)

const (
	EnvAppEnv     = "MARKET_APP_ENV"
	EnvPort       = "MARKET_APP_PORT"
	EnvSiteOrigin = "MARKET_SITE_ORIGIN"

	EnvDBDSN  = "MARKET_DB_DSN"
	EnvDBHost = "MARKET_DB_HOST"
	EnvDBUser = "MARKET_DB_USER"
	EnvDBName = "MARKET_DB_NAME"

	EnvRedisURL = "MARKET_REDIS_URL"

	EnvJWTSecret = "MARKET_JWT_SECRET"
	EnvJWTIssuer = "MARKET_JWT_ISSUER"

	EnvCheckoutCurrency      = "MARKET_CHECKOUT_CURRENCY"
	EnvCheckoutDefaultLocale = "MARKET_CHECKOUT_DEFAULT_LOCALE"
	EnvCheckoutLocales       = "MARKET_CHECKOUT_LOCALES"

	EnvStripeAPIKey        = "MARKET_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "MARKET_STRIPE_WEBHOOK_SECRET"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
