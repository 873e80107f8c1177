package config

// EnvPrefix is passed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"
)

const (
	EnvAppEnv       = "AURELIA_APP_ENV"
	EnvPort         = "AURELIA_APP_PORT"
	EnvLogLevel     = "AURELIA_LOG_LEVEL"
	EnvLogWarnStack = "AURELIA_LOG_WARN_STACK"

	EnvDBDSN      = "AURELIA_DB_DSN"
	EnvDBDriver   = "AURELIA_DB_DRIVER"
	EnvDBHost     = "AURELIA_DB_HOST"
	EnvDBPort     = "AURELIA_DB_PORT"
	EnvDBUser     = "AURELIA_DB_USER"
	EnvDBPassword = "AURELIA_DB_PASSWORD"
	EnvDBName     = "AURELIA_DB_NAME"
	EnvDBSSLMode  = "AURELIA_DB_SSLMODE"

	EnvRedisURL  = "AURELIA_REDIS_URL"
	EnvRedisAddr = "AURELIA_REDIS_ADDR"

	EnvPaystackSecretKey       = "AURELIA_PAYSTACK_SECRET_KEY"
	EnvPaystackAllowedIPs      = "AURELIA_PAYSTACK_ALLOWED_IPS"
	EnvPaystackResolveAttempts = "AURELIA_PAYSTACK_RESOLVE_ATTEMPTS"
	EnvPaystackResolveDelay    = "AURELIA_PAYSTACK_RESOLVE_DELAY"
	EnvPaystackIdempotencyTTL  = "AURELIA_PAYSTACK_IDEMPOTENCY_TTL"

	EnvFeatureUseSQLite   = "AURELIA_USE_SQLITE"
	EnvFeatureAutoMigrate = "AURELIA_AUTO_MIGRATE"

	EnvGCPProjectID        = "AURELIA_GCP_PROJECT_ID"
	EnvPubSubPaymentsTopic = "AURELIA_PUBSUB_PAYMENTS_TOPIC"

	EnvOutboxBatchSize      = "AURELIA_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollIntervalMS = "AURELIA_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts    = "AURELIA_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxMetricsAddr    = "AURELIA_OUTBOX_METRICS_ADDR"
)

// DefaultPaystackIPs are the published Paystack webhook egress addresses.
var DefaultPaystackIPs = []string{
	"52.31.139.75",
	"52.49.173.169",
	"52.214.14.220",
}

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
