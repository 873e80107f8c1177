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
	Paystack     PaystackConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	cfg.Paystack.normalize()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AURELIA_APP_ENV" required:"true"`
	Port         string `envconfig:"AURELIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AURELIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AURELIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"AURELIA_DB_DSN"`
	Driver string `envconfig:"AURELIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AURELIA_DB_HOST"`
	LegacyPort     int    `envconfig:"AURELIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AURELIA_DB_USER"`
	LegacyPassword string `envconfig:"AURELIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AURELIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AURELIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AURELIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURELIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURELIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURELIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AURELIA_REDIS_URL"`
	Address      string        `envconfig:"AURELIA_REDIS_ADDR"`
	Password     string        `envconfig:"AURELIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURELIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURELIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURELIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURELIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURELIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AURELIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// PaystackConfig drives webhook authentication and reconciliation.
type PaystackConfig struct {
	SecretKey       string        `envconfig:"AURELIA_PAYSTACK_SECRET_KEY"`
	AllowedIPs      []string      `envconfig:"AURELIA_PAYSTACK_ALLOWED_IPS"`
	ResolveAttempts int           `envconfig:"AURELIA_PAYSTACK_RESOLVE_ATTEMPTS" default:"2"`
	ResolveDelay    time.Duration `envconfig:"AURELIA_PAYSTACK_RESOLVE_DELAY" default:"2s"`
	IdempotencyTTL  time.Duration `envconfig:"AURELIA_PAYSTACK_IDEMPOTENCY_TTL" default:"72h"`
}

func (p *PaystackConfig) normalize() {
	ips := make([]string, 0, len(p.AllowedIPs))
	for _, ip := range p.AllowedIPs {
		if trimmed := strings.TrimSpace(ip); trimmed != "" {
			ips = append(ips, trimmed)
		}
	}
	if len(ips) == 0 {
		ips = append(ips, DefaultPaystackIPs...)
	}
	p.AllowedIPs = ips
	if p.ResolveAttempts < 1 {
		p.ResolveAttempts = 1
	}
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AURELIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AURELIA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AURELIA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"AURELIA_PUBSUB_PAYMENTS_TOPIC" default:"aurelia-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AURELIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AURELIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AURELIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr exposes the publisher's /metrics when set, e.g. ":9102".
	MetricsAddr string `envconfig:"AURELIA_OUTBOX_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = "sqlite"
		db.DSN = "file:aurelia.db?cache=shared"
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
