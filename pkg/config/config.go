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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	Gateway      GatewayConfig
	Fulfillment  FulfillmentConfig
	Dispatch     DispatchConfig
	Reconciler   ReconcilerConfig
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
	Env          string `envconfig:"PRINTFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"PRINTFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRINTFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PRINTFORGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTFORGE_DB_DSN"`
	Driver string `envconfig:"PRINTFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRINTFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"PRINTFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRINTFORGE_DB_USER"`
	LegacyPassword string `envconfig:"PRINTFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRINTFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRINTFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PricingConfig holds the fixed-rate tax and shipping policies applied at checkout.
type PricingConfig struct {
	TaxRateBps        int `envconfig:"PRINTFORGE_PRICING_TAX_RATE_BPS" default:"0"`
	ShippingFlatCents int `envconfig:"PRINTFORGE_PRICING_SHIPPING_FLAT_CENTS" default:"0"`
}

type GatewayConfig struct {
	SecretKey     string        `envconfig:"PRINTFORGE_GATEWAY_SECRET_KEY"`
	WebhookSecret string        `envconfig:"PRINTFORGE_GATEWAY_WEBHOOK_SECRET"`
	Env           string        `envconfig:"PRINTFORGE_GATEWAY_ENV" default:"test"`
	ChargeTimeout time.Duration `envconfig:"PRINTFORGE_GATEWAY_CHARGE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized gateway environment (test/live).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FulfillmentConfig struct {
	Endpoint       string        `envconfig:"PRINTFORGE_FULFILLMENT_ENDPOINT"`
	Secret         string        `envconfig:"PRINTFORGE_FULFILLMENT_SECRET"`
	RequestTimeout time.Duration `envconfig:"PRINTFORGE_FULFILLMENT_REQUEST_TIMEOUT" default:"10s"`
}

type DispatchConfig struct {
	BatchSize      int           `envconfig:"PRINTFORGE_DISPATCH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PRINTFORGE_DISPATCH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PRINTFORGE_DISPATCH_MAX_ATTEMPTS" default:"5"`
	BaseBackoff    time.Duration `envconfig:"PRINTFORGE_DISPATCH_BASE_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"PRINTFORGE_DISPATCH_MAX_BACKOFF" default:"1m"`
}

type ReconcilerConfig struct {
	PendingRetryInterval time.Duration `envconfig:"PRINTFORGE_RECONCILER_PENDING_RETRY_INTERVAL" default:"30s"`
	OrphanAge            time.Duration `envconfig:"PRINTFORGE_RECONCILER_ORPHAN_AGE" default:"24h"`
	IdempotencyTTL       time.Duration `envconfig:"PRINTFORGE_RECONCILER_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PRINTFORGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PRINTFORGE_AUTO_MIGRATE" default:"false"`
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
