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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	Orders       OrdersConfig
	Payments     PaymentsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"YOUNIQLE_APP_ENV" required:"true"`
	Port         string `envconfig:"YOUNIQLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"YOUNIQLE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"YOUNIQLE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"YOUNIQLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"YOUNIQLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"YOUNIQLE_DB_DSN"`
	Driver string `envconfig:"YOUNIQLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"YOUNIQLE_DB_HOST"`
	LegacyPort     int    `envconfig:"YOUNIQLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"YOUNIQLE_DB_USER"`
	LegacyPassword string `envconfig:"YOUNIQLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"YOUNIQLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"YOUNIQLE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"YOUNIQLE_SQLITE_PATH" default:"file:youniqle.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"YOUNIQLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"YOUNIQLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"YOUNIQLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"YOUNIQLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"YOUNIQLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"YOUNIQLE_REDIS_ADDR"`
	Password     string        `envconfig:"YOUNIQLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"YOUNIQLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"YOUNIQLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"YOUNIQLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"YOUNIQLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"YOUNIQLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"YOUNIQLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"YOUNIQLE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"YOUNIQLE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"YOUNIQLE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"YOUNIQLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"YOUNIQLE_AUTO_MIGRATE" default:"false"`
}

// InventoryConfig tunes the stock ledger backend and its optimistic retry loop.
type InventoryConfig struct {
	Backend        string        `envconfig:"YOUNIQLE_INVENTORY_BACKEND" default:"gorm"`
	RetryAttempts  int           `envconfig:"YOUNIQLE_INVENTORY_RETRY_ATTEMPTS" default:"5"`
	RetryBaseDelay time.Duration `envconfig:"YOUNIQLE_INVENTORY_RETRY_BASE_DELAY" default:"10ms"`
}

func (i InventoryConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(i.Backend)) {
	case InventoryBackendGorm, InventoryBackendMemory:
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvInventoryBackend, InventoryBackendGorm, InventoryBackendMemory)
	}
	if i.RetryAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvInventoryRetryAttempts)
	}
	return nil
}

type OrdersConfig struct {
	PendingTTL     time.Duration `envconfig:"YOUNIQLE_ORDER_PENDING_TTL" default:"30m"`
	ExpiryInterval time.Duration `envconfig:"YOUNIQLE_ORDER_EXPIRY_INTERVAL" default:"5m"`
	ExpiryBatch    int           `envconfig:"YOUNIQLE_ORDER_EXPIRY_BATCH" default:"100"`
}

// PaymentsConfig holds the shared-secret gateway contract.
type PaymentsConfig struct {
	MerchantID     string        `envconfig:"YOUNIQLE_PAYMENTS_MERCHANT_ID" required:"true"`
	Secret         string        `envconfig:"YOUNIQLE_PAYMENTS_SECRET" required:"true"`
	GatewayURL     string        `envconfig:"YOUNIQLE_PAYMENTS_GATEWAY_URL" default:"https://pay.example.com/checkout"`
	ReturnURL      string        `envconfig:"YOUNIQLE_PAYMENTS_RETURN_URL"`
	MaxClockSkew   time.Duration `envconfig:"YOUNIQLE_PAYMENTS_MAX_CLOCK_SKEW" default:"15m"`
	CallbackTTL    time.Duration `envconfig:"YOUNIQLE_PAYMENTS_CALLBACK_IDEMPOTENCY_TTL" default:"720h"`
	SuccessResults []string      `envconfig:"YOUNIQLE_PAYMENTS_SUCCESS_CODES" default:"0000"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"YOUNIQLE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"YOUNIQLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"YOUNIQLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"YOUNIQLE_PUBSUB_DOMAIN_TOPIC" default:"youniqle-domain-events"`
	NotificationTopic        string `envconfig:"YOUNIQLE_PUBSUB_NOTIFICATION_TOPIC" default:"youniqle-notification-events"`
	NotificationSubscription string `envconfig:"YOUNIQLE_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"YOUNIQLE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"YOUNIQLE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"YOUNIQLE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RateLimitConfig bounds authenticated API traffic per caller. A zero limit
// disables the limiter.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"YOUNIQLE_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"YOUNIQLE_RATE_LIMIT_REQUESTS" default:"120"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"YOUNIQLE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
