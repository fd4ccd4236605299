package config

const EnvPrefix = "YOUNIQLE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	InventoryBackendGorm   = "gorm"
	InventoryBackendMemory = "memory"
)

// Environment variable names, exported for tests and tooling.
const (
	EnvAppEnv   = "YOUNIQLE_APP_ENV"
	EnvPort     = "YOUNIQLE_APP_PORT"
	EnvLogLevel = "YOUNIQLE_LOG_LEVEL"

	EnvDBDSN  = "YOUNIQLE_DB_DSN"
	EnvDBHost = "YOUNIQLE_DB_HOST"
	EnvDBUser = "YOUNIQLE_DB_USER"
	EnvDBName = "YOUNIQLE_DB_NAME"

	EnvRedisURL = "YOUNIQLE_REDIS_URL"

	EnvJWTSecret = "YOUNIQLE_JWT_SECRET"
	EnvJWTIssuer = "YOUNIQLE_JWT_ISSUER"

	EnvUseSQLite = "YOUNIQLE_USE_SQLITE"

	EnvInventoryBackend       = "YOUNIQLE_INVENTORY_BACKEND"
	EnvInventoryRetryAttempts = "YOUNIQLE_INVENTORY_RETRY_ATTEMPTS"

	EnvOrderPendingTTL = "YOUNIQLE_ORDER_PENDING_TTL"

	EnvPaymentsMerchantID   = "YOUNIQLE_PAYMENTS_MERCHANT_ID"
	EnvPaymentsSecret       = "YOUNIQLE_PAYMENTS_SECRET"
	EnvPaymentsSuccessCodes = "YOUNIQLE_PAYMENTS_SUCCESS_CODES"

	EnvPubSubDomainTopic = "YOUNIQLE_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
