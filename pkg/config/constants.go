package config

// EnvPrefix namespaces every environment variable consumed by the platform.
const EnvPrefix = "PRINTFORGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical env var names, used by tests and operational tooling.
const (
	EnvAppEnv   = "PRINTFORGE_APP_ENV"
	EnvPort     = "PRINTFORGE_APP_PORT"
	EnvDBDSN    = "PRINTFORGE_DB_DSN"
	EnvDBHost   = "PRINTFORGE_DB_HOST"
	EnvDBUser   = "PRINTFORGE_DB_USER"
	EnvDBName   = "PRINTFORGE_DB_NAME"
	EnvRedisURL = "PRINTFORGE_REDIS_URL"

	EnvGatewaySecretKey     = "PRINTFORGE_GATEWAY_SECRET_KEY"
	EnvGatewayWebhookSecret = "PRINTFORGE_GATEWAY_WEBHOOK_SECRET"
	EnvFulfillmentEndpoint  = "PRINTFORGE_FULFILLMENT_ENDPOINT"
	EnvFulfillmentSecret    = "PRINTFORGE_FULFILLMENT_SECRET"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
