package config

// EnvPrefix is handed to envconfig; every field carries its full name via tags.
const EnvPrefix = "PROCUREMENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PROCUREMENT_APP_ENV"
	EnvPort     = "PROCUREMENT_APP_PORT"
	EnvLogLevel = "PROCUREMENT_LOG_LEVEL"

	EnvDBDSN  = "PROCUREMENT_DB_DSN"
	EnvDBHost = "PROCUREMENT_DB_HOST"
	EnvDBUser = "PROCUREMENT_DB_USER"
	EnvDBName = "PROCUREMENT_DB_NAME"

	EnvRedisURL = "PROCUREMENT_REDIS_URL"

	EnvSettlementMaxAttempts = "PROCUREMENT_SETTLEMENT_MAX_ATTEMPTS"
	EnvCronInterval          = "PROCUREMENT_CRON_INTERVAL"
	EnvCORSAllowedOrigins    = "PROCUREMENT_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
