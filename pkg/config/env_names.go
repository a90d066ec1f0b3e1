package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for variables without a tag.
const EnvPrefix = "BAZAARLY"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared between Load and the tests.
const (
	EnvAppEnv   = "BAZAARLY_APP_ENV"
	EnvPort     = "BAZAARLY_APP_PORT"
	EnvDBDSN    = "BAZAARLY_DB_DSN"
	EnvDBHost   = "BAZAARLY_DB_HOST"
	EnvDBUser   = "BAZAARLY_DB_USER"
	EnvDBName   = "BAZAARLY_DB_NAME"
	EnvRedisURL = "BAZAARLY_REDIS_URL"

	EnvJWTSecret = "BAZAARLY_JWT_SECRET"
	EnvJWTIssuer = "BAZAARLY_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
