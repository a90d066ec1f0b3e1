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
	Booking      BookingConfig
	RateLimit    RateLimitConfig
	Sweeper      SweeperConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Square       SquareConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAARLY_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZAARLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZAARLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAARLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAARLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAARLY_DB_DSN"`
	Driver string `envconfig:"BAZAARLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAARLY_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAARLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAARLY_DB_USER"`
	LegacyPassword string `envconfig:"BAZAARLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAARLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAARLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAARLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAARLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAARLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAARLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAARLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZAARLY_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAARLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAARLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAARLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAARLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAARLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAARLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAARLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAARLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAARLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAZAARLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BookingConfig carries the reservation business knobs. The per-vendor hold
// limit and the hold TTL are deployment configuration, not fixed rules.
type BookingConfig struct {
	HoldTTL         time.Duration `envconfig:"BAZAARLY_BOOKING_HOLD_TTL" default:"10m"`
	VendorHoldLimit int           `envconfig:"BAZAARLY_BOOKING_VENDOR_HOLD_LIMIT" default:"1"`
}

type RateLimitConfig struct {
	BookingWindow time.Duration `envconfig:"BAZAARLY_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimit  int           `envconfig:"BAZAARLY_RATE_LIMIT_BOOKING_LIMIT" default:"30"`
}

type SweeperConfig struct {
	Interval time.Duration `envconfig:"BAZAARLY_SWEEPER_INTERVAL" default:"5s"`
	LockTTL  time.Duration `envconfig:"BAZAARLY_SWEEPER_LOCK_TTL" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAZAARLY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAZAARLY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BAZAARLY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BAZAARLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BAZAARLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	StallEventsTopic        string `envconfig:"BAZAARLY_PUBSUB_STALL_EVENTS_TOPIC" default:"bz-stall-events"`
	StallEventsSubscription string `envconfig:"BAZAARLY_PUBSUB_STALL_EVENTS_SUBSCRIPTION"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"BAZAARLY_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"BAZAARLY_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"BAZAARLY_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BAZAARLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BAZAARLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BAZAARLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
