package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "AguraMarket"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultPaypackBaseURL  = "https://payments.paypack.rw/api"
	defaultPaypackEnv      = "production"
	defaultPaypackTimeout  = 30 * time.Second
	defaultPurchaseLockTTL = 2 * time.Minute
	defaultPurchaseLimit   = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	JWTSecret      string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	Paypack  PaypackConfig
	Purchase PurchaseConfig
}

// PaypackConfig holds the merchant credential pair and provider settings.
type PaypackConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Environment is sent as the webhook mode on transfers: "production" moves real money.
	Environment string
	Timeout     time.Duration
	// AdminRoutes exposes withdraw/transactions/events/account. Off unless explicitly enabled.
	AdminRoutes bool
}

// PurchaseConfig tunes purchase throttling and the per-product lock.
type PurchaseConfig struct {
	LockTTL       time.Duration
	RatePerMinute int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		NATSURL:        os.Getenv("NATS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Paypack: PaypackConfig{
			BaseURL:      getEnv("PAYPACK_BASE_URL", defaultPaypackBaseURL),
			ClientID:     os.Getenv("PAYPACK_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPACK_CLIENT_SECRET"),
			Environment:  strings.ToLower(getEnv("PAYPACK_ENVIRONMENT", defaultPaypackEnv)),
			Timeout:      defaultPaypackTimeout,
		},
		Purchase: PurchaseConfig{
			LockTTL:       defaultPurchaseLockTTL,
			RatePerMinute: defaultPurchaseLimit,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Paypack.Timeout, err = durationFromEnv("PAYPACK_TIMEOUT_SECONDS", "PAYPACK_TIMEOUT", cfg.Paypack.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Purchase.LockTTL, err = durationFromEnv("PURCHASE_LOCK_TTL_SECONDS", "PURCHASE_LOCK_TTL", cfg.Purchase.LockTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("PAYPACK_ADMIN_ROUTES"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PAYPACK_ADMIN_ROUTES: %w", err)
		}
		cfg.Paypack.AdminRoutes = enabled
	}

	if v := os.Getenv("PURCHASE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PURCHASE_RATE_LIMIT: %w", err)
		}
		cfg.Purchase.RatePerMinute = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the settings every deployment needs. Development may run
// without Postgres, Redis or Paypack credentials.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	switch c.Paypack.Environment {
	case "production", "development":
	default:
		return fmt.Errorf("PAYPACK_ENVIRONMENT must be production or development, got %q", c.Paypack.Environment)
	}
	// The lock must outlive a full provider call or a second payer could slip in.
	if c.Purchase.LockTTL <= c.Paypack.Timeout {
		return fmt.Errorf("PURCHASE_LOCK_TTL (%s) must exceed PAYPACK_TIMEOUT (%s)", c.Purchase.LockTTL, c.Paypack.Timeout)
	}

	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.Paypack.ClientID == "" || c.Paypack.ClientSecret == "" {
		return fmt.Errorf("PAYPACK_CLIENT_ID and PAYPACK_CLIENT_SECRET must be set")
	}
	return nil
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
