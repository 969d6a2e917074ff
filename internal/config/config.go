package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "PesaBit"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultFiatCurrency   = "KES"
	defaultStaticRate     = 10_000_000 // KES per BTC, used by the static swap provider
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Config captures application runtime configuration loaded from
// environment variables. DatabaseURL and RedisURL are optional in
// development: the server falls back to the in-memory store and skips
// response-level idempotency.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	FiatCurrency    string
	StaticSwapRate  float64
	CallbackBaseURL string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
}

// Load reads configuration values from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		FiatCurrency:    getEnv("FIAT_CURRENCY", defaultFiatCurrency),
		StaticSwapRate:  defaultStaticRate,
		CallbackBaseURL: os.Getenv("LNURL_CALLBACK_BASE_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
	}

	if v := os.Getenv("STATIC_SWAP_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid STATIC_SWAP_RATE: %q", v)
		}
		cfg.StaticSwapRate = rate
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.Production() && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set in production")
	}

	return cfg, nil
}

// Production reports whether the app runs in the production environment.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
