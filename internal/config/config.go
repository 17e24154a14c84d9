package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "ZippyPay"
	defaultAppEnv          = "development"
	defaultLogLevel        = "info"
	defaultAPIBaseURL      = "https://zippy-vtu.onrender.com/api"
	defaultHTTPTimeout     = 30 * time.Second
	defaultMinFundAmount   = 100
	defaultSettleDelay     = 2 * time.Second
	defaultVerifyInterval  = 1 * time.Second
	defaultVerifyAttempts  = 8
	defaultStatePath       = ".zippy/state.enc"
	defaultStateSecret     = "zippy-dev-secret"
	minFundAmountEnvVar    = "MIN_FUND_AMOUNT"
	settleDelayEnvVar      = "SETTLE_DELAY"
	verifyIntervalEnvVar   = "VERIFY_INTERVAL"
	verifyAttemptsEnvVar   = "VERIFY_MAX_ATTEMPTS"
	httpTimeoutEnvVar      = "HTTP_TIMEOUT"
	defaultSandboxPort     = "8080"
	defaultWebhookDelay    = 3 * time.Second
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	webhookDelayEnvVar     = "WEBHOOK_DELAY"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
)

// Config captures client runtime configuration loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	LogLevel    string
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Secure store holding the session token, user profile and sealed
	// biometric credentials.
	StatePath   string
	StateSecret string

	// Funding reconciliation tuning.
	MinFundAmount     int64
	SettleDelay       time.Duration
	VerifyInterval    time.Duration
	VerifyMaxAttempts int
}

// Load reads client configuration values from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIBaseURL:        getEnv("API_BASE_URL", defaultAPIBaseURL),
		HTTPTimeout:       defaultHTTPTimeout,
		StatePath:         getEnv("STATE_PATH", defaultStatePath),
		StateSecret:       getEnv("STATE_SECRET", defaultStateSecret),
		MinFundAmount:     defaultMinFundAmount,
		SettleDelay:       defaultSettleDelay,
		VerifyInterval:    defaultVerifyInterval,
		VerifyMaxAttempts: defaultVerifyAttempts,
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv(httpTimeoutEnvVar, cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SettleDelay, err = durationEnv(settleDelayEnvVar, cfg.SettleDelay); err != nil {
		return Config{}, err
	}
	if cfg.VerifyInterval, err = durationEnv(verifyIntervalEnvVar, cfg.VerifyInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(minFundAmountEnvVar); v != "" {
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", minFundAmountEnvVar, err)
		}
		cfg.MinFundAmount = amount
	}

	if v := os.Getenv(verifyAttemptsEnvVar); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", verifyAttemptsEnvVar, err)
		}
		if attempts < 1 {
			return Config{}, fmt.Errorf("%s must be at least 1", verifyAttemptsEnvVar)
		}
		cfg.VerifyMaxAttempts = attempts
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("API_BASE_URL must be set")
	}

	return cfg, nil
}

// Sandbox captures runtime configuration for the sandbox backend server.
type Sandbox struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	PaystackKey    string
	WebhookDelay   time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// LoadSandbox reads sandbox server configuration from the environment.
// DATABASE_URL and REDIS_URL are optional; the sandbox falls back to
// in-memory storage and skips idempotency enforcement when unset.
func LoadSandbox() (Sandbox, error) {
	cfg := Sandbox{
		AppName:        getEnv("APP_NAME", defaultAppName+"Sandbox"),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultSandboxPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		PaystackKey:    getEnv("PAYSTACK_PUBLIC_KEY", "pk_test_sandbox"),
		WebhookDelay:   defaultWebhookDelay,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	var err error
	if cfg.WebhookDelay, err = durationEnv(webhookDelayEnvVar, cfg.WebhookDelay); err != nil {
		return Sandbox{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv(shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Sandbox{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Sandbox{}, err
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Sandbox) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
