package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Shake-Out API base URLs used when SHAKEOUT_BASE_URL is not set.
const (
	ProductionBaseURL = "https://dash.shake-out.com/api/public/vendor"
	SandboxBaseURL    = "https://sandbox.dash.shake-out.com/api/public/vendor"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	Gateway Gateway

	SiteRootURL        string
	WebhookBaseURL     string
	FulfillmentURL     string
	CORSAllowedOrigins []string

	WebhookReplayTTL   time.Duration
	InitiateRateWindow time.Duration
	InitiateRateMax    int
	DeliveryQueue      string
	DeliveryMaxRetry   int
}

// Gateway carries the Shake-Out credentials and redirect targets. It is passed
// explicitly into every component that talks to the provider; there is no
// process-wide mutable gateway state.
type Gateway struct {
	APIKey                string
	SecretKey             string
	Sandbox               bool
	BaseURL               string
	SuccessURL            string
	FailURL               string
	PendingURL            string
	SupportedCurrencies   []string
	SurchargePercent      decimal.Decimal
	AllowUnsignedWebhooks bool
}

// Configured reports whether the gateway credentials are usable.
func (g Gateway) Configured() bool {
	return strings.TrimSpace(g.APIKey) != "" && strings.TrimSpace(g.SecretKey) != ""
}

// SupportsCurrency checks the currency against the configured allow-list.
func (g Gateway) SupportsCurrency(currency string) bool {
	needle := strings.ToUpper(strings.TrimSpace(currency))
	for _, c := range g.SupportedCurrencies {
		if strings.ToUpper(c) == needle {
			return true
		}
	}
	return false
}

// APIBaseURL returns the effective provider base URL honouring the sandbox flag.
func (g Gateway) APIBaseURL() string {
	if strings.TrimSpace(g.BaseURL) != "" {
		return strings.TrimRight(g.BaseURL, "/")
	}
	if g.Sandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),
		Gateway: Gateway{
			APIKey:                k.String("SHAKEOUT_API_KEY"),
			SecretKey:             k.String("SHAKEOUT_SECRET_KEY"),
			Sandbox:               parseBool(k.String("SHAKEOUT_SANDBOX")),
			BaseURL:               strings.TrimSpace(k.String("SHAKEOUT_BASE_URL")),
			SuccessURL:            strings.TrimSpace(k.String("SHAKEOUT_SUCCESS_URL")),
			FailURL:               strings.TrimSpace(k.String("SHAKEOUT_FAIL_URL")),
			PendingURL:            strings.TrimSpace(k.String("SHAKEOUT_PENDING_URL")),
			SupportedCurrencies:   splitAndTrim(valueOrDefault(k.String("SHAKEOUT_CURRENCIES"), "EGP,USD,EUR,GBP")),
			SurchargePercent:      parseDecimal(k.String("SHAKEOUT_SURCHARGE_PERCENT"), "0"),
			AllowUnsignedWebhooks: parseBool(k.String("SHAKEOUT_ALLOW_UNSIGNED_WEBHOOKS")),
		},
		SiteRootURL:        strings.TrimSpace(k.String("SITE_ROOT_URL")),
		WebhookBaseURL:     strings.TrimSpace(k.String("WEBHOOK_BASE_URL")),
		FulfillmentURL:     strings.TrimSpace(k.String("HOST_FULFILLMENT_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		InitiateRateWindow: parseDuration(k.String("INITIATE_RATE_WINDOW"), "1m"),
		InitiateRateMax:    parseInt(k.String("INITIATE_RATE_MAX"), 30),
		DeliveryQueue:      valueOrDefault(k.String("DELIVERY_QUEUE"), "deliveries"),
		DeliveryMaxRetry:   parseInt(k.String("DELIVERY_MAX_RETRY"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SiteRootURL == "" {
		return nil, errors.New("SITE_ROOT_URL is required")
	}
	if cfg.WebhookBaseURL == "" {
		cfg.WebhookBaseURL = cfg.SiteRootURL
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func parseDecimal(value, fallback string) decimal.Decimal {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = fallback
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
