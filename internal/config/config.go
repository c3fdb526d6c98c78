package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL string

	FXURL               string
	FXRetryMax          int
	FXRetryBaseDelay    time.Duration
	RateRefreshInterval time.Duration

	PricingURL            string
	PricingToken          string
	PricingCurrency       string
	PricingRetryMax       int
	PricingRetryBaseDelay time.Duration

	SyncPollInterval         time.Duration
	SyncMaterialityThreshold decimal.Decimal
	SyncItemDelay            time.Duration
	ProviderTimeout          time.Duration

	ExportInterval        time.Duration
	GoogleSheetsID        string
	GoogleCredentialsJSON string

	HTTPPort    string
	AdminAPIKey string
}

// Load reads configuration from environment variables with sensible defaults. A .env file in the
// working directory, when present, is loaded first and never overrides variables already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL: envOrDefaultWarn("DATABASE_URL", ""),

		FXURL:               envOrDefaultWarn("FX_URL", ""),
		FXRetryMax:          envOrDefaultInt("FX_RETRY_MAX", 3),
		FXRetryBaseDelay:    envOrDefaultDuration("FX_RETRY_BASE_DELAY", 2*time.Second),
		RateRefreshInterval: envOrDefaultDuration("RATE_REFRESH_INTERVAL", 3*time.Hour),

		PricingURL:            envOrDefaultWarn("PRICING_URL", ""),
		PricingToken:          envOrDefault("PRICING_TOKEN", ""),
		PricingCurrency:       envOrDefault("PRICING_CURRENCY", "ARS"),
		PricingRetryMax:       envOrDefaultInt("PRICING_RETRY_MAX", 5),
		PricingRetryBaseDelay: envOrDefaultDuration("PRICING_RETRY_BASE_DELAY", 2*time.Second),

		SyncPollInterval:         envOrDefaultDuration("SYNC_POLL_INTERVAL", time.Hour),
		SyncMaterialityThreshold: envOrDefaultDecimal("SYNC_MATERIALITY_THRESHOLD", decimal.RequireFromString("0.01")),
		SyncItemDelay:            envOrDefaultDuration("SYNC_ITEM_DELAY", 500*time.Millisecond),
		ProviderTimeout:          envOrDefaultDuration("PROVIDER_TIMEOUT", 30*time.Second),

		ExportInterval:        envOrDefaultDuration("EXPORT_INTERVAL", 24*time.Hour),
		GoogleSheetsID:        envOrDefault("GOOGLE_SHEETS_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),

		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),
	}
}

// ExportEnabled reports whether Google Sheets export is configured.
func (c Config) ExportEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || !d.IsPositive() {
			slog.Warn("invalid decimal env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
