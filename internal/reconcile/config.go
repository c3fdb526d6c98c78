package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the reconciliation engine settings. It is passed in by the host process.
type Config struct {
	PollInterval         time.Duration   // time between provider update checks
	MaterialityThreshold decimal.Decimal // minimum relative change applied, 0.01 = 1%
	ItemDelay            time.Duration   // pause between vehicles during a sweep
	ProviderTimeout      time.Duration   // per-call bound on provider requests
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:         time.Hour,
		MaterialityThreshold: decimal.RequireFromString("0.01"),
		ItemDelay:            500 * time.Millisecond,
		ProviderTimeout:      30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig. ItemDelay may legitimately be zero.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if !c.MaterialityThreshold.IsPositive() {
		c.MaterialityThreshold = def.MaterialityThreshold
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = def.ItemDelay
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	return c
}
