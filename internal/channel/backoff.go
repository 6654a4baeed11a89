package channel

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig defines reconnect backoff behavior.
type RetryConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// DefaultRetryConfig returns the channel reconnect defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
		Jitter:       false,
	}
}

// NextRetryDelay returns the reconnect delay for attempt N (1-based).
// The sequence is non-decreasing up to MaxDelay; jitter, when enabled,
// scales the delay by [0.5, 1.5).
func NextRetryDelay(cfg RetryConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
