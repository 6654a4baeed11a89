package channel

import "time"

// Config defines channel transport defaults.
type Config struct {
	// BaseURL is the websocket endpoint root, e.g. "wss://host". The
	// session identifier and credential are appended per channel.
	BaseURL      string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Retry        RetryConfig
}

// DefaultConfig returns transport defaults for one supervised channel.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		Retry:        DefaultRetryConfig(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.Multiplier < 1.0 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.Retry.MaxDelay
	}
	return c
}
