package session

import (
	"time"

	"github.com/danmuck/syncws/internal/transport"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines connect policy and transport defaults.
type Config struct {
	ConnectAttempts       int
	ConnectAttemptTimeout time.Duration
	Transport             transport.Config
	Backoff               BackoffConfig
}

// DefaultConfig returns three connect attempts of ten seconds each.
func DefaultConfig() Config {
	return Config{
		ConnectAttempts:       3,
		ConnectAttemptTimeout: 10 * time.Second,
		Transport:             transport.DefaultConfig(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = def.ConnectAttempts
	}
	if c.ConnectAttemptTimeout <= 0 {
		c.ConnectAttemptTimeout = def.ConnectAttemptTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	c.Transport = c.Transport.WithDefaults()
	return c
}
