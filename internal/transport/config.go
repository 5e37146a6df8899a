package transport

import "time"

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig configures wss:// connections.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines websocket transport defaults.
type Config struct {
	SecurityMode      SecurityMode
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	CloseGracePeriod  time.Duration
	ReadLimit         int64
	ReadBufferSize    int
	WriteBufferSize   int
	EnableCompression bool
	BinaryMessages    bool
	TLS               TLSConfig
}

func DefaultConfig() Config {
	return Config{
		SecurityMode:     SecurityModeDevelopment,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		CloseGracePeriod: time.Second,
		ReadLimit:        64 << 20,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.CloseGracePeriod <= 0 {
		c.CloseGracePeriod = def.CloseGracePeriod
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = def.WriteBufferSize
	}
	return c
}
