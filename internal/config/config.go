package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/syncws/internal/logging"
	"github.com/danmuck/syncws/internal/replay"
	"github.com/danmuck/syncws/internal/session"
	"github.com/danmuck/syncws/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk syncwsctl configuration. Durations are Go duration
// strings ("250ms", "10s"); zero values fall back to package defaults.
type File struct {
	ID                string   `toml:"id"`
	LogLevel          string   `toml:"log_level"`
	ConnectAttempts   int      `toml:"connect_attempts"`
	ConnectTimeout    string   `toml:"connect_timeout"`
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	BackoffInitial    string   `toml:"backoff_initial"`
	BackoffMultiplier float64  `toml:"backoff_multiplier"`
	BackoffMax        string   `toml:"backoff_max"`
	BackoffJitter     bool     `toml:"backoff_jitter"`
	SecurityMode      string   `toml:"security_mode"`
	HandshakeTimeout  string   `toml:"handshake_timeout"`
	WriteTimeout      string   `toml:"write_timeout"`
	ReadLimit         int64    `toml:"read_limit"`
	BinaryMessages    bool     `toml:"binary_messages"`
	EnableCompression bool     `toml:"enable_compression"`
	ResponseTimeout   string   `toml:"response_timeout"`
	MaxInFlight       int      `toml:"max_in_flight"`
	StopOnError       bool     `toml:"stop_on_error"`
	AdminAddr         string   `toml:"admin_addr"`
	AdminToken        string   `toml:"admin_token"`
	CorsOrigins       []string `toml:"cors_origins"`
	TLS               TLSFile  `toml:"tls"`
}

type TLSFile struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Load reads path strictly: unknown keys are an error.
func Load(path string) (File, error) {
	var f File
	if err := loadToml(path, &f); err != nil {
		return File{}, err
	}
	if err := Validate(f); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return f, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(f File) error {
	if strings.TrimSpace(f.LogLevel) != "" {
		if _, ok := logging.ParseLevel(f.LogLevel); !ok {
			return fmt.Errorf("log_level %q is not a level", f.LogLevel)
		}
	}
	if f.ConnectAttempts < 0 {
		return fmt.Errorf("connect_attempts must not be negative")
	}
	if f.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts must not be negative")
	}
	if f.MaxInFlight < 0 {
		return fmt.Errorf("max_in_flight must not be negative")
	}
	if f.BackoffMultiplier != 0 && f.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be at least 1")
	}
	if f.ReadLimit < 0 {
		return fmt.Errorf("read_limit must not be negative")
	}
	cfg, err := f.SessionConfig()
	if err != nil {
		return err
	}
	if _, err := f.ReplayConfig(); err != nil {
		return err
	}
	return cfg.Transport.ValidateClient()
}

// SessionConfig converts the file into socket settings with defaults applied.
func (f File) SessionConfig() (session.Config, error) {
	cfg := session.Config{
		ConnectAttempts: f.ConnectAttempts,
		Backoff: session.BackoffConfig{
			Multiplier: f.BackoffMultiplier,
			Jitter:     f.BackoffJitter,
		},
		Transport: transport.Config{
			SecurityMode:      transport.SecurityMode(f.SecurityMode),
			ReadLimit:         f.ReadLimit,
			BinaryMessages:    f.BinaryMessages,
			EnableCompression: f.EnableCompression,
			TLS: transport.TLSConfig{
				CAFile:             f.TLS.CAFile,
				CertFile:           f.TLS.CertFile,
				KeyFile:            f.TLS.KeyFile,
				ServerName:         f.TLS.ServerName,
				InsecureSkipVerify: f.TLS.InsecureSkipVerify,
			},
		},
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", f.ConnectTimeout, &cfg.ConnectAttemptTimeout},
		{"backoff_initial", f.BackoffInitial, &cfg.Backoff.InitialDelay},
		{"backoff_max", f.BackoffMax, &cfg.Backoff.MaxDelay},
		{"handshake_timeout", f.HandshakeTimeout, &cfg.Transport.HandshakeTimeout},
		{"write_timeout", f.WriteTimeout, &cfg.Transport.WriteTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.raw)
		if err != nil {
			return session.Config{}, err
		}
		*d.dst = v
	}
	return cfg.WithDefaults(), nil
}

func (f File) ReplayConfig() (replay.Config, error) {
	timeout, err := parseDuration("response_timeout", f.ResponseTimeout)
	if err != nil {
		return replay.Config{}, err
	}
	return replay.Config{
		ResponseTimeout: timeout,
		MaxInFlight:     f.MaxInFlight,
		StopOnError:     f.StopOnError,
	}.WithDefaults(), nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
