package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/syncws/internal/config"
	"github.com/danmuck/syncws/internal/replay"
	"github.com/danmuck/syncws/internal/session"
	"github.com/danmuck/syncws/internal/transport"
)

type runtimeConfig struct {
	ID                string
	LogLevel          string
	Session           session.Config
	Replay            replay.Config
	ReconnectAttempts int
	AdminAddr         string
	AdminToken        string
	CorsOrigins       []string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		ID:      "syncwsctl",
		Session: session.DefaultConfig(),
		Replay:  replay.DefaultConfig(),
	}
}

// loadRuntimeConfig overlays the keys present in path onto the defaults.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw config.File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load syncwsctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return runtimeConfig{}, fmt.Errorf("load syncwsctl config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("connect_attempts") {
		cfg.Session.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("reconnect_attempts") {
		cfg.ReconnectAttempts = raw.ReconnectAttempts
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Session.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Session.Backoff.Jitter = raw.BackoffJitter
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectAttemptTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Session.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Session.Backoff.MaxDelay},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Session.Transport.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.Transport.WriteTimeout},
		{"response_timeout", raw.ResponseTimeout, &cfg.Replay.ResponseTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("security_mode") {
		cfg.Session.Transport.SecurityMode = transport.SecurityMode(strings.TrimSpace(raw.SecurityMode))
	}
	if meta.IsDefined("read_limit") {
		cfg.Session.Transport.ReadLimit = raw.ReadLimit
	}
	if meta.IsDefined("binary_messages") {
		cfg.Session.Transport.BinaryMessages = raw.BinaryMessages
	}
	if meta.IsDefined("enable_compression") {
		cfg.Session.Transport.EnableCompression = raw.EnableCompression
	}

	if meta.IsDefined("tls", "ca_file") {
		cfg.Session.Transport.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.Session.Transport.TLS.CertFile = strings.TrimSpace(raw.TLS.CertFile)
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.Session.Transport.TLS.KeyFile = strings.TrimSpace(raw.TLS.KeyFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.Session.Transport.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.Session.Transport.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	if meta.IsDefined("max_in_flight") {
		cfg.Replay.MaxInFlight = raw.MaxInFlight
	}
	if meta.IsDefined("stop_on_error") {
		cfg.Replay.StopOnError = raw.StopOnError
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	cfg.Session = cfg.Session.WithDefaults()
	cfg.Replay = cfg.Replay.WithDefaults()
	if err := cfg.Session.Transport.ValidateClient(); err != nil {
		return runtimeConfig{}, fmt.Errorf("load syncwsctl config: %w", err)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
