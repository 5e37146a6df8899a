package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/testutil/testlog"
)

func TestNormalizeURL(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"ws://127.0.0.1:9222/devtools/page/1": "ws://127.0.0.1:9222/devtools/page/1",
		"WSS://example.com/socket":            "wss://example.com/socket",
		"http://localhost:9222/x?y=1":         "ws://localhost:9222/x?y=1",
		"https://example.com":                 "wss://example.com",
	}
	for raw, want := range cases {
		got, err := NormalizeURL(raw)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("NormalizeURL(%q) = %q want %q", raw, got, want)
		}
	}
}

func TestNormalizeURLRejects(t *testing.T) {
	testlog.Start(t)
	if _, err := NormalizeURL(""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for empty, got %v", err)
	}
	if _, err := NormalizeURL("ftp://example.com"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := NormalizeURL("ws:///nohost"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for missing host, got %v", err)
	}
	if _, err := NormalizeURL("ws://bad host/"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for unparsable url, got %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{WriteTimeout: 3 * time.Second}.WithDefaults()
	if cfg.WriteTimeout != 3*time.Second {
		t.Fatalf("explicit write timeout overwritten: %v", cfg.WriteTimeout)
	}
	if cfg.HandshakeTimeout != DefaultConfig().HandshakeTimeout {
		t.Fatalf("handshake timeout not defaulted: %v", cfg.HandshakeTimeout)
	}
	if cfg.SecurityMode != SecurityModeDevelopment {
		t.Fatalf("unexpected security mode: %q", cfg.SecurityMode)
	}
}

func TestValidateClientTLSPairing(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClient(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS = TLSConfig{CertFile: "/tmp/client.pem"}
	if err := cfg.ValidateClient(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}

	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClient(); err != nil {
		t.Fatalf("expected valid tls config, got %v", err)
	}
}

func TestValidateTargetProductionRules(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = "Production "
	if err := cfg.ValidateTarget("ws://example.com/"); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	if err := cfg.ValidateTarget("wss://example.com/"); err != nil {
		t.Fatalf("expected wss to be accepted, got %v", err)
	}

	cfg.TLS.InsecureSkipVerify = true
	if err := cfg.ValidateTarget("wss://example.com/"); !errors.Is(err, ErrTLSInsecureSkipNotAllow) {
		t.Fatalf("expected ErrTLSInsecureSkipNotAllow, got %v", err)
	}

	cfg.SecurityMode = "staging"
	if err := cfg.ValidateClient(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
}

func TestClientTLSConfigMissingCA(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.CAFile = "/nonexistent/ca.pem"
	if _, err := cfg.ClientTLSConfig("example.com"); err == nil {
		t.Fatalf("expected missing ca file error")
	}

	cfg.TLS = TLSConfig{ServerName: "override.example"}
	tlsCfg, err := cfg.ClientTLSConfig("example.com")
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if tlsCfg.ServerName != "override.example" {
		t.Fatalf("unexpected server name: %q", tlsCfg.ServerName)
	}
}
