package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/testutil/testlog"
	"github.com/danmuck/syncws/internal/transport"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesLoadAndValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"client", "secure"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		if _, err := Load(path); err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "id = \"x\"\n")
	if err := WriteTemplate(path, "client", false); err == nil {
		t.Fatalf("expected existing file to be kept")
	}
	if err := WriteTemplate(path, "client", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if _, err := Template("server"); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "id = \"x\"\nconnect_atempts = 3\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "connect_atempts") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]File{
		"level":      {LogLevel: "chatty"},
		"duration":   {ConnectTimeout: "ten seconds"},
		"negative":   {ConnectAttempts: -1},
		"multiplier": {BackoffMultiplier: 0.5},
		"mode":       {SecurityMode: "staging"},
		"tls pair":   {TLS: TLSFile{CertFile: "client.pem"}},
		"insecure":   {SecurityMode: "production", TLS: TLSFile{InsecureSkipVerify: true}},
		"in flight":  {MaxInFlight: -2},
		"timeout":    {ResponseTimeout: "-1s"},
	}
	for name, f := range cases {
		if err := Validate(f); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := Validate(File{}); err != nil {
		t.Fatalf("empty file should validate with defaults: %v", err)
	}
}

func TestSessionConfigConversion(t *testing.T) {
	testlog.Start(t)
	f := File{
		ConnectAttempts:   5,
		ConnectTimeout:    "2s",
		BackoffInitial:    "100ms",
		BackoffMultiplier: 3,
		SecurityMode:      "production",
		HandshakeTimeout:  "1s",
		TLS:               TLSFile{CAFile: "ca.pem", ServerName: "edge.local"},
	}
	cfg, err := f.SessionConfig()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.ConnectAttempts != 5 || cfg.ConnectAttemptTimeout != 2*time.Second {
		t.Fatalf("unexpected connect policy: %+v", cfg)
	}
	if cfg.Backoff.InitialDelay != 100*time.Millisecond || cfg.Backoff.Multiplier != 3 {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
	if cfg.Backoff.MaxDelay == 0 || cfg.Transport.WriteTimeout == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Transport.SecurityMode != transport.SecurityModeProduction || cfg.Transport.HandshakeTimeout != time.Second {
		t.Fatalf("unexpected transport: %+v", cfg.Transport)
	}
	if cfg.Transport.TLS.CAFile != "ca.pem" || cfg.Transport.TLS.ServerName != "edge.local" {
		t.Fatalf("unexpected tls: %+v", cfg.Transport.TLS)
	}

	rc, err := File{ResponseTimeout: "750ms", MaxInFlight: 4}.ReplayConfig()
	if err != nil {
		t.Fatalf("replay config: %v", err)
	}
	if rc.ResponseTimeout != 750*time.Millisecond || rc.MaxInFlight != 4 {
		t.Fatalf("unexpected replay config: %+v", rc)
	}
}
