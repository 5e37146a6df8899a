package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt <= 4; attempt++ {
		base := NextBackoffDelay(BackoffConfig{InitialDelay: cfg.InitialDelay, Multiplier: cfg.Multiplier, MaxDelay: cfg.MaxDelay}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base*3/2 {
			t.Fatalf("attempt%d jitter out of range: %v (base %v)", attempt, got, base)
		}
	}
}

func TestNextBackoffDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 3, nil); got != 0 {
		t.Fatalf("expected zero delay, got %v", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{}.WithDefaults()
	def := DefaultConfig()
	if cfg.ConnectAttempts != def.ConnectAttempts || cfg.ConnectAttemptTimeout != def.ConnectAttemptTimeout {
		t.Fatalf("unexpected connect policy %+v", cfg)
	}
	if cfg.Transport.HandshakeTimeout == 0 || cfg.Backoff.InitialDelay == 0 {
		t.Fatalf("nested defaults not applied: %+v", cfg)
	}

	cfg = Config{ConnectAttempts: 1, ConnectAttemptTimeout: time.Second}.WithDefaults()
	if cfg.ConnectAttempts != 1 || cfg.ConnectAttemptTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestStatusCodeString(t *testing.T) {
	testlog.Start(t)
	cases := map[StatusCode]string{
		StatusOK:           "ok",
		StatusTimeout:      "timeout",
		StatusDisconnected: "disconnected",
		StatusCode(42):     "unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("%d: got %q want %q", code, got, want)
		}
	}
}
