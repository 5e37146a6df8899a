package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/danmuck/syncws/internal/netexec"
)

var (
	ErrInvalidURL        = errors.New("transport: invalid url")
	ErrUnsupportedScheme = errors.New("transport: unsupported url scheme")
	ErrClosed            = errors.New("transport: closed")
)

// Sink receives transport callbacks. Both methods run on the network executor.
type Sink interface {
	OnMessageReceived(payload []byte)
	OnClose()
}

// Transport is an asynchronous connection bound to the network executor.
// Every method must be called from an executor task.
type Transport interface {
	// Connect starts the handshake; onComplete runs later on the executor
	// with nil on success.
	Connect(onComplete func(err error))
	// Send writes one message and reports whether the write succeeded.
	Send(payload []byte) bool
	Close() error
}

// Factory builds a fresh transport for url that reports into sink.
type Factory func(url string, sink Sink) Transport

// Poster is the part of the network executor a transport needs.
type Poster interface {
	Submit(task netexec.Task) error
}

// NormalizeURL maps http(s) onto ws(s) and rejects anything else.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		u.Scheme = strings.ToLower(u.Scheme)
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}
