package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/danmuck/syncws/internal/netexec"
	"github.com/danmuck/syncws/internal/transport"
)

var (
	ErrConnectFailed = errors.New("session: connect failed")
	ErrSocketClosed  = errors.New("session: socket closed")
)

// Snapshot is a point-in-time view of a Socket.
type Snapshot struct {
	Connected bool `json:"connected" yaml:"connected"`
	Queued    int  `json:"queued" yaml:"queued"`
}

// Option customizes a Socket at construction.
type Option func(*options)

type options struct {
	factory transport.Factory
	clock   clock.Clock
}

// WithTransportFactory replaces the default WebSocket transport.
func WithTransportFactory(factory transport.Factory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithClock replaces the wall clock used for connect and receive timeouts.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// Socket is a blocking WebSocket client driven by a network executor.
// All methods are safe for concurrent use and must not be called from a task
// running on that executor.
type Socket struct {
	core   *core
	closed atomic.Bool
	once   sync.Once
}

func NewSocket(exec *netexec.Executor, cfg Config, opts ...Option) *Socket {
	cfg = cfg.WithDefaults()
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = transport.NewFactory(exec, cfg.Transport)
	}
	return &Socket{core: newCore(exec, cfg, o.clock, o.factory)}
}

func (s *Socket) IsConnected() bool {
	return s.core.IsConnected()
}

// Connect dials url, retrying only on attempt timeouts. A completed attempt,
// successful or not, decides the result.
func (s *Socket) Connect(url string) bool {
	if s.closed.Load() {
		return false
	}
	return s.core.Connect(url)
}

// ConnectContext is Connect with the failure mapped to an error.
func (s *Socket) ConnectContext(ctx context.Context, url string) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.core.Connect(url) {
		return ErrConnectFailed
	}
	return nil
}

// Send blocks until the transport accepted or rejected message.
func (s *Socket) Send(message string) bool {
	if s.closed.Load() {
		return false
	}
	return s.core.Send(message)
}

// ReceiveNextMessage blocks until a message is queued, the connection drops
// or deadline passes. Queued messages are discarded once disconnected.
func (s *Socket) ReceiveNextMessage(deadline time.Time) (string, StatusCode) {
	return s.core.ReceiveNextMessage(deadline)
}

func (s *Socket) HasNextMessage() bool {
	return s.core.HasNextMessage()
}

func (s *Socket) Snapshot() Snapshot {
	return s.core.snapshot()
}

// Close releases the Socket. The transport is torn down on the executor once
// every in-flight task has finished.
func (s *Socket) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.core.release(context.Background())
	})
}
