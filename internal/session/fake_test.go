package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/netexec"
	"github.com/danmuck/syncws/internal/transport"
)

type connectMode int

const (
	connectSucceed connectMode = iota
	connectFail
	connectHang
)

var errFakeDial = errors.New("fake dial refused")

// fakeTransport is touched only from executor tasks.
type fakeTransport struct {
	url        string
	sink       transport.Sink
	mode       connectMode
	onComplete func(error)
	sent       []string
	sendOK     bool
	closed     bool
}

func (f *fakeTransport) Connect(onComplete func(error)) {
	switch f.mode {
	case connectSucceed:
		onComplete(nil)
	case connectFail:
		onComplete(errFakeDial)
	default:
		f.onComplete = onComplete
	}
}

func (f *fakeTransport) Send(payload []byte) bool {
	if f.closed || !f.sendOK {
		return false
	}
	f.sent = append(f.sent, string(payload))
	return true
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// fakeFactory hands out fakeTransports whose connect behavior follows modes
// in order; the last mode repeats.
type fakeFactory struct {
	mu      sync.Mutex
	modes   []connectMode
	created []*fakeTransport
	events  chan *fakeTransport
}

func newFakeFactory(modes ...connectMode) *fakeFactory {
	if len(modes) == 0 {
		modes = []connectMode{connectSucceed}
	}
	return &fakeFactory{modes: modes, events: make(chan *fakeTransport, 64)}
}

func (f *fakeFactory) New(url string, sink transport.Sink) transport.Transport {
	f.mu.Lock()
	idx := len(f.created)
	mode := f.modes[len(f.modes)-1]
	if idx < len(f.modes) {
		mode = f.modes[idx]
	}
	tr := &fakeTransport{url: url, sink: sink, mode: mode, sendOK: true}
	f.created = append(f.created, tr)
	f.mu.Unlock()
	f.events <- tr
	return tr
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-f.events:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transport creation")
		return nil
	}
}

func newTestExecutor(t *testing.T) *netexec.Executor {
	t.Helper()
	exec := netexec.New(t.Name())
	t.Cleanup(exec.Stop)
	return exec
}

// onLoop runs fn on the executor and waits for it.
func onLoop(t *testing.T, exec *netexec.Executor, fn func()) {
	t.Helper()
	done := make(chan struct{})
	if err := exec.Submit(func(context.Context) {
		defer close(done)
		fn()
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("executor task did not run")
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectAttemptTimeout = 10 * time.Second
	cfg.Backoff.Jitter = false
	return cfg
}

func connectedSocket(t *testing.T) (*netexec.Executor, *Socket, *fakeFactory, *fakeTransport) {
	t.Helper()
	exec := newTestExecutor(t)
	factory := newFakeFactory(connectSucceed)
	s := NewSocket(exec, testConfig(), WithTransportFactory(factory.New))
	t.Cleanup(s.Close)
	if !s.Connect("ws://example.test/feed") {
		t.Fatalf("expected connect to succeed")
	}
	// Let the connect task drop its reference before tests count them.
	onLoop(t, exec, func() {})
	return exec, s, factory, factory.next(t)
}
