package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/danmuck/syncws/internal/netexec"
	"github.com/danmuck/syncws/internal/observability"
	"github.com/danmuck/syncws/internal/transport"
	"github.com/rs/zerolog/log"
)

// connectAttempt is the completion cell of one connect attempt. It lives on
// the heap and is buffered, so a completion that lands after the caller gave
// up is simply never read.
type connectAttempt struct {
	number int
	done   chan bool
	once   sync.Once
}

func newConnectAttempt(number int) *connectAttempt {
	return &connectAttempt{number: number, done: make(chan bool, 1)}
}

func (a *connectAttempt) complete(ok bool) {
	a.once.Do(func() { a.done <- ok })
}

// core is the monitor behind Socket. Caller goroutines block on it while the
// network executor drives the transport and feeds callbacks back in.
type core struct {
	exec    *netexec.Executor
	cfg     Config
	clock   clock.Clock
	factory transport.Factory
	refs    atomic.Int64

	mu        sync.Mutex
	connected bool
	queue     []string
	update    chan struct{}

	// Executor-confined.
	transport  transport.Transport
	generation uint64
	destroyed  bool
}

func newCore(exec *netexec.Executor, cfg Config, clk clock.Clock, factory transport.Factory) *core {
	c := &core{
		exec:    exec,
		cfg:     cfg,
		clock:   clk,
		factory: factory,
		update:  make(chan struct{}),
	}
	c.refs.Store(1)
	return c
}

func (c *core) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *core) HasNextMessage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) > 0
}

func (c *core) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Connected: c.connected, Queued: len(c.queue)}
}

func (c *core) Connect(rawURL string) bool {
	target, err := transport.NormalizeURL(rawURL)
	if err == nil {
		err = c.cfg.Transport.ValidateTarget(target)
	}
	if err != nil {
		log.Error().Str("url", rawURL).Err(err).Msg("session connect rejected")
		return false
	}

	attempts := c.cfg.ConnectAttempts
	for i := 1; i <= attempts; i++ {
		attempt := newConnectAttempt(i)
		// Armed before posting so the attempt deadline is anchored at submission.
		timer := c.clock.Timer(c.cfg.ConnectAttemptTimeout)
		if !c.post(func(context.Context) { c.connectOnLoop(target, attempt) }) {
			timer.Stop()
			log.Error().Str("url", target).Msg("session connect: executor stopped")
			return false
		}

		select {
		case ok := <-attempt.done:
			timer.Stop()
			if ok {
				observability.RecordConnectAttempt(observability.ConnectOutcomeSuccess)
			} else {
				observability.RecordConnectAttempt(observability.ConnectOutcomeFailure)
			}
			return ok
		case <-timer.C:
		}

		observability.RecordConnectAttempt(observability.ConnectOutcomeTimeout)
		if i < attempts {
			log.Warn().Str("url", target).Int("attempt", i).Msg("timed out connecting, retrying...")
		} else {
			log.Warn().Str("url", target).Int("attempt", i).Msg("timed out connecting, giving up.")
		}
	}
	return false
}

func (c *core) Send(message string) bool {
	result := make(chan bool, 1)
	posted := c.post(func(context.Context) {
		ok := false
		defer func() { result <- ok }()
		ok = c.sendOnLoop(message)
	})
	if !posted {
		observability.RecordSend(false)
		return false
	}
	ok := <-result
	observability.RecordSend(ok)
	return ok
}

func (c *core) ReceiveNextMessage(deadline time.Time) (string, StatusCode) {
	message, status := c.receive(deadline)
	observability.RecordReceive(status.String())
	return message, status
}

func (c *core) receive(deadline time.Time) (string, StatusCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && c.connected {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			return "", StatusTimeout
		}
		c.waitLocked(remaining)
	}
	if !c.connected {
		return "", StatusDisconnected
	}
	message := c.queue[0]
	c.queue[0] = ""
	c.queue = c.queue[1:]
	return message, StatusOK
}

// waitLocked drops mu until the update signal fires or d elapses.
func (c *core) waitLocked(d time.Duration) {
	update := c.update
	c.mu.Unlock()
	timer := c.clock.Timer(d)
	select {
	case <-update:
	case <-timer.C:
	}
	timer.Stop()
	c.mu.Lock()
}

// signalLocked wakes every waiter. Caller holds mu.
func (c *core) signalLocked() {
	close(c.update)
	c.update = make(chan struct{})
}

func (c *core) connectOnLoop(target string, attempt *connectAttempt) {
	if c.destroyed {
		attempt.complete(false)
		return
	}

	c.mu.Lock()
	c.queue = nil
	connected := c.connected
	c.mu.Unlock()

	// An earlier attempt may have finished after its caller stopped waiting.
	if c.transport != nil && connected {
		log.Debug().Str("url", target).Int("attempt", attempt.number).Msg("session already connected")
		attempt.complete(true)
		return
	}

	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			log.Debug().Err(err).Msg("session: closing superseded transport")
		}
	}
	c.generation++
	gen := c.generation
	c.transport = c.factory(target, &generationSink{core: c, generation: gen})
	c.transport.Connect(func(err error) {
		c.onConnectCompleted(gen, attempt, err)
	})
}

func (c *core) onConnectCompleted(gen uint64, attempt *connectAttempt, err error) {
	if gen != c.generation {
		log.Debug().Int("attempt", attempt.number).Msg("session: dropping completion from superseded transport")
		attempt.complete(false)
		return
	}
	if err != nil {
		log.Warn().Int("attempt", attempt.number).Err(err).Msg("session connect failed")
		attempt.complete(false)
		return
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	log.Info().Int("attempt", attempt.number).Msg("session connected")
	attempt.complete(true)
}

func (c *core) sendOnLoop(message string) bool {
	if c.transport == nil {
		log.Warn().Msg("session send without transport")
		return false
	}
	return c.transport.Send([]byte(message))
}

func (c *core) onMessageReceived(message string) {
	c.mu.Lock()
	c.queue = append(c.queue, message)
	c.signalLocked()
	c.mu.Unlock()
	observability.RecordInboundMessage()
}

func (c *core) onClose() {
	c.mu.Lock()
	c.connected = false
	c.signalLocked()
	c.mu.Unlock()
}

// post runs task on the executor while holding a reference on the core, so a
// Socket closed mid-flight is torn down only after the task finishes.
func (c *core) post(task netexec.Task) bool {
	c.acquire()
	err := c.exec.Submit(func(ctx context.Context) {
		defer c.release(ctx)
		task(ctx)
	})
	if err != nil {
		c.release(context.Background())
		return false
	}
	return true
}

func (c *core) acquire() {
	c.refs.Add(1)
}

// release drops one reference. The last one destroys the core on the
// executor: inline when ctx is the loop context, otherwise as a task.
func (c *core) release(ctx context.Context) {
	if c.refs.Add(-1) > 0 {
		return
	}
	if c.exec.OnLoop(ctx) {
		c.destroyOnLoop()
		return
	}
	if err := c.exec.Submit(func(context.Context) { c.destroyOnLoop() }); err != nil {
		<-c.exec.Done()
		c.destroyOnLoop()
	}
}

func (c *core) destroyOnLoop() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.generation++
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			log.Debug().Err(err).Msg("session: closing transport on destroy")
		}
		c.transport = nil
	}
	c.onClose()
	log.Debug().Msg("session destroyed")
}

// generationSink forwards callbacks only while its transport is current.
type generationSink struct {
	core       *core
	generation uint64
}

func (s *generationSink) OnMessageReceived(payload []byte) {
	if s.generation != s.core.generation {
		return
	}
	s.core.onMessageReceived(string(payload))
}

func (s *generationSink) OnClose() {
	if s.generation != s.core.generation {
		return
	}
	log.Info().Msg("session transport closed")
	s.core.onClose()
}
