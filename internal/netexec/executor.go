package netexec

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/syncws/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("netexec: executor stopped")

// Task is one unit of work. ctx is the executor's loop context.
type Task func(ctx context.Context)

type loopKey struct{}

// Executor serializes tasks onto a single goroutine.
type Executor struct {
	name string
	ctx  context.Context

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	stopping bool

	done chan struct{}
}

// New starts an executor goroutine named for logs and metrics.
func New(name string) *Executor {
	e := &Executor{
		name: name,
		done: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	e.ctx = context.WithValue(context.Background(), loopKey{}, e)
	go e.loop()
	return e
}

func (e *Executor) Name() string {
	return e.name
}

// Submit enqueues task behind every previously submitted task.
func (e *Executor) Submit(task Task) error {
	if task == nil {
		return nil
	}
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return ErrStopped
	}
	e.queue = append(e.queue, task)
	depth := len(e.queue)
	e.cond.Signal()
	e.mu.Unlock()

	observability.SetExecutorQueueDepth(e.name, depth)
	return nil
}

// OnLoop reports whether ctx was handed out by this executor to a task.
func (e *Executor) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Executor)
	return owner == e
}

// Done is closed once the loop has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Stop rejects new tasks, runs the ones already queued, and waits for the
// loop to exit. It must not be called from a task.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.stopping {
		e.stopping = true
		e.cond.Broadcast()
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) loop() {
	defer close(e.done)
	log.Debug().Str("executor", e.name).Msg("netexec loop started")
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopping {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			log.Debug().Str("executor", e.name).Msg("netexec loop stopped")
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		depth := len(e.queue)
		e.mu.Unlock()

		observability.SetExecutorQueueDepth(e.name, depth)
		e.run(task)
	}
}

func (e *Executor) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("executor", e.name).
				Interface("panic", r).
				Msg("netexec task panicked")
		}
	}()
	task(e.ctx)
	observability.RecordExecutorTask(e.name)
}
