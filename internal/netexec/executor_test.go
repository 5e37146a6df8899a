package netexec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestExecutorRunsTasksInSubmissionOrder(t *testing.T) {
	testlog.Start(t)
	e := New("fifo")
	defer e.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, e.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		}))
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestExecutorNeverOverlapsTasks(t *testing.T) {
	testlog.Start(t)
	e := New("serial")
	defer e.Stop()

	var running, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = e.Submit(func(context.Context) {
					if running.Add(1) > 1 {
						overlaps.Add(1)
					}
					time.Sleep(10 * time.Microsecond)
					running.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	e.Stop()
	require.Zero(t, overlaps.Load())
}

func TestExecutorOnLoop(t *testing.T) {
	testlog.Start(t)
	e := New("affinity")
	other := New("other")
	defer e.Stop()
	defer other.Stop()

	require.False(t, e.OnLoop(context.Background()))
	require.False(t, e.OnLoop(nil))

	result := make(chan [2]bool, 1)
	require.NoError(t, e.Submit(func(ctx context.Context) {
		result <- [2]bool{e.OnLoop(ctx), other.OnLoop(ctx)}
	}))
	got := <-result
	require.True(t, got[0], "task ctx should belong to its executor")
	require.False(t, got[1], "task ctx should not belong to another executor")
}

func TestExecutorStopDrainsQueuedTasksThenRejects(t *testing.T) {
	testlog.Start(t)
	e := New("drain")

	gate := make(chan struct{})
	var ran atomic.Int32
	require.NoError(t, e.Submit(func(context.Context) { <-gate }))
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(func(context.Context) { ran.Add(1) }))
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return e.Submit(func(context.Context) {}) == ErrStopped
	}, time.Second, time.Millisecond)

	close(gate)
	<-stopped
	require.Equal(t, int32(5), ran.Load())

	select {
	case <-e.Done():
	default:
		t.Fatalf("expected loop to have exited")
	}
	e.Stop()
}

func TestExecutorRecoversTaskPanics(t *testing.T) {
	testlog.Start(t)
	e := New("panic")
	defer e.Stop()

	require.NoError(t, e.Submit(func(context.Context) { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, e.Submit(func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("executor did not survive a panicking task")
	}
}
