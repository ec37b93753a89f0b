package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitBeforeRunFails(t *testing.T) {
	t.Parallel()

	p := New(2, 2, nil)
	err := p.Submit(func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestPool_RunsSubmittedJobs(t *testing.T) {
	t.Parallel()

	p := New(2, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.Submit(func(context.Context) error { return nil }) == nil
	}, time.Second, time.Millisecond)

	var count int32
	for range 3 {
		require.NoError(t, p.Submit(func(context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) == 3
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestPool_StopDrainsWorkers(t *testing.T) {
	t.Parallel()

	p := New(1, 1, nil)
	done := make(chan struct{})
	go func() {
		_ = p.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.Submit(func(context.Context) error { return nil }) == nil
	}, time.Second, time.Millisecond)

	p.Stop()
	p.Stop() // safe to call twice

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_SubmitAfterStopFails(t *testing.T) {
	t.Parallel()

	p := New(1, 1, nil)
	go func() { _ = p.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return p.Submit(func(context.Context) error { return nil }) == nil
	}, time.Second, time.Millisecond)

	p.Stop()
	require.Eventually(t, func() bool {
		return p.Submit(func(context.Context) error { return nil }) != nil
	}, time.Second, time.Millisecond)
}
