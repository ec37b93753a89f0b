// Package worker provides a bounded goroutine pool for dispatching
// confirm/cancel phases asynchronously, modeled on the run/stop lifecycle
// the teacher's txmgr.Runner exposes to github.com/robbyt/go-supervisor:
// a Run(ctx) that blocks workers until the context is cancelled or Stop is
// called, and a WaitGroup tracking the worker goroutines so Run doesn't
// return until every worker has exited.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/robbyt/go-supervisor/supervisor"
)

// Job is a unit of dispatched work: drive one transaction's confirm or
// cancel phase to completion. Jobs are expected to handle their own
// errors (logging, re-queueing via recovery) since the pool only logs a
// failure, it never retries.
type Job func(ctx context.Context) error

// ErrPoolStopped is returned by Submit before Run has started, once the
// pool has been stopped, or when its queue is full. The pool does not run
// a rejected job; txmanager reports the rejection as txcore.ErrConfirming
// or txcore.ErrCancelling and leaves the persisted record for recovery.
var ErrPoolStopped = errors.New("worker: pool stopped or queue full")

// Pool is a fixed-size goroutine pool with a bounded job queue. It
// implements the supervisor.Runnable contract (Run, Stop, String): Run
// blocks until the supplied context or an explicit Stop call ends it,
// spawning exactly size worker goroutines that pull from the queue until
// the run context ends. Jobs still queued at that point may not run.
// Pool deliberately claims only supervisor.Runnable, not
// supervisor.Stateable: the teacher's txmgr.Runner asserts both, but
// Stateable requires a GetState() method the teacher's Runner doesn't
// actually define in its non-test code, so that second guard isn't one
// this package repeats.
var _ supervisor.Runnable = (*Pool)(nil)

type Pool struct {
	size    int
	queue   chan Job
	logger  *slog.Logger
	wg      sync.WaitGroup
	runCtx  context.Context
	cancel  context.CancelFunc
	once    sync.Once
	started chan struct{}
}

// New builds a Pool with the given worker count and queue depth. handler
// is used for pool-lifecycle and job-failure logging; pass nil for the
// default text-to-stdout handler.
func New(size, queueDepth int, handler slog.Handler) *Pool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 1 {
		queueDepth = size
	}
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Pool{
		size:    size,
		queue:   make(chan Job, queueDepth),
		logger:  slog.New(handler).WithGroup("worker.Pool"),
		started: make(chan struct{}),
	}
}

// Run implements supervisor.Runnable. It blocks until ctx is cancelled or
// Stop is called, spawning size worker goroutines that drain the job
// queue.
func (p *Pool) Run(ctx context.Context) error {
	p.runCtx, p.cancel = context.WithCancel(ctx)
	close(p.started)

	for range p.size {
		p.wg.Add(1)
		go p.work()
	}

	<-p.runCtx.Done()
	p.wg.Wait()
	p.logger.Debug("worker pool drained")
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			return
		case job := <-p.queue:
			if job == nil {
				continue
			}
			if err := job(p.runCtx); err != nil {
				p.logger.Error("async job failed", "error", err)
			}
		}
	}
}

// Submit enqueues job for async execution. It returns ErrPoolStopped if
// Run hasn't been called yet, the pool has already stopped, or the queue
// is full; the job is then not run.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.started:
	default:
		return ErrPoolStopped
	}

	select {
	case <-p.runCtx.Done():
		return ErrPoolStopped
	default:
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return fmt.Errorf("%w: queue full", ErrPoolStopped)
	}
}

// Stop cancels the pool's run context, signaling all workers to return.
// It does not wait for them; Run returns once they have exited. Safe to
// call more than once.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.logger.Debug("stopping worker pool")
		if p.cancel != nil {
			p.cancel()
		}
	})
}

func (p *Pool) String() string {
	return fmt.Sprintf("worker.Pool{size: %d}", p.size)
}
