package agentbridge

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentbridge/logging"
)

// job is one unit of work submitted to an Executor.
type job struct {
	op   string
	fn   func(ctx context.Context) error
	done chan error
}

// Executor is a long-lived single-threaded run loop. One goroutine, locked to
// its own OS thread, drains a job queue for the Executor's lifetime; all agent
// operations submitted to it therefore execute on the same thread, one at a
// time, in submission order.
//
// Submitting callers block with a bounded wait. When the wait expires the
// in-flight job is not interrupted; it keeps the loop busy until it returns.
type Executor struct {
	id     string
	jobs   chan job
	quit   chan struct{}
	base   context.Context
	cancel context.CancelFunc
	logger logging.Logger
	once   sync.Once
}

// NewExecutor starts the run loop and returns its handle.
func NewExecutor(logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	base, cancel := context.WithCancel(context.Background())
	e := &Executor{
		id:     uuid.NewString(),
		jobs:   make(chan job),
		quit:   make(chan struct{}),
		base:   base,
		cancel: cancel,
		logger: logger,
	}
	go e.run()
	return e
}

// ID returns the executor's stable identity.
func (e *Executor) ID() string { return e.id }

// run is the loop body. It owns the thread: nothing else ever drives jobs.
func (e *Executor) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.logger.Debug("executor.started", "executor_id", e.id)

	for {
		select {
		case <-e.quit:
			e.logger.Debug("executor.stopped", "executor_id", e.id)
			return
		case j := <-e.jobs:
			j.done <- e.runJob(j)
		}
	}
}

// runJob executes one job, converting panics into errors so a misbehaving
// agent cannot kill the loop.
func (e *Executor) runJob(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", j.op, r)
			e.logger.Error("executor.job.panic", "executor_id", e.id, "op", j.op, "panic", fmt.Sprintf("%v", r))
		}
	}()
	return j.fn(e.base)
}

// Do submits fn to the loop and blocks until it completes or the wait bound
// expires. On expiry a *TimeoutError is returned while the job may continue
// running in the background.
func (e *Executor) Do(op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	j := job{op: op, fn: fn, done: make(chan error, 1)}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case e.jobs <- j:
	case <-e.quit:
		return ErrExecutorClosed
	case <-deadline.C:
		e.logger.Warn("executor.submit.timeout", "executor_id", e.id, "op", op, "timeout", timeout)
		return &TimeoutError{Op: op, Timeout: timeout}
	}

	select {
	case err := <-j.done:
		return err
	case <-deadline.C:
		e.logger.Warn("executor.wait.timeout", "executor_id", e.id, "op", op, "timeout", timeout)
		return &TimeoutError{Op: op, Timeout: timeout}
	}
}

// Close stops the loop. A job executing at close time runs to completion;
// queued submitters receive ErrExecutorClosed. Close is idempotent and does
// not wait for the in-flight job.
func (e *Executor) Close() {
	e.once.Do(func() {
		close(e.quit)
		e.cancel()
	})
}
