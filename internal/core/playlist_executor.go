package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrExecutorClosed is returned for work submitted after Close.
var ErrExecutorClosed = errors.New("playlist executor closed")

// Job is one unit of work run on the executor's worker goroutine.
type Job func(ctx context.Context) error

type job struct {
	ctx  context.Context
	run  Job
	done chan error
}

// PlaylistExecutor confines Spotify calls to a single goroutine.
// Jobs run one at a time, in submission order.
type PlaylistExecutor struct {
	logger      *zap.Logger
	callTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

// NewPlaylistExecutor starts the worker. queueSize bounds how many jobs may wait;
// callTimeout bounds each job (0 means no extra bound).
func NewPlaylistExecutor(queueSize int, callTimeout time.Duration, logger *zap.Logger) *PlaylistExecutor {
	if queueSize < 1 {
		queueSize = 1
	}
	e := &PlaylistExecutor{
		logger:      logger,
		callTimeout: callTimeout,
		jobs:        make(chan job, queueSize),
	}
	e.wg.Add(1)
	go e.work()
	return e
}

// Submit queues fn and returns a channel that receives its result exactly once.
// It blocks while the queue is full, until ctx is done.
func (e *PlaylistExecutor) Submit(ctx context.Context, fn Job) <-chan error {
	done := make(chan error, 1)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		done <- ErrExecutorClosed
		return done
	}

	select {
	case e.jobs <- job{ctx: ctx, run: fn, done: done}:
	case <-ctx.Done():
		done <- fmt.Errorf("queue playlist job: %w", ctx.Err())
	}
	return done
}

// Do submits fn and waits for its result.
func (e *PlaylistExecutor) Do(ctx context.Context, fn Job) error {
	select {
	case err := <-e.Submit(ctx, fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, runs the ones already queued and waits for the worker to exit.
func (e *PlaylistExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Debug("Playlist executor stopped")
}

func (e *PlaylistExecutor) work() {
	defer e.wg.Done()
	for j := range e.jobs {
		j.done <- e.run(j)
	}
}

func (e *PlaylistExecutor) run(j job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	ctx := j.ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Playlist job panicked", zap.Any("panic", r))
			err = fmt.Errorf("playlist job panicked: %v", r)
		}
	}()

	return j.run(ctx)
}
