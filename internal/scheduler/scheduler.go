// Package scheduler is the per-process runtime shared by all stations: a
// cron-driven timer wheel handing out cancellable periodic jobs and a bounded
// worker pool for asynchronous supplier and segmenter calls.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

// Runtime errors
var (
	ErrClosed          = errors.New("runtime is closed")
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Runtime owns the cron instance and the worker pool.
type Runtime struct {
	cron    *cron.Cron
	pool    *semaphore.Weighted
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	entries map[cron.EntryID]string
}

// New starts a runtime with at most workers concurrent submitted tasks.
func New(workers int) *Runtime {
	if workers < 1 {
		workers = 1
	}
	log := logger.Component("scheduler")
	cl := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		pool:    semaphore.NewWeighted(int64(workers)),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[cron.EntryID]string),
	}
	r.cron.Start()
	return r
}

// Every runs fn every interval, the first time after delay (or after one
// interval when delay is zero). Overlapping runs of the same job are skipped.
// The returned cancel removes the job and cancels the context passed to a run
// still in flight.
func (r *Runtime) Every(name string, delay, interval time.Duration, fn func(context.Context)) (context.CancelFunc, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, name)
	}
	if delay <= 0 {
		delay = interval
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	jobCtx, jobCancel := context.WithCancel(r.ctx)
	sched := &delayedEvery{first: time.Now().Add(delay), interval: interval}
	id := r.cron.Schedule(sched, cron.FuncJob(func() {
		if jobCtx.Err() != nil {
			return
		}
		fn(jobCtx)
	}))
	r.entries[id] = name

	r.log.Debug().
		Str("job", name).
		Dur("delay", delay).
		Dur("interval", interval).
		Msg("Scheduled periodic job")

	var once sync.Once
	return func() {
		once.Do(func() {
			jobCancel()
			r.cron.Remove(id)
			r.mu.Lock()
			delete(r.entries, id)
			r.mu.Unlock()
		})
	}, nil
}

// Submit runs fn on the worker pool. It returns ErrClosed after Close.
// The task waits for a free worker without blocking the caller.
func (r *Runtime) Submit(name string, fn func(context.Context)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.pool.Acquire(r.ctx, 1); err != nil {
			return
		}
		defer r.pool.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Str("task", name).Interface("panic", rec).Msg("Worker task panicked")
			}
		}()
		fn(r.ctx)
	}()
	return nil
}

// Jobs returns the number of scheduled periodic jobs.
func (r *Runtime) Jobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops scheduling, cancels in-flight work and waits for it to return
// or for ctx to expire.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	cronDone := r.cron.Stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("Runtime stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runtime shutdown: %w", ctx.Err())
	}
}

// delayedEvery fires at first, then every interval after each activation.
// Sub-second intervals are honored, unlike cron.Every.
type delayedEvery struct {
	first    time.Time
	interval time.Duration
}

func (s *delayedEvery) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return t.Add(s.interval)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
