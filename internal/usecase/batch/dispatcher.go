package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

const (
	dropTimeout   = 5 * time.Second
	shutdownGrace = 2 * time.Second
)

// Dispatcher runs jobs on detached goroutines bound to the server lifetime,
// at most maxConcurrent at a time.
type Dispatcher struct {
	base   context.Context
	cancel context.CancelFunc
	runner Runner
	jobs   JobStore
	sem    chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	held   map[string]struct{}
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. base outlives any single request.
func NewDispatcher(base context.Context, runner Runner, maxConcurrent int, l *zap.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(base)
	return &Dispatcher{
		base:   ctx,
		cancel: cancel,
		runner: runner,
		sem:    make(chan struct{}, maxConcurrent),
		held:   make(map[string]struct{}),
		logger: l,
	}
}

// WithStore lets the dispatcher fail jobs it accepted but will never start.
func (d *Dispatcher) WithStore(jobs JobStore) *Dispatcher {
	d.jobs = jobs
	return d
}

// Dispatch schedules a job and returns immediately. A job dispatched after
// Shutdown, or still queued when the base context ends, is marked failed.
func (d *Dispatcher) Dispatch(id string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.drop(id, "server shutting down")
		return
	}
	d.held[id] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.release(id)
		select {
		case d.sem <- struct{}{}:
		case <-d.base.Done():
			d.drop(id, "server shut down before the job started")
			return
		}
		defer func() { <-d.sem }()
		if d.base.Err() != nil {
			d.drop(id, "server shut down before the job started")
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("Job panicked", zap.String("job_id", id), zap.Any("panic", rec))
			}
		}()

		if err := d.runner.Run(d.base, id); err != nil {
			d.logger.Error("Job run failed", zap.String("job_id", id), zap.Error(err))
		}
	}()
}

// Holds reports whether the job is queued or running here.
func (d *Dispatcher) Holds(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.held[id]
	return ok
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.held, id)
	d.mu.Unlock()
}

func (d *Dispatcher) drop(id, reason string) {
	d.logger.Warn("Job dropped", zap.String("job_id", id), zap.String("reason", reason))
	if d.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.base), dropTimeout)
	defer cancel()
	_, err := d.jobs.Update(ctx, id, domjob.Patch{Status: domjob.StatusFailed, Error: "abandoned: " + reason})
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrNotFound) {
		d.logger.Error("Failed to mark dropped job", zap.String("job_id", id), zap.Error(err))
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones. When ctx ends
// first, running jobs are canceled and queued ones are failed.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
		}
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}
