package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

type countingRunner struct {
	mu      sync.Mutex
	ran     []string
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (r *countingRunner) Run(ctx context.Context, id string) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	r.ran = append(r.ran, id)
	r.mu.Unlock()
	return nil
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	d := NewDispatcher(context.Background(), runner, 2, zap.NewNop())

	for _, id := range []string{"job_a", "job_b", "job_c", "job_d"} {
		d.Dispatch(id)
	}
	time.Sleep(20 * time.Millisecond)
	close(runner.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if len(runner.ran) != 4 {
		t.Errorf("ran = %v, want 4 jobs", runner.ran)
	}
	if peak := runner.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestDispatcher_ShutdownTimesOut(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	defer close(runner.release)
	d := NewDispatcher(context.Background(), runner, 1, zap.NewNop())
	d.Dispatch("job_stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); err == nil {
		t.Fatal("expected shutdown to time out while a job is running")
	}
}

func TestDispatcher_IgnoresJobsAfterShutdown(t *testing.T) {
	runner := &countingRunner{}
	d := NewDispatcher(context.Background(), runner, 1, zap.NewNop())
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	d.Dispatch("job_late")
	time.Sleep(10 * time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ran) != 0 {
		t.Errorf("ran = %v, want none", runner.ran)
	}
}

func TestDispatcher_FailsJobsDispatchedAfterShutdown(t *testing.T) {
	jobs := newMemJobs()
	seedJob(jobs, "job_late", domjob.StatusPending, time.Now().UTC())
	d := NewDispatcher(context.Background(), &countingRunner{}, 1, zap.NewNop()).WithStore(jobs)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	d.Dispatch("job_late")

	j := jobs.job("job_late")
	if j.Status != domjob.StatusFailed || j.Error != "abandoned: server shutting down" {
		t.Errorf("job_late = %s %q", j.Status, j.Error)
	}
}

func TestDispatcher_ShutdownTimeoutFailsQueuedJobs(t *testing.T) {
	jobs := newMemJobs()
	seedJob(jobs, "job_queued", domjob.StatusPending, time.Now().UTC())
	runner := &countingRunner{release: make(chan struct{})}
	defer close(runner.release)
	d := NewDispatcher(context.Background(), runner, 1, zap.NewNop()).WithStore(jobs)

	d.Dispatch("job_running")
	time.Sleep(10 * time.Millisecond)
	d.Dispatch("job_queued")
	if !d.Holds("job_queued") {
		t.Fatal("queued job should be held")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); err == nil {
		t.Fatal("expected shutdown to time out")
	}

	j := jobs.job("job_queued")
	if j.Status != domjob.StatusFailed || j.Error != "abandoned: server shut down before the job started" {
		t.Errorf("job_queued = %s %q", j.Status, j.Error)
	}
	if d.Holds("job_queued") {
		t.Error("dropped job still held")
	}
}
