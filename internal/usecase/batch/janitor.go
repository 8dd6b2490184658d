package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// JanitorReport summarizes one janitor pass.
type JanitorReport struct {
	Deleted   int
	Abandoned int
}

// Janitor removes expired jobs and fails jobs that stopped making progress.
// Abandoned jobs are never resumed.
type Janitor struct {
	jobs       JobStore
	retention  time.Duration
	staleAfter time.Duration
	queue      QueueTracker
	now        func() time.Time
	logger     *zap.Logger
}

// NewJanitor creates a janitor. A zero staleAfter disables stale correction.
func NewJanitor(jobs JobStore, retention, staleAfter time.Duration, l *zap.Logger) *Janitor {
	return &Janitor{
		jobs:       jobs,
		retention:  retention,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     l,
	}
}

// WithQueue lets the janitor also fail stale pending jobs the tracker does
// not hold, such as jobs left behind by a crashed process. Without a tracker
// pending jobs are never touched.
func (j *Janitor) WithQueue(q QueueTracker) *Janitor {
	j.queue = q
	return j
}

// WithClock overrides the time source.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// Run performs one retention and stale-correction pass.
func (j *Janitor) Run(ctx context.Context) (JanitorReport, error) {
	var rep JanitorReport

	deleted, err := j.jobs.Cleanup(ctx, j.retention)
	rep.Deleted = deleted
	metrics.JanitorDeletedTotal.WithLabelValues("deleted").Add(float64(deleted))
	if err != nil {
		return rep, fmt.Errorf("cleanup: %w", err)
	}

	if j.staleAfter > 0 {
		n, err := j.abandonStale(ctx)
		rep.Abandoned = n
		metrics.JanitorDeletedTotal.WithLabelValues("abandoned").Add(float64(n))
		if err != nil {
			return rep, err
		}
	}

	if rep.Deleted > 0 || rep.Abandoned > 0 {
		j.logger.Info("Janitor pass", zap.Int("deleted", rep.Deleted), zap.Int("abandoned", rep.Abandoned))
	}
	return rep, nil
}

func (j *Janitor) abandonStale(ctx context.Context) (int, error) {
	list, err := j.jobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}

	cutoff := j.now().Add(-j.staleAfter)
	abandoned := 0
	for _, job := range list {
		if !j.stale(job, cutoff) {
			continue
		}
		reason := "abandoned: no progress since " + job.UpdatedAt.UTC().Format(time.RFC3339)
		_, err := j.jobs.Update(ctx, job.ID, domjob.Patch{Status: domjob.StatusFailed, Error: reason})
		if err != nil {
			// finished or collected since List
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return abandoned, fmt.Errorf("abandon job %s: %w", job.ID, err)
		}
		j.logger.Warn("Job abandoned", zap.String("job_id", job.ID), zap.Time("updated_at", job.UpdatedAt))
		abandoned++
	}
	return abandoned, nil
}

// stale reports whether a job stopped making progress. Queued jobs wait on
// the dispatcher without updates, so they only count when nobody holds them.
func (j *Janitor) stale(job *domjob.Job, cutoff time.Time) bool {
	if !job.UpdatedAt.Before(cutoff) {
		return false
	}
	if j.queue != nil && j.queue.Holds(job.ID) {
		return false
	}
	switch job.Status {
	case domjob.StatusProcessing:
		return true
	case domjob.StatusPending:
		return j.queue != nil
	default:
		return false
	}
}
