package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
	"github.com/kailas-cloud/trustdesk/internal/logger"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// failWriteTimeout bounds the best-effort write of a job-level failure.
const failWriteTimeout = 5 * time.Second

// Orchestrator answers the questions of one job sequentially, in input order.
// A failing question is recorded against its own result and never stops the job.
type Orchestrator struct {
	jobs            JobStore
	answerer        Answerer
	questionTimeout time.Duration
	logger          *zap.Logger
}

// NewOrchestrator creates a job orchestrator. A zero questionTimeout disables
// the per-question deadline.
func NewOrchestrator(jobs JobStore, answerer Answerer, questionTimeout time.Duration, l *zap.Logger) *Orchestrator {
	return &Orchestrator{jobs: jobs, answerer: answerer, questionTimeout: questionTimeout, logger: l}
}

// Run processes a pending job. A missing job returns domain.ErrNotFound and is
// not retried. Jobs that already left pending are not resumed.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	start := time.Now()
	log := o.logger.With(zap.String("job_id", id))
	ctx = logger.ContextWithLogger(ctx, log)

	j, err := o.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("Job not found, nothing to run")
			return fmt.Errorf("run job: %w", err)
		}
		o.fail(ctx, id, fmt.Sprintf("load job: %v", err))
		return fmt.Errorf("load job %s: %w", id, err)
	}
	if j.Status != domjob.StatusPending {
		log.Warn("Job is not pending, skipping", zap.String("status", string(j.Status)))
		return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, id, j.Status)
	}

	if _, err := o.jobs.Update(ctx, id, domjob.Patch{Status: domjob.StatusProcessing}); err != nil {
		o.fail(ctx, id, fmt.Sprintf("start job: %v", err))
		return fmt.Errorf("start job %s: %w", id, err)
	}

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()
	log.Info("Job started", zap.Int("questions", len(j.Questions)))

	current := j
	for _, q := range j.Questions {
		res := o.answerOne(ctx, q, j.Instructions)
		current, err = o.jobs.AppendResult(ctx, id, res)
		if err != nil {
			o.fail(ctx, id, fmt.Sprintf("record result for %s: %v", q.ID, err))
			return fmt.Errorf("append result %s/%s: %w", id, q.ID, err)
		}
	}

	if !current.Terminal() {
		if current, err = o.jobs.Update(ctx, id, domjob.Patch{Status: domjob.StatusCompleted}); err != nil {
			o.fail(ctx, id, fmt.Sprintf("complete job: %v", err))
			return fmt.Errorf("complete job %s: %w", id, err)
		}
	}

	metrics.JobsTotal.WithLabelValues(string(domjob.StatusCompleted)).Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	log.Info("Job completed",
		zap.Int("answered", current.Answered()),
		zap.Int("failed", len(current.Results)-current.Answered()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) answerOne(ctx context.Context, q domjob.Question, instructions string) domjob.Result {
	qctx := logger.With(ctx, zap.String("question_id", q.ID))
	if o.questionTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(qctx, o.questionTimeout)
		defer cancel()
	}

	ans, err := o.answerer.Answer(qctx, q.Text, MergeContext(q.Context, instructions))
	if err != nil {
		metrics.JobQuestionsTotal.WithLabelValues("failed").Inc()
		logger.FromContext(qctx).Warn("Question failed", zap.Error(err))
		return domjob.Failed(q.ID, err)
	}
	metrics.JobQuestionsTotal.WithLabelValues("answered").Inc()
	return domjob.Answered(q.ID, ans.Text, ans.Citations)
}

// fail records a job-level failure. The write outlives a cancelled run context.
func (o *Orchestrator) fail(ctx context.Context, id, reason string) {
	log := logger.FromContextOr(ctx, o.logger)
	metrics.JobsTotal.WithLabelValues(string(domjob.StatusFailed)).Inc()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	if _, err := o.jobs.Update(wctx, id, domjob.Patch{Status: domjob.StatusFailed, Error: reason}); err != nil {
		log.Error("Failed to mark job failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	log.Error("Job failed", zap.String("reason", reason))
}

// MergeContext joins per-question context and job instructions, in that
// order, separated by a blank line. Empty parts are omitted.
func MergeContext(questionContext, instructions string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(questionContext); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(instructions); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}
