package batch

import (
	"context"
	"time"

	domanswer "github.com/kailas-cloud/trustdesk/internal/domain/answer"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

// JobStore persists batch jobs.
type JobStore interface {
	Create(ctx context.Context, questions []domjob.Question, instructions string) (*domjob.Job, error)
	Get(ctx context.Context, id string) (*domjob.Job, error)
	Update(ctx context.Context, id string, p domjob.Patch) (*domjob.Job, error)
	AppendResult(ctx context.Context, id string, r domjob.Result) (*domjob.Job, error)
	List(ctx context.Context) ([]*domjob.Job, error)
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}

// Answerer answers one question with optional extra context.
type Answerer interface {
	Answer(ctx context.Context, question, extra string) (domanswer.Answer, error)
}

// Runner processes one stored job to a terminal status.
type Runner interface {
	Run(ctx context.Context, id string) error
}

// Scheduler hands a created job off for detached execution.
type Scheduler interface {
	Dispatch(id string)
}

// QueueTracker reports whether a job is queued or running in this process.
type QueueTracker interface {
	Holds(id string) bool
}
