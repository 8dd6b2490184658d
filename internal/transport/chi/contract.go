package chi

import (
	"context"

	domanswer "github.com/kailas-cloud/trustdesk/internal/domain/answer"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
	domusage "github.com/kailas-cloud/trustdesk/internal/domain/usage"
	healthuc "github.com/kailas-cloud/trustdesk/internal/usecase/health"
	"github.com/kailas-cloud/trustdesk/internal/usecase/retrieval"
)

// Answerer answers one question synchronously.
type Answerer interface {
	Answer(ctx context.Context, question, extra string) (domanswer.Answer, error)
}

// JobService submits and reads batch jobs.
type JobService interface {
	Submit(ctx context.Context, questions []domjob.Question, instructions string) (*domjob.Job, error)
	Get(ctx context.Context, id string) (*domjob.Job, error)
}

// CachedAnswerService searches and curates approved answers.
type CachedAnswerService interface {
	Match(query string) []retrieval.CachedMatch
	Add(question, answer string, keywords []string) (cachedanswer.Entry, error)
}

// UsageReporter builds token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
