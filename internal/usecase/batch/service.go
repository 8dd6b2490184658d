// Package batch accepts question batches and drives them to completion
// outside the request that submitted them.
package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

// DefaultMaxQuestions is the maximum number of questions per job.
const DefaultMaxQuestions = 200

// Service creates batch jobs and serves their status.
type Service struct {
	jobs         JobStore
	sched        Scheduler
	maxQuestions int
}

// New creates a batch service.
func New(jobs JobStore, sched Scheduler) *Service {
	return &Service{jobs: jobs, sched: sched, maxQuestions: DefaultMaxQuestions}
}

// WithMaxQuestions configures the maximum batch size.
func (s *Service) WithMaxQuestions(n int) *Service {
	if n > 0 {
		s.maxQuestions = n
	}
	return s
}

// Submit validates the batch, persists a pending job and dispatches it.
// Questions without an id are numbered q1..qN by position.
func (s *Service) Submit(ctx context.Context, questions []domjob.Question, instructions string) (*domjob.Job, error) {
	normalized, err := s.normalize(questions)
	if err != nil {
		return nil, err
	}

	j, err := s.jobs.Create(ctx, normalized, strings.TrimSpace(instructions))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.sched.Dispatch(j.ID)
	return j, nil
}

// Get returns a job for polling.
func (s *Service) Get(ctx context.Context, id string) (*domjob.Job, error) {
	j, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *Service) normalize(questions []domjob.Question) ([]domjob.Question, error) {
	if len(questions) == 0 {
		return nil, domain.NewValidationError("questions", "must not be empty")
	}
	if len(questions) > s.maxQuestions {
		return nil, domain.NewValidationError("questions",
			fmt.Sprintf("must contain at most %d items, got %d", s.maxQuestions, len(questions)))
	}

	out := make([]domjob.Question, len(questions))
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("questions[%d].question", i), "must not be empty")
		}
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if seen[q.ID] {
			return nil, domain.NewValidationError(fmt.Sprintf("questions[%d].id", i),
				fmt.Sprintf("duplicate id %q", q.ID))
		}
		seen[q.ID] = true
		q.Context = strings.TrimSpace(q.Context)
		out[i] = q
	}
	return out, nil
}
