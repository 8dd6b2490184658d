// Package job models asynchronous batch answering jobs.
package job

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/trustdesk/internal/domain"
)

// Status is the lifecycle state of a batch job.
type Status string

// Job statuses. Transitions only move forward:
// pending -> processing -> completed | failed, or pending -> failed.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// Question is one item of a batch.
type Question struct {
	ID      string `json:"id"`
	Text    string `json:"question"`
	Context string `json:"context,omitempty"`
}

// Result is the per-question outcome. Exactly one of Answer or Error is set.
// Answer and Citations are always encoded so failed results keep the same shape.
type Result struct {
	QuestionID string   `json:"question_id"`
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Error      string   `json:"error,omitempty"`
}

// MarshalJSON encodes missing citations as an empty list.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.Citations == nil {
		r.Citations = []string{}
	}
	return json.Marshal(plain(r))
}

// Answered creates a successful result.
func Answered(questionID, answer string, citations []string) Result {
	return Result{QuestionID: questionID, Answer: answer, Citations: citations}
}

// Failed creates a failed result. The job itself keeps going.
func Failed(questionID string, err error) Result {
	return Result{QuestionID: questionID, Citations: []string{}, Error: err.Error()}
}

// OK reports whether the question was answered.
func (r Result) OK() bool { return r.Error == "" }

// Patch is a partial update. Zero fields are left unchanged.
type Patch struct {
	Status Status
	Error  string
}

// Job is a persisted batch of questions and their results.
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Questions    []Question `json:"questions"`
	Instructions string     `json:"instructions,omitempty"`
	Results      []Result   `json:"results"`
	Progress     int        `json:"progress"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New creates a pending job.
func New(id string, questions []Question, instructions string, now time.Time) *Job {
	return &Job{
		ID:           id,
		Status:       StatusPending,
		Questions:    questions,
		Instructions: instructions,
		Results:      []Result{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool { return j.Status.Terminal() }

// CanTransition reports whether moving to the given status is allowed.
// Re-applying the current non-terminal status is allowed and a no-op.
func (j *Job) CanTransition(to Status) bool {
	if !to.Valid() {
		return false
	}
	if j.Status == to {
		return !j.Status.Terminal()
	}
	if j.Status.Terminal() {
		return false
	}
	return to.rank() > j.Status.rank()
}

// Transition moves the job to a new status and records a failure reason.
func (j *Job) Transition(to Status, reason string, now time.Time) error {
	if !j.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	if reason != "" {
		j.Error = reason
	}
	j.UpdatedAt = now
	return nil
}

// AppendResult records one question outcome and recomputes progress.
// Once the last result lands the job completes.
func (j *Job) AppendResult(r Result, now time.Time) error {
	if j.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrJobTerminal, j.Status)
	}
	if len(j.Results) >= len(j.Questions) {
		return domain.ErrResultsOverflow
	}
	j.Results = append(j.Results, r)
	j.Progress = ProgressOf(len(j.Results), len(j.Questions))
	j.UpdatedAt = now
	if len(j.Results) == len(j.Questions) {
		j.Status = StatusCompleted
	}
	return nil
}

// Answered counts successfully answered questions.
func (j *Job) Answered() int {
	n := 0
	for _, r := range j.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// ProgressOf returns round(100*done/total), 0 for an empty batch.
func ProgressOf(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
