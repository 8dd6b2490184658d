package chi

import (
	"time"

	domanswer "github.com/kailas-cloud/trustdesk/internal/domain/answer"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
	"github.com/kailas-cloud/trustdesk/internal/usecase/retrieval"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeBudgetExceeded    ErrorCode = "token_budget_exceeded"
	CodeProviderError     ErrorCode = "llm_provider_error"
	CodeTurnLimitExceeded ErrorCode = "turn_limit_exceeded"
	CodeTimeout           ErrorCode = "timeout"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnswerRequest is the body of POST /v1/answers.
type AnswerRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// AnswerResponse mirrors domain answer.Answer.
type AnswerResponse struct {
	Answer    string                 `json:"answer"`
	Citations []string               `json:"citations"`
	Searches  []domanswer.SearchCall `json:"searches"`
	Turns     int                    `json:"turns"`
}

// JobQuestion is one question of a submitted batch.
type JobQuestion struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// SubmitJobRequest is the body of POST /v1/jobs.
type SubmitJobRequest struct {
	Questions    []JobQuestion `json:"questions"`
	Instructions string        `json:"instructions,omitempty"`
}

// JobResponse is a batch job as returned to pollers.
type JobResponse struct {
	ID           string          `json:"id"`
	Status       domjob.Status   `json:"status"`
	Progress     int             `json:"progress"`
	Questions    []JobQuestion   `json:"questions"`
	Instructions string          `json:"instructions,omitempty"`
	Results      []domjob.Result `json:"results"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CachedAnswerRequest is the body of POST /v1/cached-answers.
type CachedAnswerRequest struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

// CachedAnswerMatch is one scored search hit.
type CachedAnswerMatch struct {
	cachedanswer.Entry
	Score int `json:"score"`
}

// CachedAnswerList is the body of GET /v1/cached-answers.
type CachedAnswerList struct {
	Items []CachedAnswerMatch `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func answerToResponse(a domanswer.Answer) AnswerResponse {
	return AnswerResponse{Answer: a.Text, Citations: a.Citations, Searches: a.Trace, Turns: a.Turns}
}

func jobToResponse(j *domjob.Job) JobResponse {
	qs := make([]JobQuestion, len(j.Questions))
	for i, q := range j.Questions {
		qs[i] = JobQuestion{ID: q.ID, Question: q.Text, Context: q.Context}
	}
	results := j.Results
	if results == nil {
		results = []domjob.Result{}
	}
	return JobResponse{
		ID:           j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		Questions:    qs,
		Instructions: j.Instructions,
		Results:      results,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func questionsFromRequest(in []JobQuestion) []domjob.Question {
	out := make([]domjob.Question, len(in))
	for i, q := range in {
		out[i] = domjob.Question{ID: q.ID, Text: q.Question, Context: q.Context}
	}
	return out
}

func matchesToList(ms []retrieval.CachedMatch) CachedAnswerList {
	items := make([]CachedAnswerMatch, len(ms))
	for i, m := range ms {
		items[i] = CachedAnswerMatch{Entry: m.Entry, Score: m.Score}
	}
	return CachedAnswerList{Items: items}
}
