package trustdesk

import "time"

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

// JobStatus constants.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// SearchCall is one retrieval performed while answering.
type SearchCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Answer is a synchronous answer with its citations and search trace.
type Answer struct {
	Answer    string       `json:"answer"`
	Citations []string     `json:"citations"`
	Searches  []SearchCall `json:"searches"`
	Turns     int          `json:"turns"`
}

// JobQuestion is one question of a batch. ID is assigned by the server when empty.
type JobQuestion struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// JobRequest submits a batch of questions.
type JobRequest struct {
	Questions    []JobQuestion `json:"questions"`
	Instructions string        `json:"instructions,omitempty"`
}

// JobResult is the outcome of one question. Exactly one of Answer or Error is set.
type JobResult struct {
	QuestionID string   `json:"question_id"`
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Error      string   `json:"error,omitempty"`
}

// Job is a batch job snapshot.
type Job struct {
	ID           string        `json:"id"`
	Status       JobStatus     `json:"status"`
	Progress     int           `json:"progress"`
	Questions    []JobQuestion `json:"questions"`
	Instructions string        `json:"instructions,omitempty"`
	Results      []JobResult   `json:"results"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CachedAnswer is an approved question/answer pair.
type CachedAnswer struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedAnswerMatch is a scored cached answer search hit.
type CachedAnswerMatch struct {
	CachedAnswer
	Score int `json:"score"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"` // component -> "ok"/"error"
}

// UsagePeriod is the aggregation window for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport is token consumption for the current day or month.
type UsageReport struct {
	Period      UsagePeriod  `json:"period"`
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Model       string       `json:"model"`
	Tokens      int64        `json:"tokens"`
	CostUSD     float64      `json:"cost_usd"`
	Budget      BudgetStatus `json:"budget"`
}

// BudgetStatus tracks token quota state. A negative TokensRemaining means unlimited.
type BudgetStatus struct {
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	ResetsAt        time.Time `json:"resets_at"`
}
