package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domanswer "github.com/kailas-cloud/trustdesk/internal/domain/answer"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
	domusage "github.com/kailas-cloud/trustdesk/internal/domain/usage"
	healthuc "github.com/kailas-cloud/trustdesk/internal/usecase/health"
	"github.com/kailas-cloud/trustdesk/internal/usecase/retrieval"
)

// --- Mocks ---

type mockAnswerer struct {
	ans      domanswer.Answer
	err      error
	question string
	extra    string
	deadline bool
}

func (m *mockAnswerer) Answer(ctx context.Context, question, extra string) (domanswer.Answer, error) {
	m.question, m.extra = question, extra
	_, m.deadline = ctx.Deadline()
	return m.ans, m.err
}

type mockJobs struct {
	jobs      map[string]*domjob.Job
	submitErr error
	submitted []domjob.Question
}

func (m *mockJobs) Submit(_ context.Context, qs []domjob.Question, instructions string) (*domjob.Job, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = qs
	return domjob.New("job_1", qs, instructions, time.Now()), nil
}

func (m *mockJobs) Get(_ context.Context, id string) (*domjob.Job, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("get job: job %s: %w", id, domain.ErrNotFound)
}

type mockCached struct {
	matches []retrieval.CachedMatch
	added   cachedanswer.Entry
	err     error
}

func (m *mockCached) Match(_ string) []retrieval.CachedMatch { return m.matches }

func (m *mockCached) Add(q, a string, kws []string) (cachedanswer.Entry, error) {
	if m.err != nil {
		return cachedanswer.Entry{}, m.err
	}
	m.added = cachedanswer.Entry{ID: "qa_1", Question: q, Answer: a, Keywords: kws}
	return m.added, nil
}

type mockUsage struct{}

func (mockUsage) GetReport(_ context.Context, p domusage.Period) domusage.Report {
	return domusage.Report{Period: p, Model: "gpt-4o", Tokens: 1200}
}

type mockHealth struct {
	report healthuc.Report
}

func (m mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	answers *mockAnswerer
	jobs    *mockJobs
	cached  *mockCached
	health  mockHealth
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		answers: &mockAnswerer{},
		jobs:    &mockJobs{jobs: map[string]*domjob.Job{}},
		cached:  &mockCached{},
		health: mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	f.build(0)
	return f
}

func (f *fixture) build(answerTimeout time.Duration) {
	srv := NewServer(f.answers, f.jobs, f.cached, mockUsage{}, f.health, zap.NewNop()).
		WithAnswerTimeout(answerTimeout)
	r := chi.NewRouter()
	srv.Register(r)
	f.handler = r
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- Tests ---

func TestCreateAnswer(t *testing.T) {
	f := newFixture(t)
	f.answers.ans = domanswer.Answer{
		Text:      "Yes [SOC 2 Report]",
		Citations: []string{"SOC 2 Report"},
		Trace:     []domanswer.SearchCall{{Tool: "search_cached_answers", Arguments: map[string]any{"query": "soc2"}}},
		Turns:     2,
	}
	f.build(time.Minute)

	rr := f.do(http.MethodPost, "/v1/answers", `{"question":"Are you SOC 2 certified?","context":"EU customer"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[AnswerResponse](t, rr)

	if resp.Answer != "Yes [SOC 2 Report]" || resp.Turns != 2 || resp.Citations[0] != "SOC 2 Report" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Searches) != 1 || resp.Searches[0].Arguments["query"] != "soc2" {
		t.Errorf("searches = %+v", resp.Searches)
	}
	if f.answers.question != "Are you SOC 2 certified?" || f.answers.extra != "EU customer" {
		t.Errorf("answerer got %q / %q", f.answers.question, f.answers.extra)
	}
	if !f.answers.deadline {
		t.Error("expected answer deadline")
	}
}

func TestCreateAnswer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"validation", domain.NewValidationError("question", "must not be empty"), 400, CodeValidationFailed},
		{"budget", fmt.Errorf("budget check: %w", domain.ErrTokenBudgetExceeded), 402, CodeBudgetExceeded},
		{"rate limited", fmt.Errorf("provider turn 1: %w", domain.ErrRateLimited), 429, CodeRateLimited},
		{"provider", fmt.Errorf("provider turn 1: %w", domain.ErrProviderError), 502, CodeProviderError},
		{"turn limit", fmt.Errorf("%w: no final answer", domain.ErrTurnLimitExceeded), 502, CodeTurnLimitExceeded},
		{"deadline", fmt.Errorf("provider turn 3: %w", context.DeadlineExceeded), 504, CodeTimeout},
		{"internal", errors.New("redis: connection reset"), 500, CodeInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.answers.err = tc.err

			rr := f.do(http.MethodPost, "/v1/answers", `{"question":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
			if tc.code == CodeInternalError && resp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestCreateAnswer_InvalidBody(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/v1/answers", `{"question":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeBadRequest {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestSubmitJob(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/v1/jobs",
		`{"questions":[{"question":"Do you encrypt?"},{"id":"sso","question":"SSO?","context":"Okta"}],"instructions":"Be brief."}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/jobs/job_1" {
		t.Errorf("Location = %q", loc)
	}
	resp := decode[JobResponse](t, rr)
	if resp.Status != domjob.StatusPending || resp.Instructions != "Be brief." || resp.Results == nil {
		t.Errorf("resp = %+v", resp)
	}
	if f.jobs.submitted[1].ID != "sso" || f.jobs.submitted[1].Context != "Okta" {
		t.Errorf("submitted = %+v", f.jobs.submitted)
	}
}

func TestSubmitJob_Validation(t *testing.T) {
	f := newFixture(t)
	f.jobs.submitErr = domain.NewValidationError("questions", "must not be empty")

	rr := f.do(http.MethodPost, "/v1/jobs", `{"questions":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); !strings.Contains(resp.Message, "questions") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)
	j := domjob.New("job_abc", []domjob.Question{{ID: "q1", Text: "a"}}, "", time.Now())
	_ = j.AppendResult(domjob.Answered("q1", "Yes", nil), time.Now())
	f.jobs.jobs["job_abc"] = j

	rr := f.do(http.MethodGet, "/v1/jobs/job_abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[JobResponse](t, rr)
	if resp.Status != domjob.StatusCompleted || resp.Progress != 100 || resp.Results[0].Answer != "Yes" {
		t.Errorf("resp = %+v", resp)
	}

	if rr := f.do(http.MethodGet, "/v1/jobs/job_missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rr.Code)
	}
}

func TestCachedAnswers(t *testing.T) {
	f := newFixture(t)
	f.cached.matches = []retrieval.CachedMatch{{
		Entry: cachedanswer.Entry{ID: "qa_1", Question: "Is Zenlytic SOC2 certified?", Keywords: []string{"soc2"}},
		Score: 7,
	}}

	rr := f.do(http.MethodGet, "/v1/cached-answers?q=does+zenlytic+have+soc2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	list := decode[CachedAnswerList](t, rr)
	if len(list.Items) != 1 || list.Items[0].Score != 7 || list.Items[0].ID != "qa_1" {
		t.Errorf("list = %+v", list)
	}

	if rr := f.do(http.MethodGet, "/v1/cached-answers", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", rr.Code)
	}

	rr = f.do(http.MethodPost, "/v1/cached-answers", `{"question":"MFA?","answer":"Yes","keywords":["mfa"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rr.Code)
	}
	if e := decode[cachedanswer.Entry](t, rr); e.ID != "qa_1" || e.Keywords[0] != "mfa" {
		t.Errorf("entry = %+v", e)
	}
}

func TestGetUsage(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/v1/usage?period=day", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if r := decode[domusage.Report](t, rr); r.Period != domusage.PeriodDay || r.Tokens != 1200 {
		t.Errorf("report = %+v", r)
	}

	if rr := f.do(http.MethodGet, "/v1/usage?period=week", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid period status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rr.Code)
	}

	f.health = mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "llm": healthuc.CheckError},
	}}
	f.build(0)

	rr := f.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", rr.Code)
	}
	if resp := decode[HealthResponse](t, rr); resp.Status != "degraded" || resp.Checks["llm"] != "error" {
		t.Errorf("resp = %+v", resp)
	}
}
