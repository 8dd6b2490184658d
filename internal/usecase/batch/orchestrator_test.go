package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

func submit(t *testing.T, jobs *memJobs, questions []domjob.Question, instructions string) *domjob.Job {
	t.Helper()
	j, err := New(jobs, &recordingScheduler{}).Submit(context.Background(), questions, instructions)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return j
}

func TestRun_IsolatesQuestionFailure(t *testing.T) {
	jobs := newMemJobs()
	answerer := &fakeAnswerer{fail: map[string]error{
		"Do you pentest annually?": errors.New("search_workspace: workspace API returned 500"),
	}}
	j := submit(t, jobs, []domjob.Question{
		{Text: "Are you SOC 2 certified?"},
		{Text: "Do you pentest annually?"},
		{Text: "Do you encrypt backups?"},
	}, "")

	o := NewOrchestrator(jobs, answerer, time.Minute, zap.NewNop())
	if err := o.Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := jobs.job(j.ID)
	if got.Status != domjob.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(got.Results) != 3 || got.Progress != 100 {
		t.Fatalf("results = %d, progress = %d", len(got.Results), got.Progress)
	}
	for i, r := range got.Results {
		if r.QuestionID != got.Questions[i].ID {
			t.Errorf("result %d answers %s, want %s", i, r.QuestionID, got.Questions[i].ID)
		}
	}
	if r := got.Results[1]; r.Answer != "" || len(r.Citations) != 0 || r.Error == "" {
		t.Errorf("failed result = %+v", r)
	}
	if got.Results[0].Answer == "" || got.Results[2].Answer == "" {
		t.Error("sibling questions must still be answered")
	}
	if got.Results[0].Citations[0] != "Security Policy" {
		t.Errorf("citations = %v", got.Results[0].Citations)
	}
	if got.Error != "" {
		t.Errorf("job error = %q, want none", got.Error)
	}

	for _, a := range jobs.appends {
		if a[0] > a[1] || a[2] != domjob.ProgressOf(a[0], a[1]) {
			t.Errorf("inconsistent progress snapshot %v", a)
		}
	}
}

func TestRun_MergesContextAndInstructions(t *testing.T) {
	jobs := newMemJobs()
	answerer := &fakeAnswerer{}
	j := submit(t, jobs, []domjob.Question{
		{Text: "a", Context: "Customer is a bank."},
		{Text: "b"},
	}, "Keep answers short.")

	if err := NewOrchestrator(jobs, answerer, 0, zap.NewNop()).Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"Customer is a bank.\n\nKeep answers short.", "Keep answers short."}
	if strings.Join(answerer.extras, "|") != strings.Join(want, "|") {
		t.Errorf("extras = %q, want %q", answerer.extras, want)
	}
}

func TestMergeContext(t *testing.T) {
	tests := []struct {
		ctx, instr, want string
	}{
		{"", "", ""},
		{"ctx", "", "ctx"},
		{"", "instr", "instr"},
		{" ctx ", " instr ", "ctx\n\ninstr"},
	}
	for _, tc := range tests {
		if got := MergeContext(tc.ctx, tc.instr); got != tc.want {
			t.Errorf("MergeContext(%q, %q) = %q, want %q", tc.ctx, tc.instr, got, tc.want)
		}
	}
}

func TestRun_NotFound(t *testing.T) {
	jobs := newMemJobs()

	err := NewOrchestrator(jobs, &fakeAnswerer{}, 0, zap.NewNop()).Run(context.Background(), "job_missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(jobs.updates) != 0 {
		t.Errorf("missing job must not be written, updates = %v", jobs.updates)
	}
}

func TestRun_LoadFailureMarksFailed(t *testing.T) {
	jobs := newMemJobs()
	j := submit(t, jobs, []domjob.Question{{Text: "a"}}, "")
	jobs.getErr = errors.New("connection refused")

	if err := NewOrchestrator(jobs, &fakeAnswerer{}, 0, zap.NewNop()).Run(context.Background(), j.ID); err == nil {
		t.Fatal("expected error")
	}

	got := jobs.job(j.ID)
	if got.Status != domjob.StatusFailed || !strings.Contains(got.Error, "load job") {
		t.Errorf("job = %s %q", got.Status, got.Error)
	}
	if len(got.Results) != 0 {
		t.Error("no results may be fabricated")
	}
}

func TestRun_AppendFailureIsJobFatal(t *testing.T) {
	jobs := newMemJobs()
	j := submit(t, jobs, []domjob.Question{{Text: "a"}, {Text: "b"}}, "")
	jobs.appendErr = errors.New("store unavailable")
	answerer := &fakeAnswerer{}

	if err := NewOrchestrator(jobs, answerer, 0, zap.NewNop()).Run(context.Background(), j.ID); err == nil {
		t.Fatal("expected error")
	}

	got := jobs.job(j.ID)
	if got.Status != domjob.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "record result for q1") {
		t.Errorf("error = %q", got.Error)
	}
	if len(answerer.extras) != 1 {
		t.Errorf("processing must stop after a storage failure, answered %d", len(answerer.extras))
	}
}

func TestRun_SkipsJobThatLeftPending(t *testing.T) {
	jobs := newMemJobs()
	j := submit(t, jobs, []domjob.Question{{Text: "a"}}, "")
	if _, err := jobs.Update(context.Background(), j.ID, domjob.Patch{Status: domjob.StatusProcessing}); err != nil {
		t.Fatal(err)
	}
	answerer := &fakeAnswerer{}

	err := NewOrchestrator(jobs, answerer, 0, zap.NewNop()).Run(context.Background(), j.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(answerer.extras) != 0 {
		t.Error("interrupted jobs must not be resumed")
	}
}

func TestRun_QuestionTimeout(t *testing.T) {
	jobs := newMemJobs()
	j := submit(t, jobs, []domjob.Question{{Text: "slow"}}, "")
	answerer := &fakeAnswerer{block: true}

	if err := NewOrchestrator(jobs, answerer, 20*time.Millisecond, zap.NewNop()).Run(context.Background(), j.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := jobs.job(j.ID)
	if got.Status != domjob.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if !strings.Contains(got.Results[0].Error, "deadline exceeded") {
		t.Errorf("error = %q", got.Results[0].Error)
	}
}
