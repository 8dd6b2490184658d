package job

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/trustdesk/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func questions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{ID: string(rune('a' + i)), Text: "q"}
	}
	return qs
}

func TestNew_Pending(t *testing.T) {
	j := New("job_1", questions(2), "be brief", t0)

	if j.Status != StatusPending {
		t.Errorf("Status = %s, want pending", j.Status)
	}
	if j.Progress != 0 || len(j.Results) != 0 {
		t.Errorf("expected empty progress, got %d / %v", j.Progress, j.Results)
	}
	if !j.CreatedAt.Equal(t0) || !j.UpdatedAt.Equal(t0) {
		t.Error("timestamps not initialized")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusFailed, StatusCompleted, false},
		{StatusPending, Status("archived"), false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			j := &Job{Status: tc.from}
			if got := j.CanTransition(tc.to); got != tc.want {
				t.Errorf("CanTransition = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTransition_Backwards(t *testing.T) {
	j := New("job_1", questions(1), "", t0)
	if err := j.Transition(StatusProcessing, "", t0.Add(time.Second)); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	err := j.Transition(StatusPending, "", t0.Add(2*time.Second))
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if j.Status != StatusProcessing {
		t.Errorf("status changed on rejected transition: %s", j.Status)
	}
}

func TestTransition_FailedKeepsReason(t *testing.T) {
	j := New("job_1", questions(1), "", t0)
	if err := j.Transition(StatusFailed, "store unavailable", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if j.Error != "store unavailable" {
		t.Errorf("Error = %q", j.Error)
	}
	if !j.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Error("UpdatedAt not refreshed")
	}
}

func TestAppendResult_ProgressAndCompletion(t *testing.T) {
	j := New("job_1", questions(3), "", t0)
	_ = j.Transition(StatusProcessing, "", t0)

	wantProgress := []int{33, 67, 100}
	for i, want := range wantProgress {
		r := Answered(j.Questions[i].ID, "yes", nil)
		if err := j.AppendResult(r, t0.Add(time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("AppendResult %d: %v", i, err)
		}
		if j.Progress != want {
			t.Errorf("after %d results progress = %d, want %d", i+1, j.Progress, want)
		}
		if j.Progress != ProgressOf(len(j.Results), len(j.Questions)) {
			t.Error("progress diverged from results")
		}
	}
	if j.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", j.Status)
	}
}

func TestAppendResult_RejectsTerminal(t *testing.T) {
	j := New("job_1", questions(2), "", t0)
	_ = j.Transition(StatusFailed, "boom", t0)

	err := j.AppendResult(Answered("a", "x", nil), t0)
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
}

func TestAppendResult_RejectsOverflow(t *testing.T) {
	j := New("job_1", questions(1), "", t0)
	j.Results = []Result{Answered("a", "x", nil)}

	err := j.AppendResult(Answered("a", "x", nil), t0)
	if !errors.Is(err, domain.ErrResultsOverflow) {
		t.Fatalf("expected ErrResultsOverflow, got %v", err)
	}
	if len(j.Results) != 1 {
		t.Errorf("results grew past questions: %d", len(j.Results))
	}
}

func TestFailedResult(t *testing.T) {
	r := Failed("q2", errors.New("retrieval exploded"))
	if r.OK() || r.Answer != "" || len(r.Citations) != 0 || r.Error == "" {
		t.Errorf("unexpected failed result %+v", r)
	}
}

func TestFailedResult_JSONShape(t *testing.T) {
	data, err := json.Marshal(Failed("q2", errors.New("timed out")))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"question_id":"q2","answer":"","citations":[],"error":"timed out"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	data, err = json.Marshal(Result{QuestionID: "q1", Answer: "Yes."})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"question_id":"q1","answer":"Yes.","citations":[]}`; string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestProgressOf(t *testing.T) {
	tests := []struct{ done, total, want int }{
		{0, 0, 0},
		{0, 4, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{5, 5, 100},
	}
	for _, tc := range tests {
		if got := ProgressOf(tc.done, tc.total); got != tc.want {
			t.Errorf("ProgressOf(%d,%d) = %d, want %d", tc.done, tc.total, got, tc.want)
		}
	}
}
