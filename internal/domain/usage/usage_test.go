package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/trustdesk/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{"": PeriodMonth, "day": PeriodDay, "month": PeriodMonth} {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Errorf("ParsePeriod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePeriod("total"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNewBudget(t *testing.T) {
	reset := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	b := NewBudget(1000000, 615800, reset)
	if b.Limit != 1000000 || b.Remaining != 615800 || b.Exhausted {
		t.Errorf("budget = %+v", b)
	}
	if !NewBudget(1000, 0, reset).Exhausted {
		t.Error("zero remaining should be exhausted")
	}
	if u := NewBudget(0, -1, reset); u.Limit != 0 || u.Exhausted {
		t.Errorf("unlimited budget = %+v", u)
	}
}

func TestWindow(t *testing.T) {
	at := time.Date(2026, 12, 31, 18, 30, 0, 0, time.UTC)

	start, end := Window(PeriodDay, at)
	if !start.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day window = %v..%v", start, end)
	}
	start, end = Window(PeriodMonth, at)
	if !start.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month window = %v..%v", start, end)
	}
}

func TestCost(t *testing.T) {
	if c := Cost(384200, 2.5); c != 0.96 {
		t.Errorf("Cost = %v, want 0.96", c)
	}
	if Cost(1000, 0) != 0 {
		t.Error("zero rate should cost nothing")
	}
}
