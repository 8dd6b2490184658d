// Package usage describes LLM token consumption against the configured budget.
package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/trustdesk/internal/domain"
)

// Period is the budget window.
type Period string

// Budget windows.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodMonth:
		return Period(s), nil
	}
	return "", domain.NewValidationError("period", fmt.Sprintf("must be %q or %q, got %q", PeriodDay, PeriodMonth, s))
}

// Budget is the token allowance for one window. Limit 0 means unlimited.
type Budget struct {
	Limit     int64     `json:"tokens_limit"`
	Remaining int64     `json:"tokens_remaining"`
	Exhausted bool      `json:"is_exhausted"`
	ResetsAt  time.Time `json:"resets_at"`
}

// NewBudget builds a budget snapshot. A negative remaining marks an unlimited budget.
func NewBudget(limit, remaining int64, resetsAt time.Time) Budget {
	if limit <= 0 || remaining < 0 {
		return Budget{ResetsAt: resetsAt}
	}
	return Budget{Limit: limit, Remaining: remaining, Exhausted: remaining == 0, ResetsAt: resetsAt}
}

// Report is token usage of the answering model over one window.
type Report struct {
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Model       string    `json:"model"`
	Tokens      int64     `json:"tokens"`
	CostUSD     float64   `json:"cost_usd"`
	Budget      Budget    `json:"budget"`
}

// Cost prices tokens at a per-million rate, rounded to cents.
func Cost(tokens int64, perMillion float64) float64 {
	if tokens <= 0 || perMillion <= 0 {
		return 0
	}
	return math.Round(float64(tokens)*perMillion/1e6*100) / 100
}

// Window returns the [start, end) bounds of the period containing t, in UTC.
func Window(p Period, t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	if p == PeriodDay {
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
