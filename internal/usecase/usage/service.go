package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/trustdesk/internal/domain/usage"
)

// Service handles token usage reporting.
type Service struct {
	br         BudgetReader
	model      string
	perMillion float64
	now        func() time.Time
}

// New creates a Service. br can be nil (unlimited, untracked).
func New(br BudgetReader, model string, costPerMillionTokens float64) *Service {
	return &Service{br: br, model: model, perMillion: costPerMillionTokens, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	start, end := domusage.Window(period, s.now())
	var limit, used, remaining int64 = 0, 0, -1

	if s.br != nil {
		switch period {
		case domusage.PeriodDay:
			limit, used, remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
		default:
			limit, used, remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	}

	return domusage.Report{
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
		Model:       s.model,
		Tokens:      used,
		CostUSD:     domusage.Cost(used, s.perMillion),
		Budget:      domusage.NewBudget(limit, remaining, end),
	}
}
