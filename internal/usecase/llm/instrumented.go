package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/logger"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// InstrumentedProvider wraps a Provider with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedProvider struct {
	inner  Provider
	model  string
	budget BudgetChecker
	logger *zap.Logger
}

// NewInstrumentedProvider wraps a provider with budget and observability. budget can be nil.
func NewInstrumentedProvider(inner Provider, model string, budget BudgetChecker, l *zap.Logger) *InstrumentedProvider {
	return &InstrumentedProvider{
		inner:  inner,
		model:  model,
		budget: budget,
		logger: l,
	}
}

// Complete checks the budget, delegates to the inner provider and records usage.
func (p *InstrumentedProvider) Complete(
	ctx context.Context, req conversation.Request,
) (conversation.Response, error) {
	log := logger.FromContextOr(ctx, p.logger)

	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			log.Error("Budget exceeded",
				zap.String("model", p.model),
				zap.Error(err),
			)
			return conversation.Response{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	resp, err := p.inner.Complete(ctx, req)

	duration := time.Since(start)

	if err != nil {
		log.Error("Completion request failed",
			zap.String("model", p.model),
			zap.Int("turns", len(req.Turns)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return conversation.Response{}, fmt.Errorf("complete: %w", err)
	}

	if total := resp.Usage.Total(); p.budget != nil && total > 0 {
		p.budget.Record(int64(total))
		remaining := metrics.LLMBudgetTokensRemaining
		remaining.WithLabelValues("daily").Set(float64(p.budget.RemainingDaily()))
		remaining.WithLabelValues("monthly").Set(float64(p.budget.RemainingMonthly()))
	}

	log.Debug("Completion request completed",
		zap.String("model", p.model),
		zap.Int("turns", len(req.Turns)),
		zap.Bool("wants_tools", resp.WantsTools()),
		zap.Duration("duration", duration),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)

	return resp, nil
}
