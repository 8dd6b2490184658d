package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
)

// RetryPolicy configures exponential backoff for provider calls.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	JitterPct  uint64
}

// RetryingProvider retries rate limits and transient provider failures.
type RetryingProvider struct {
	inner  Provider
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingProvider wraps inner with backoff. MaxRetries 0 disables retries.
func NewRetryingProvider(inner Provider, policy RetryPolicy, l *zap.Logger) *RetryingProvider {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	return &RetryingProvider{inner: inner, policy: policy, logger: l}
}

func (p *RetryingProvider) backoff() retry.Backoff {
	b := retry.NewExponential(p.policy.BaseDelay)
	if p.policy.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.policy.MaxDelay, b)
	}
	if p.policy.JitterPct > 0 {
		b = retry.WithJitterPercent(p.policy.JitterPct, b)
	}
	return retry.WithMaxRetries(p.policy.MaxRetries, b)
}

// Complete calls the inner provider, retrying while the failure is transient.
func (p *RetryingProvider) Complete(
	ctx context.Context, req conversation.Request,
) (conversation.Response, error) {
	attempt := 0
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (conversation.Response, error) {
		attempt++
		resp, err := p.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		reason := retryReason(err)
		if reason == "" {
			return conversation.Response{}, err
		}
		metrics.LLMRetriesTotal.WithLabelValues(reason).Inc()
		p.logger.Warn("Provider call failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return conversation.Response{}, retry.RetryableError(err)
	})
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	}
	return ""
}
