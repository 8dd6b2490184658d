package llm

import (
	"context"

	"github.com/kailas-cloud/trustdesk/internal/domain/conversation"
)

// Provider completes one turn of a tool-calling conversation.
type Provider interface {
	Complete(ctx context.Context, req conversation.Request) (conversation.Response, error)
}

// BudgetStore is the persistence interface for budget counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}
