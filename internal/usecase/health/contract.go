package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks answering model availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}
