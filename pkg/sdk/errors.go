package trustdesk

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/trustdesk/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrInvalidRequest      = domain.ErrInvalidRequest
	ErrConflict            = domain.ErrInvalidTransition
	ErrRateLimited         = domain.ErrRateLimited
	ErrTokenBudgetExceeded = domain.ErrTokenBudgetExceeded
	ErrTurnLimitExceeded   = domain.ErrTurnLimitExceeded
	ErrProviderError       = domain.ErrProviderError

	// ErrUnauthorized signals a missing or rejected API key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTimeout signals the server gave up on an answer.
	ErrTimeout = errors.New("server timeout")
	// ErrJobFailed is returned by WaitJob when the job ends in failed status.
	ErrJobFailed = errors.New("job failed")
)

var codeErrors = map[string]error{
	"bad_request":           ErrInvalidRequest,
	"validation_failed":     ErrInvalidRequest,
	"unauthorized":          ErrUnauthorized,
	"not_found":             ErrNotFound,
	"conflict":              ErrConflict,
	"rate_limited":          ErrRateLimited,
	"token_budget_exceeded": ErrTokenBudgetExceeded,
	"llm_provider_error":    ErrProviderError,
	"turn_limit_exceeded":   ErrTurnLimitExceeded,
	"timeout":               ErrTimeout,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("trustdesk: http %d", e.StatusCode)
	}
	return fmt.Sprintf("trustdesk: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the error code to a sentinel so errors.Is works across the wire.
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
