package domain

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("questions", "must not be empty")

	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("expected errors.Is(err, ErrInvalidRequest)")
	}
	if err.Error() != "invalid request: questions must not be empty" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
