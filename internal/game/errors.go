package game

import (
	"errors"
	"fmt"
)

// Every failure mode the engine can surface is a distinct error kind, so the
// HTTP layer can map each to a specific status and message without
// string-matching.
var (
	// ErrQuotaExhausted: no moves left today.
	ErrQuotaExhausted = errors.New("daily move quota exhausted")
	// ErrRoundInProgress: the user already has an active round.
	ErrRoundInProgress = errors.New("a round is already in progress")
	// ErrRoundNotActive: the round already reached a terminal state.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrForbidden: the round belongs to a different user.
	ErrForbidden = errors.New("round belongs to another user")
	// ErrLocationUnavailable: the content store returned no candidate.
	ErrLocationUnavailable = errors.New("no location available")
	// ErrNotFound: unknown user, location, or round id.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a concurrent-write race was lost. Retried once internally
	// before it ever reaches a caller.
	ErrConflict = errors.New("persistence conflict")
)

// ValidationError marks malformed input, distinct from the business-rule
// errors above.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
