package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// API layer without a switch statement growing per error type.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates a cross-user access attempt
	ForbiddenError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Is implementations so errors.Is() matches the sentinels below
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	// ErrNotFound signals an absent session or resource on a read path.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTurn signals a uniqueness violation on
	// (session_id, turn_number). The losing writer performs no write.
	ErrDuplicateTurn = errors.New("duplicate turn")

	// ErrUnknownTurn signals an agent log referencing a turn that does
	// not exist.
	ErrUnknownTurn = errors.New("unknown turn")

	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrUpstreamUnavailable signals that the orchestration engine could
	// not be reached. Callers surface this as a degraded state.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// DuplicateTurnError identifies the (session_id, turn_number) pair that
// already exists. Implements HTTPError for extensible error handling.
type DuplicateTurnError struct {
	SessionID  string
	TurnNumber int
}

// Error implements the error interface
func (e *DuplicateTurnError) Error() string {
	return fmt.Sprintf("turn %d already exists for session %s", e.TurnNumber, e.SessionID)
}

// StatusCode implements the HTTPError interface
func (e *DuplicateTurnError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrDuplicateTurn
func (e *DuplicateTurnError) Is(target error) bool {
	return target == ErrDuplicateTurn
}

// UnknownTurnError identifies the missing turn an agent log referenced.
type UnknownTurnError struct {
	TurnID string
}

// Error implements the error interface
func (e *UnknownTurnError) Error() string {
	return fmt.Sprintf("turn %s does not exist", e.TurnID)
}

// StatusCode implements the HTTPError interface
func (e *UnknownTurnError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrUnknownTurn
func (e *UnknownTurnError) Is(target error) bool {
	return target == ErrUnknownTurn
}
