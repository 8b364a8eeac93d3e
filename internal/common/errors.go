package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound     = errors.New("requested resource not found")
	ErrAuthRequired = errors.New("authentication required")
	// ErrAccessDenied is a 403 from us or from a collaborator; it is
	// surfaced with an explicit message and never retried.
	ErrAccessDenied = errors.New("access denied")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrValidation   = errors.New("validation failed")
	// ErrCollaborator is any non-2xx from an external collaborator, e.g.
	// the execution sandbox.
	ErrCollaborator = errors.New("collaborator request failed")
	// ErrGateViolation marks an action the access gate disallows. It is a
	// refusal, not a failure: callers surface a notice and carry on.
	ErrGateViolation = errors.New("action not permitted in current contest phase")
	// ErrSessionBusy rejects a run/submit while another execution for the
	// same session is in flight.
	ErrSessionBusy = errors.New("an execution is already in progress")
	// ErrProblemLocked refuses run/submit for a problem that already has an
	// accepted submission.
	ErrProblemLocked = errors.New("problem already accepted; further submissions are locked")
	ErrSessionClosed = errors.New("contest session is closed")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrGateViolation),
		errors.Is(err, ErrProblemLocked), errors.Is(err, ErrSessionClosed):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, ErrCollaborator):
		return http.StatusBadGateway
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique violation
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
