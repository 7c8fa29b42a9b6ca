package errors

import (
	"context"
	"errors"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

// FromDomain maps a service error onto its transport representation.
// Errors that are already an *AppError pass through unchanged.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	var validation *remediation.ValidationError
	if errors.As(err, &validation) {
		return ValidationError(validation.Error(), validation)
	}

	var conflict *remediation.ConflictError
	if errors.As(err, &conflict) {
		return Conflict(conflict.Error()).WithDetails(conflict)
	}

	var state *remediation.StateError
	if errors.As(err, &state) {
		return State(state.Error()).WithDetails(state)
	}

	switch {
	case errors.Is(err, remediation.ErrNotFound):
		return NotFound("Remediation action")
	case errors.Is(err, host.ErrNotFound):
		return NotFound("Host")
	case errors.Is(err, host.ErrAlreadyExists):
		return Conflict("Host already registered")
	case errors.Is(err, host.ErrInvalidCredentials):
		return Unauthorized("Invalid host credentials")
	case errors.Is(err, context.DeadlineExceeded):
		return ServiceUnavailable("Request timed out")
	}
	return Internal("Internal server error", err)
}
