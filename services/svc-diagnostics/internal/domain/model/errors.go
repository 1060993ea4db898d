package model

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound        = errors.New("health check run not found")
	ErrInvalidRunID       = errors.New("invalid health check run ID")
	ErrRunTerminal        = errors.New("health check run is already terminal")
	ErrUnknownProbe       = errors.New("unknown probe")
	ErrStoreUnavailable   = errors.New("run store unavailable")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrUnknownCollection  = errors.New("unknown monitored collection")
	ErrProbeTimeout       = errors.New("probe timed out")
	ErrProbePanicked      = errors.New("probe panicked")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
)

type ValidationError struct {
	Field   string
	Message string
	Code    string
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	return v.Errors[0].Message
}

func (v *ValidationErrors) Add(field, message, code string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// OrchestratorError is a failure that aborts a whole run.
type OrchestratorError struct {
	RunID RunID
	Probe ProbeName
	Cause error
}

func (e *OrchestratorError) Error() string {
	if e.Probe == "" {
		return fmt.Sprintf("run %s: %v", e.RunID, e.Cause)
	}

	return fmt.Sprintf("run %s: probe %s: %v", e.RunID, e.Probe, e.Cause)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Cause
}
