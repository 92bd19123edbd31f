package utils

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")

	// Pick/override errors. Matchable with errors.Is so handlers can map
	// them to status codes without string comparison.
	ErrGameNotFound      = errors.New("game not found")
	ErrPickNotFound      = errors.New("pick not found")
	ErrPickAlreadyExists = errors.New("pick already exists")
	ErrGameNotLocked     = errors.New("game not locked")
	ErrPointsOutOfRange  = errors.New("confidence points out of range")
	ErrPointsConflict    = errors.New("confidence points already used")

	// Scheduler/polling errors.
	ErrTransient           = errors.New("transient failure")
	ErrScheduleComputation = errors.New("schedule computation failed")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeConflict     = "CONFLICT"

	ErrCodeGameNotFound    = "GAME_NOT_FOUND"
	ErrCodePickNotFound    = "PICK_NOT_FOUND"
	ErrCodePickExists      = "PICK_ALREADY_EXISTS"
	ErrCodeGameNotLocked   = "GAME_NOT_LOCKED"
	ErrCodePointsRange     = "POINTS_OUT_OF_RANGE"
	ErrCodePointsConflict  = "POINTS_CONFLICT"
	ErrCodeTransient       = "TRANSIENT_ERROR"
	ErrCodeScheduleCompute = "SCHEDULE_COMPUTATION_ERROR"
)

// WrapTransient tags provider/network failures so the scheduler can tell
// retryable cycles apart from programming errors.
func WrapTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapScheduleComputation tags schedule-read failures (missing or
// malformed schedule data).
func WrapScheduleComputation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrScheduleComputation, err)
}
