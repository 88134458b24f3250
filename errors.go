package signalcycle

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions of the dashboard
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// Signal id is not part of the store
	ErrCodeSignalNotFound
	// Input was rejected before it reached the store or the remote API
	ErrCodeValidation
	// Remote call failed on the transport or returned a non-success status
	ErrCodeNetwork
	// Remote response could not be decoded
	ErrCodeParse
	// Scheduler is already running
	ErrCodeAlreadyRunning
	// Scheduler has no signals to cycle through
	ErrCodeNoSignals
)

// Sentinel errors for errors.Is
var (
	ErrSignalNotFound = errors.New("signal not found")
	ErrValidation     = errors.New("validation failed")
	ErrNetwork        = errors.New("network error")
	ErrParse          = errors.New("parse error")
	ErrAlreadyRunning = errors.New("cycle is already running")
	ErrNoSignals      = errors.New("no signals to cycle")
)

// NotFoundError is returned when a signal id is unknown
type NotFoundError struct {
	SignalID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("signal %d not found", e.SignalID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrSignalNotFound
}

// NewNotFoundError creates a new signal not found error
func NewNotFoundError(id int) *NotFoundError {
	return &NotFoundError{SignalID: id}
}

// ValidationError describes rejected user input
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NetworkError represents a failed remote call
type NetworkError struct {
	Operation   string
	StatusCode  int
	OriginalErr error
}

func (e *NetworkError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("network error during %s: %v", e.Operation, e.OriginalErr)
	}
	return fmt.Sprintf("network error during %s: unexpected status %d", e.Operation, e.StatusCode)
}

func (e *NetworkError) Unwrap() []error {
	if e.OriginalErr != nil {
		return []error{ErrNetwork, e.OriginalErr}
	}
	return []error{ErrNetwork}
}

// NewNetworkError wraps a transport failure
func NewNetworkError(operation string, err error) *NetworkError {
	return &NetworkError{
		Operation:   operation,
		OriginalErr: err,
	}
}

// NewStatusError reports a non-success HTTP status
func NewStatusError(operation string, status int) *NetworkError {
	return &NetworkError{
		Operation:  operation,
		StatusCode: status,
	}
}

// ParseError represents a malformed remote response
type ParseError struct {
	Operation   string
	OriginalErr error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error during %s: %v", e.Operation, e.OriginalErr)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.OriginalErr}
}

// NewParseError wraps a decoding failure
func NewParseError(operation string, err error) *ParseError {
	return &ParseError{
		Operation:   operation,
		OriginalErr: err,
	}
}

// SchedulerError represents a cycle operation that is not valid right now
type SchedulerError struct {
	Code      ErrorCode
	Operation string
	Message   string
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler error during %s: %s", e.Operation, e.Message)
}

func (e *SchedulerError) Unwrap() error {
	switch e.Code {
	case ErrCodeAlreadyRunning:
		return ErrAlreadyRunning
	case ErrCodeNoSignals:
		return ErrNoSignals
	default:
		return nil
	}
}

// NewSchedulerError creates a new scheduler error
func NewSchedulerError(code ErrorCode, operation, message string) *SchedulerError {
	return &SchedulerError{
		Code:      code,
		Operation: operation,
		Message:   message,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNetworkError checks if an error is a NetworkError
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		notFound   *NotFoundError
		validation *ValidationError
		network    *NetworkError
		parse      *ParseError
		scheduler  *SchedulerError
	)
	switch {
	case err == nil:
		return ErrCodeNone
	case errors.As(err, &notFound):
		return ErrCodeSignalNotFound
	case errors.As(err, &validation):
		return ErrCodeValidation
	case errors.As(err, &network):
		return ErrCodeNetwork
	case errors.As(err, &parse):
		return ErrCodeParse
	case errors.As(err, &scheduler):
		return scheduler.Code
	default:
		return ErrCodeNone
	}
}
