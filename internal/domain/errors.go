// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrBrokerClosed     = errors.New("pattern broker is closed")
	ErrFilterStopped    = errors.New("continuous filter is stopped")
	ErrAlreadyStarted   = errors.New("continuous filter already started")
	ErrRootNotFound     = errors.New("root directory not found")
	ErrRootNotDirectory = errors.New("root path is not a directory")
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrNoTreeAvailable  = errors.New("no directory tree available")
)

// Error codes for client responses.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeFilterStopped  = "FILTER_STOPPED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// ScanError represents a failed scan of the directory tree.
type ScanError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewScanError creates a new ScanError.
func NewScanError(op string, err error) *ScanError {
	return &ScanError{
		Op:  op,
		Err: err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
