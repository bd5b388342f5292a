// Package errors consolidates error definitions for the weatherd project.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - ErrorToStatus mapping for the HTTP layer
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Not found errors
	ErrNotFound     = errors.New("not found")
	ErrNoData       = errors.New("no data in window")
	ErrNoSuchSensor = errors.New("sensor not found")

	// Validation errors
	ErrInvalidReading   = errors.New("invalid reading")
	ErrTemperatureRange = errors.New("temperature out of range")
	ErrMissingSensorID  = errors.New("sensor id required")
	ErrInvalidLimit     = errors.New("invalid limit")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingField     = errors.New("missing required field")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrDatabase           = errors.New("database error")

	// State errors
	ErrPoolClosed    = errors.New("pool is closed")
	ErrIngestStopped = errors.New("ingestion service is stopped")
	ErrQueueFull     = errors.New("ingestion queue full")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNotFound returns true if err is a not-found error.
//
// ErrNoData is deliberately included: "no readings in the window" is a
// legitimate outcome, not a storage failure, and maps to 404 rather than 5xx.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrNoSuchSensor)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidReading) ||
		errors.Is(err, ErrTemperatureRange) ||
		errors.Is(err, ErrMissingSensorID) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// IsStorage returns true if err indicates the durable store is unreachable
// or failed mid-operation. These are never masked as not-found.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrDatabase)
}

// IsRetriable returns true if the error is potentially retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrQueueFull)
}

// ============================================================================
// Error to HTTP status mapping
// ============================================================================

// ErrorToStatus maps a sentinel error to an HTTP status code.
func ErrorToStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case Is(err, ErrQueueFull):
		return http.StatusTooManyRequests
	case IsStorage(err), Is(err, ErrIngestStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidReading)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewStorage wraps a low-level database error so callers can classify it
// without inspecting driver-specific types.
func NewStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStorageUnavailable)
}
