// Package errors provides standardized error handling for marketsearch
// components. It classifies errors into transient, invalid, and fatal
// categories so callers can decide between retrying, rejecting, and
// aborting, and provides helpers for consistent error wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Class represents the classification of an error for handling purposes.
type Class int

const (
	// ClassTransient marks temporary errors that may be retried.
	ClassTransient Class = iota
	// ClassInvalid marks errors caused by invalid input or configuration.
	ClassInvalid
	// ClassFatal marks unrecoverable errors that must stop processing.
	ClassFatal
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassInvalid:
		return "invalid"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Provider errors. A provider call that failed after retries is
	// recoverable at the item level: the caller skips the item and
	// reports it at the batch level.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrProviderResponse    = errors.New("malformed provider response")

	// Query and data validation errors. Rejected before any cache or
	// engine work, never partially processed.
	ErrInvalidQuery  = errors.New("invalid search query")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Storage errors.
	ErrNotFound           = errors.New("content not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Cache errors. A fingerprint collision means two different texts
	// hashed to the same cache key; serving either vector would be
	// silently wrong, so this is always fatal.
	ErrFingerprintCollision = errors.New("fingerprint collision")
	ErrCacheMiss            = errors.New("cache miss")

	// Lifecycle errors.
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")
)

// ClassifiedError wraps an error with its classification and origin.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ClassTransient
	}

	if errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrProviderRateLimited) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Common transient patterns from wrapped third-party errors.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "temporary", "unavailable", "rate limit", "retry"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ClassFatal
	}

	return errors.Is(err, ErrFingerprintCollision) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsInvalid checks if an error is caused by invalid input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ClassInvalid
	}

	return errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound reports whether an error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Classify returns the error class for an error. Unknown errors default
// to transient so callers err on the side of retrying.
func Classify(err error) Class {
	switch {
	case IsFatal(err):
		return ClassFatal
	case IsInvalid(err):
		return ClassInvalid
	default:
		return ClassTransient
	}
}

// Wrap creates a standardized error with context following the pattern
// "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ClassTransient, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context.
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ClassInvalid, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ClassFatal, err, component, method, action)
}

func wrapClassified(class Class, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need to import both error packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
