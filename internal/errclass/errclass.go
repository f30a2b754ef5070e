// Package errclass defines the error taxonomy shared by the external
// adapters. Retry layers and pipeline stages branch on the class rather
// than string-matching provider messages.
package errclass

import (
	"errors"
	"fmt"
)

// Class categorizes an adapter failure.
type Class int

const (
	// Transient covers network failures, 5xx responses, and parse
	// glitches on a single chunk. Safe to retry.
	Transient Class = iota
	// RateLimited is a 429 or provider-specific throttle. Retried with
	// an amplified backoff.
	RateLimited
	// Auth covers 401/403 and missing credentials. Never retried.
	Auth
	// InvalidInput covers 4xx caused by the request itself.
	InvalidInput
	// Upstream is a contract violation: missing fields, unparseable
	// JSON, unexpected shapes.
	Upstream
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case Auth:
		return "auth"
	case InvalidInput:
		return "invalid_input"
	case Upstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries a class alongside the underlying failure.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Class)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a class and operation name.
func New(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(class Class, op, format string, args ...interface{}) *Error {
	return &Error{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}

// ClassOf returns the class of err, or Transient when err carries none.
// Unclassified errors are treated as transient so callers retry by
// default and fail closed on auth only when the adapter says so.
func ClassOf(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return Transient
}

// IsRetryable reports whether the error class permits another attempt.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case Transient, RateLimited:
		return true
	default:
		return false
	}
}

// FromStatus maps an HTTP status code to a class.
func FromStatus(status int) Class {
	switch {
	case status == 429:
		return RateLimited
	case status == 401 || status == 403:
		return Auth
	case status >= 400 && status < 500:
		return InvalidInput
	default:
		return Transient
	}
}
