// Package apperr defines the error taxonomy shared by the appointment
// service, the notification pipeline, and the API layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch without string matching.
type Kind int

const (
	KindValidation    Kind = iota // malformed or out-of-range input
	KindBusinessRule              // valid input, disallowed by domain rules
	KindNotFound                  // unknown id where existence is not sensitive
	KindConflict                  // slot overlap
	KindProvider                  // channel send failed, retryable
	KindConfiguration             // credentials/config missing, not retryable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindProvider:
		return "provider"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a classified domain error. Message is user-facing; Err, when
// set, carries the underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or out-of-range input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// BusinessRule reports input rejected by a domain rule (wrong state-machine
// edge, missing privilege, cross-tenant access).
func BusinessRule(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown id.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a scheduling slot overlap.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Provider wraps a transient channel-send failure.
func Provider(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Message: msg, Err: err}
}

// Configuration reports missing channel credentials or settings.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func IsValidation(err error) bool    { return is(err, KindValidation) }
func IsBusinessRule(err error) bool  { return is(err, KindBusinessRule) }
func IsNotFound(err error) bool      { return is(err, KindNotFound) }
func IsConflict(err error) bool      { return is(err, KindConflict) }
func IsProvider(err error) bool      { return is(err, KindProvider) }
func IsConfiguration(err error) bool { return is(err, KindConfiguration) }

// KindOf returns the classification of err, or KindProvider when err is
// not a classified error (unclassified failures are treated as retryable).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}
