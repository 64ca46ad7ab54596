// Package errs implements the taxonomy of recoverable failures shared by
// every component in the pipeline, and the retry policy that decides how a
// retryable failure is rescheduled.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies the family a failure belongs to. Properties like
// Retryable and HTTP status live on the kind descriptor, not on a class
// hierarchy.
type Kind string

const (
	// Validation
	KindInputInvalid    Kind = "validation.input_invalid"
	KindSchemaMismatch  Kind = "validation.schema_mismatch"
	KindRequiredField   Kind = "validation.required_field"

	// Resource
	KindNotFound      Kind = "resource.not_found"
	KindAlreadyExists Kind = "resource.already_exists"
	KindExhausted     Kind = "resource.exhausted"

	// Auth
	KindAuthenticationFailed Kind = "auth.authentication_failed"
	KindAuthorizationDenied  Kind = "auth.authorization_denied"
	KindTokenInvalid         Kind = "auth.token_invalid"

	// Storage
	KindStorageQueryFailed       Kind = "storage.query_failed"
	KindStorageConnectionFailed Kind = "storage.connection_failed"
	KindStorageDuplicateKey     Kind = "storage.duplicate_key"
	KindStorageFKViolation      Kind = "storage.fk_violation"
	KindStorageTxFailed         Kind = "storage.transaction_failed"

	// Filesystem
	KindFSNotFound         Kind = "fs.not_found"
	KindFSPermissionDenied Kind = "fs.permission_denied"
	KindFSFull             Kind = "fs.full"
	KindFSReadFailed       Kind = "fs.read_failed"
	KindFSWriteFailed      Kind = "fs.write_failed"

	// Network
	KindNetConnectionFailed Kind = "network.connection_failed"
	KindNetTimeout          Kind = "network.timeout"
	KindNetDNSFailed        Kind = "network.dns_failed"

	// Provider
	KindProviderRateLimit      Kind = "provider.rate_limit"
	KindProviderServerError    Kind = "provider.server_error"
	KindProviderUnavailable    Kind = "provider.unavailable"
	KindProviderInvalidResponse Kind = "provider.invalid_response"

	// Permanent / programmer errors
	KindConfiguration  Kind = "permanent.configuration"
	KindNotImplemented Kind = "permanent.not_implemented"
	KindInvalidState   Kind = "permanent.invalid_state"

	KindTimeout Kind = "permanent.timeout" // cancellation / deadline at a handler boundary
)

// staticRetryable holds the retryability for kinds whose answer never
// depends on context (e.g. an HTTP status code). Kinds not listed here are
// not retryable unless ForceRetryable sets the answer, as
// NewProviderServerError does from the HTTP status.
var staticRetryable = map[Kind]bool{
	KindInputInvalid:    false,
	KindSchemaMismatch:  false,
	KindRequiredField:   false,
	KindNotFound:        false,
	KindAlreadyExists:   false,
	KindExhausted:       false,
	KindAuthenticationFailed: false,
	KindAuthorizationDenied:  false,
	KindTokenInvalid:         false,
	KindStorageQueryFailed:       true,
	KindStorageConnectionFailed: true,
	KindStorageDuplicateKey:     false,
	KindStorageFKViolation:      false,
	KindStorageTxFailed:         false,
	KindFSNotFound:         false,
	KindFSPermissionDenied: false,
	KindFSFull:             false,
	KindFSReadFailed:       false,
	KindFSWriteFailed:      true,
	KindNetConnectionFailed: true,
	KindNetTimeout:          true,
	KindNetDNSFailed:        true,
	KindProviderRateLimit:       true,
	KindProviderUnavailable:     true,
	KindProviderInvalidResponse: false,
	KindConfiguration:  false,
	KindNotImplemented: false,
	KindInvalidState:   false,
	KindTimeout:        true,
}

// Error is the single tagged-union error type propagated through the
// pipeline. Every recoverable failure carries these fields; nothing here is
// expressed through an inheritance hierarchy.
type Error struct {
	Kind       Kind
	Message    string
	Context    map[string]any
	Cause      error
	RetryAfter time.Duration // zero means "no hint"

	// retryableOverride is set for kinds whose retryability depends on
	// context (provider.server_error depends on HTTP status).
	retryableOverride *bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the queue should schedule another attempt.
func (e *Error) Retryable() bool {
	if e.retryableOverride != nil {
		return *e.retryableOverride
	}
	if r, ok := staticRetryable[e.Kind]; ok {
		return r
	}
	return false
}

// New builds a tagged error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: map[string]any{}}
}

// Wrap builds a tagged error carrying cause as the wrapped chain.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Context: map[string]any{}}
}

// WithContext attaches a context key/value and returns the same error for
// chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// WithRetryAfter attaches a provider-supplied retry hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// ForceRetryable overrides the static retryability table; used by
// provider.server_error (retryable iff HTTP status >= 500).
func (e *Error) ForceRetryable(v bool) *Error {
	e.retryableOverride = &v
	return e
}

// NewProviderServerError builds the one kind whose retryability is a
// function of the HTTP status code rather than the kind alone.
func NewProviderServerError(status int, message string) *Error {
	return New(KindProviderServerError, message).
		WithContext("http_status", status).
		ForceRetryable(status >= 500)
}

// As reports whether err (or anything it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a kind to the status code the API layer should answer
// with, per the kind -> status mapping in the spec.
func (e *Error) HTTPStatus() int {
	switch {
	case e.Kind == KindAlreadyExists:
		return http.StatusConflict
	case e.Kind == KindProviderRateLimit:
		return http.StatusTooManyRequests
	case e.Kind == KindNotImplemented:
		return http.StatusNotImplemented
	case hasPrefix(string(e.Kind), "validation."):
		return http.StatusBadRequest
	case e.Kind == KindAuthenticationFailed || e.Kind == KindTokenInvalid:
		return http.StatusUnauthorized
	case e.Kind == KindAuthorizationDenied:
		return http.StatusForbidden
	case e.Kind == KindNotFound || e.Kind == KindFSNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsProgrammerError reports kinds that should be logged at error severity
// and surfaced to users as a generic 500 with the message hidden.
func (e *Error) IsProgrammerError() bool {
	switch e.Kind {
	case KindInvalidState, KindNotImplemented, KindConfiguration:
		return true
	default:
		return false
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
