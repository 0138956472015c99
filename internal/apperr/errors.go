// Package apperr defines the machine-readable error kinds returned at service boundaries.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure for API clients.
type Kind string

const (
	KindValidation              Kind = "validation_error"
	KindNotFound                Kind = "not_found"
	KindConfigurationInactive   Kind = "configuration_inactive"
	KindConfigurationInvalid    Kind = "configuration_invalid"
	KindInvalidTransition       Kind = "invalid_transition"
	KindJobStillActive          Kind = "job_still_active"
	KindExecutorDispatchFailure Kind = "executor_dispatch_failure"
	KindBadRequest              Kind = "bad_request"
	KindUnauthorized            Kind = "unauthorized"
	KindInternal                Kind = "internal"
)

// Error is a typed service error. Details carries ordered validation messages.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.NotFound("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Validation returns a ValidationError carrying the ordered rule failures.
func Validation(details []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "site configuration failed validation",
		Details: append([]string(nil), details...),
	}
}

// NotFound returns a NotFound error for the named resource.
func NotFound(resource, id string) *Error {
	return New(KindNotFound, "%s %q not found", resource, id)
}

// InvalidTransition returns an InvalidTransition error for a job state change.
func InvalidTransition(jobID, from, to string) *Error {
	return New(KindInvalidTransition, "job %s cannot transition from %s to %s", jobID, from, to)
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConfigurationInvalid:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConfigurationInactive, KindInvalidTransition, KindJobStillActive:
		return http.StatusConflict
	case KindExecutorDispatchFailure:
		return http.StatusBadGateway
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
