package services

import (
	"errors"
	"sort"
	"strings"
)

// ErrorKind classifies service failures. Handlers map kinds onto HTTP statuses.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindServer             ErrorKind = "server"
)

// Error is returned by every service operation that fails.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FieldErrors collects validation messages per request field.
type FieldErrors map[string][]string

// Add appends messages for field.
func (f FieldErrors) Add(field string, messages ...string) {
	if len(messages) == 0 {
		return
	}
	f[field] = append(f[field], messages...)
}

// Merge copies every message of other into f.
func (f FieldErrors) Merge(other map[string][]string) {
	for field, messages := range other {
		f.Add(field, messages...)
	}
}

// Has reports whether field already failed.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// Fields returns the failing field names, sorted.
func (f FieldErrors) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns a validation error carrying f, or nil when f is empty.
func (f FieldErrors) Err(message string) error {
	if len(f) == 0 {
		return nil
	}
	if message == "" {
		message = "the given data was invalid"
	}
	return &Error{Kind: KindValidation, Message: message, Fields: f}
}

// ValidationError builds a single-field validation error.
func ValidationError(field, message string) error {
	return FieldErrors{field: {message}}.Err(message)
}

// NotFoundError reports an absent entity.
func NotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ForbiddenError reports an authenticated caller acting on someone else's resource.
func ForbiddenError(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// UnauthenticatedError reports a missing or unusable bearer token.
func UnauthenticatedError(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// ErrInvalidCredentials is returned by Login for any email/password mismatch.
var ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}

// ServerError wraps an unexpected failure.
func ServerError(message string, err error) error {
	return &Error{Kind: KindServer, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindServer for foreign errors.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindServer
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}

// asServiceError passes service errors through and wraps anything else.
func asServiceError(err error, message string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return ServerError(message, err)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
