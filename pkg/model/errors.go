package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindRateLimited
	KindTimeout
	KindUnauthorized
	KindForbidden
	KindValidation
	KindConflict
)

// wire error codes, as sent in the "code" field of an error response
const (
	NotFoundErrorCode     = "not_found"
	RateLimitedErrorCode  = "rate_limited"
	TimeoutErrorCode      = "timeout"
	UnauthorizedErrorCode = "unauthorized"
	ForbiddenErrorCode    = "forbidden"
	InvalidRequestCode    = "invalid_request"
	ConflictErrorCode     = "conflict"
	InternalErrorCode     = "internal_server_error"
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation error"
	case KindConflict:
		return "conflict"
	default:
		return "unknown service error"
	}
}

// Code returns the wire error code of the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindNotFound:
		return NotFoundErrorCode
	case KindRateLimited:
		return RateLimitedErrorCode
	case KindTimeout:
		return TimeoutErrorCode
	case KindUnauthorized:
		return UnauthorizedErrorCode
	case KindForbidden:
		return ForbiddenErrorCode
	case KindValidation:
		return InvalidRequestCode
	case KindConflict:
		return ConflictErrorCode
	default:
		return InternalErrorCode
	}
}

// StatusCode returns the HTTP status a service answers with for the kind.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError is a failure reported by (or while talking to) the flag service.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, format string, args ...any) *ServiceError {
	return &ServiceError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrorFromStatus classifies a non-2xx HTTP response.
func ErrorFromStatus(status int, message string) *ServiceError {
	kind := KindUnknown
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = KindTimeout
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindValidation
	case http.StatusConflict:
		kind = KindConflict
	}
	return &ServiceError{Kind: kind, StatusCode: status, Message: message}
}

// KindOf classifies any error returned by a client call. Deadline and network
// timeouts are reported as KindTimeout even when they were never wrapped in a
// ServiceError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Kind != KindUnknown {
		return serviceErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindRateLimited, KindTimeout:
		return true
	}
	return false
}

// IsFatal reports whether the failure affects every subsequent call of the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindUnauthorized, KindForbidden:
		return true
	}
	return false
}
