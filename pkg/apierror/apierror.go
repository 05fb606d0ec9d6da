// Package apierror renders errors as the JSON bodies returned by the HTTP API.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code is the machine-readable error code carried in every error body.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeUnprocessableEntity Code = "UNPROCESSABLE_ENTITY"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeRequestTooLarge     Code = "REQUEST_TOO_LARGE"
	CodeUnsupportedEncoding Code = "UNSUPPORTED_ENCODING"
	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError       Code = "INTERNAL_ERROR"
)

// Error is an API error. Err is kept for logging and never serialized.
type Error struct {
	Status  int    `json:"-"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the JSON body of an error reply.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *Error) response(requestID string) Response {
	return Response{
		Error:     string(e.Code),
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}

// WriteJSON writes the error with its status code.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	e.WriteJSONWithRequestID(w, "")
}

// WriteJSONWithRequestID writes the error and echoes the request id when one is known.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.response(requestID))
}

// New creates an API error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap creates an API error that keeps err as its cause.
func Wrap(err error, status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// WithDetails attaches details to the body.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError attaches the internal cause.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, CodeForbidden, message)
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge() *Error {
	return New(http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large")
}

// UnsupportedEncoding creates a 415 error for a Content-Encoding the server cannot decode.
func UnsupportedEncoding(encoding string) *Error {
	return New(http.StatusUnsupportedMediaType, CodeUnsupportedEncoding,
		fmt.Sprintf("Unsupported Content-Encoding: %s", encoding))
}

// ValidationFailed creates a 422 error listing the offending fields.
func ValidationFailed(message string, details any) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidationFailed, message).WithDetails(details)
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// InternalError creates a 500 error that hides err from the client.
func InternalError(err error) *Error {
	return Wrap(err, http.StatusInternalServerError, CodeInternalError, "An internal error occurred")
}

// InternalServerError creates a 500 error with a fixed message.
func InternalServerError(message string) *Error {
	if message == "" {
		message = "An internal error occurred"
	}
	return New(http.StatusInternalServerError, CodeInternalError, message)
}

// SafeUnauthorized creates a 401 error with a generic message, keeping err for logs.
func SafeUnauthorized(err error) *Error {
	return Wrap(err, http.StatusUnauthorized, CodeUnauthorized, "Authentication failed")
}

// SafeForbidden creates a 403 error with a generic message, keeping err for logs.
func SafeForbidden(err error) *Error {
	return Wrap(err, http.StatusForbidden, CodeForbidden, "Access denied")
}
