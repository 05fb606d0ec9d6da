package apierror

import (
	"errors"
	"net/http"
	"strings"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/validator"
)

// FromDomain maps service-layer errors to API errors.
// Unknown errors become 500s with the cause kept for logging only.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return ValidationFailed("Validation failed", verrs).WithError(err)
	}

	switch {
	case shared.IsNotFound(err):
		return Wrap(err, http.StatusNotFound, CodeNotFound, publicMessage(err, "Resource not found"))
	case shared.IsAlreadyExists(err), errors.Is(err, shared.ErrConflict):
		return Wrap(err, http.StatusConflict, CodeConflict, publicMessage(err, "Resource conflict"))
	case shared.IsLimitExceeded(err):
		return Wrap(err, http.StatusUnprocessableEntity, CodeUnprocessableEntity, publicMessage(err, "Limit exceeded"))
	case shared.IsValidation(err):
		return Wrap(err, http.StatusBadRequest, CodeBadRequest, publicMessage(err, "Invalid request"))
	case errors.Is(err, shared.ErrUnauthorized):
		return SafeUnauthorized(err)
	case errors.Is(err, shared.ErrForbidden):
		return SafeForbidden(err)
	default:
		return InternalError(err)
	}
}

// publicMessage returns the innermost message of a classified error.
// Domain errors read "<sentinel>: <detail>", so the detail is the text after the last separator.
func publicMessage(err error, fallback string) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return fallback
	}
	return msg
}
