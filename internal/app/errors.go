package app

import (
	"fmt"
	"net/http"
)

// DomainError is a service-level error that knows how it maps onto the HTTP
// surface. mapError unwraps it in the handler layer.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// validationError reports malformed or incomplete client input.
func validationError(message string, details any) *DomainError {
	return &DomainError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

// unavailableError reports an optional subsystem that is not configured.
func unavailableError(code, message string) *DomainError {
	return &DomainError{
		Status:  http.StatusServiceUnavailable,
		Code:    code,
		Message: message,
	}
}
