package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is returned for failures whose details must stay server-side.
const GenericMessage = "An internal server error occurred"

// ValidationError represents a caller mistake; its message is safe to return.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// UnsupportedMediaError is raised when upload content contradicts its declared type.
type UnsupportedMediaError struct {
	Message  string
	Detected string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media (%s): %s", e.Detected, e.Message)
}

// Validation builds a *ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Status maps an error to the HTTP status the API reports for it.
func Status(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var me *UnsupportedMediaError
	if errors.As(err, &me) {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message a caller may see. Internal errors are
// replaced by fallback, or GenericMessage when fallback is empty.
func PublicMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var me *UnsupportedMediaError
	if errors.As(err, &me) {
		return me.Message
	}
	if fallback == "" {
		return GenericMessage
	}
	return fallback
}
